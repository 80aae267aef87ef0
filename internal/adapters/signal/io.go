package signal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

func (ctl *Controller) writePump(c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes frames until the transport dies, then runs the
// disconnect cleanup. The registry's atomic remove guarantees the
// user-disconnected broadcast happens once even if Close races.
func (ctl *Controller) readPump(id domain.ConnID, c *wsConn) {
	defer func() {
		ctl.Relay.Disconnect(id)
		c.Close()
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(id, c, data)
	}
}

// handleFrame decodes the envelope and routes the verb to the relay.
// Payload semantics are not validated here: the relay forwards SDP and
// candidates opaquely.
func (ctl *Controller) handleFrame(id domain.ConnID, c *wsConn, data []byte) {
	var ev protocol.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		return
	}

	switch ev.Type {
	case protocol.EventJoinRoom:
		ctl.Relay.Join(id, c, ev.Room, ev.Name)
	case protocol.EventSendMessage:
		ctl.Relay.Message(id, ev.Text)
	case protocol.EventCallUser:
		ctl.Relay.CallUser(id, ev.CallType)
	case protocol.EventAcceptCall:
		ctl.Relay.AcceptCall(id)
	case protocol.EventRejectCall:
		ctl.Relay.RejectCall(id)
	case protocol.EventEndCall:
		ctl.Relay.EndCall(id)
	case protocol.EventOffer, protocol.EventAnswer, protocol.EventICECandidate:
		ctl.Relay.Forward(id, ev)
	default:
		log.Warn().Str("module", "signal").Str("type", string(ev.Type)).Msg("unknown signal")
	}
}
