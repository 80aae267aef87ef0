// Package signaling is the client side of the wire contract: one
// websocket to the server, JSON events in both directions.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrSendBufferFull = errors.New("send buffer full")

// Client manages the websocket connection to the signaling server.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan protocol.Event
	outgoing  chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan protocol.Event, 32),
		outgoing:  make(chan protocol.Event, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the server and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial signaling server: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Send queues an event; it never blocks. A full buffer means the
// connection is effectively dead and the event is dropped.
func (c *Client) Send(ev protocol.Event) error {
	select {
	case c.outgoing <- ev:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Events yields inbound events until the connection dies, then closes.
func (c *Client) Events() <-chan protocol.Event {
	return c.incoming
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		_ = c.conn.Close()
		close(c.incoming)
	}()
	for {
		var ev protocol.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "client.signaling").Msg("read error")
			}
			return
		}
		c.incoming <- ev
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Error().Err(err).Str("module", "client.signaling").Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
