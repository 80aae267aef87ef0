package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
)

// timeLayout matches what the original web client rendered for chat
// timestamps.
const timeLayout = "15:04:05"

// Relay routes signaling events between room members. It resolves the
// sender's room through the registry, stamps the sender's display name
// into From, and fans out to everyone else in the room. It never
// parses SDP or candidate payloads and gives no ordering guarantee
// between different senders.
//
// Offer/answer/ice-candidate frames go to the whole room even though
// they carry a Target; receivers filter by name. That caps usable call
// concurrency at one negotiating pair per room, which is the intended
// room-size constraint (2 participants for calls, any number for chat).
type Relay struct {
	reg *Registry
	now func() time.Time
}

func NewRelay(reg *Registry) *Relay {
	return &Relay{reg: reg, now: time.Now}
}

// Join registers the connection and answers with the current roster.
// Joining again overwrites room and name; the old room simply stops
// listing this connection.
func (r *Relay) Join(id domain.ConnID, conn core.SignalConn, rawRoom, rawName string) {
	room, err := domain.CleanRoomID(rawRoom)
	if err != nil {
		r.unicast(conn, protocol.Event{Type: protocol.EventError, Error: err.Error()})
		return
	}
	name := domain.CleanDisplayName(rawName)

	r.reg.Join(id, conn, room, name)

	r.unicast(conn, protocol.Event{
		Type:  protocol.EventExistingUsers,
		Room:  string(room),
		Users: r.reg.Names(room, id),
	})
	r.toRoom(id, protocol.Event{Type: protocol.EventUserConnected, From: name})
}

// Message relays a chat line to the rest of the sender's room, stamped
// with a server-side timestamp. Senders that never joined are dropped
// silently.
func (r *Relay) Message(id domain.ConnID, text string) {
	e, ok := r.reg.Lookup(id)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("conn", string(id)).Msg("message before join")
		return
	}
	r.fanOut(e.Room, id, protocol.Event{
		Type:      protocol.EventReceiveMessage,
		From:      e.Name,
		Text:      text,
		Timestamp: r.now().Format(timeLayout),
	})
}

func (r *Relay) CallUser(id domain.ConnID, callType string) {
	r.toRoom(id, protocol.Event{Type: protocol.EventIncomingCall, CallType: callType})
}

func (r *Relay) AcceptCall(id domain.ConnID) {
	r.toRoom(id, protocol.Event{Type: protocol.EventCallAccepted})
}

func (r *Relay) RejectCall(id domain.ConnID) {
	r.toRoom(id, protocol.Event{Type: protocol.EventCallRejected})
}

func (r *Relay) EndCall(id domain.ConnID) {
	r.toRoom(id, protocol.Event{Type: protocol.EventCallEnded})
}

// Forward relays an opaque negotiation frame (offer, answer or
// ice-candidate) unchanged except for the From stamp.
func (r *Relay) Forward(id domain.ConnID, ev protocol.Event) {
	r.toRoom(id, protocol.Event{
		Type:          ev.Type,
		Target:        ev.Target,
		SDP:           ev.SDP,
		Candidate:     ev.Candidate,
		SDPMid:        ev.SDPMid,
		SDPMLineIndex: ev.SDPMLineIndex,
	})
}

// Disconnect tears down the registry entry and tells the room. Only the
// call that wins the Remove race broadcasts, so user-disconnected is
// emitted at most once per connection.
func (r *Relay) Disconnect(id domain.ConnID) {
	e, ok := r.reg.Remove(id)
	if !ok {
		return
	}
	r.fanOut(e.Room, id, protocol.Event{Type: protocol.EventUserDisconnected, From: e.Name})
}

// toRoom resolves the sender and broadcasts ev, stamped with the
// sender's name, to the rest of its room. Senders without a room are a
// no-op: relaying into a room you already left is fire-and-forget.
func (r *Relay) toRoom(id domain.ConnID, ev protocol.Event) {
	e, ok := r.reg.Lookup(id)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("conn", string(id)).Str("type", string(ev.Type)).Msg("relay without room")
		return
	}
	ev.From = e.Name
	r.fanOut(e.Room, id, ev)
}

// fanOut marshals once and pushes the frame to every member except the
// sender. TrySend never blocks; drops are logged and forgotten.
func (r *Relay) fanOut(room domain.RoomID, except domain.ConnID, ev protocol.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal event")
		return
	}
	sent, dropped := 0, 0
	for _, m := range r.reg.MembersOf(room, except) {
		if err := m.Conn.TrySend(core.Frame(data)); err != nil {
			dropped++
			log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(m.ID)).Str("type", string(ev.Type)).Msg("dropped frame")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.relay").Str("room", string(room)).Str("type", string(ev.Type)).Int("sent", sent).Int("dropped", dropped).Msg("fan out")
}

func (r *Relay) unicast(conn core.SignalConn, ev protocol.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal event")
		return
	}
	if err := conn.TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("type", string(ev.Type)).Msg("dropped frame")
	}
}
