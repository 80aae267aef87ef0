package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Entry is what the registry knows about one live connection.
type Entry struct {
	Room domain.RoomID
	Name string
	Conn core.SignalConn
}

// Member is a fan-out target: identity plus its signaling channel.
type Member struct {
	ID   domain.ConnID
	Name string
	Conn core.SignalConn
}

type RoomInfo struct {
	Room    domain.RoomID `json:"room"`
	Members int           `json:"members"`
}

// Registry owns room membership. A room exists exactly while at least
// one entry references it; there is no separate room object. The map
// never leaves the mutex.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*Entry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*Entry)}
}

// Join registers or overwrites the entry for id. Re-joining moves the
// connection atomically: it is never visible in two rooms at once.
// The previous entry, if any, is returned so callers can react to a
// room change.
func (r *Registry) Join(id domain.ConnID, conn core.SignalConn, room domain.RoomID, name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var prev Entry
	replaced := false
	if e, ok := r.conns[id]; ok {
		prev, replaced = *e, true
	}
	r.conns[id] = &Entry{Room: room, Name: name, Conn: conn}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(room)).Str("name", name).Msg("joined")
	return prev, replaced
}

func (r *Registry) Lookup(id domain.ConnID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Remove deletes the entry. Removing an unknown id is a no-op; the
// returned bool is true only for the call that actually deleted, which
// lets disconnect cleanup run exactly once under races.
func (r *Registry) Remove(id domain.ConnID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Entry{}, false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("removed")
	return *e, true
}

// MembersOf snapshots the room's members, optionally excluding one
// connection. Callers fan out against the snapshot outside the lock.
func (r *Registry) MembersOf(room domain.RoomID, except domain.ConnID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, 0, len(r.conns))
	for id, e := range r.conns {
		if e.Room != room || id == except {
			continue
		}
		out = append(out, Member{ID: id, Name: e.Name, Conn: e.Conn})
	}
	return out
}

// Names returns the display names in a room, excluding one connection.
// Always non-nil so a roster marshals as a list.
func (r *Registry) Names(room domain.RoomID, except domain.ConnID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for id, e := range r.conns {
		if e.Room != room || id == except {
			continue
		}
		out = append(out, e.Name)
	}
	return out
}

func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.RoomID]int)
	for _, e := range r.conns {
		counts[e.Room]++
	}
	out := make([]RoomInfo, 0, len(counts))
	for room, n := range counts {
		out = append(out, RoomInfo{Room: room, Members: n})
	}
	return out
}
