package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"chatline/pkg/interfaces"
)

// Member is what Rooms needs from a connection. *Connection satisfies it;
// tests substitute recorders.
type Member interface {
	ID() string
	Send(event string, payload any) error
}

// Rooms is the process-local pub-sub behind interfaces.Broadcaster.
// Rooms are keyed by user id: every session of a user joins the room named
// after them, so one publish reaches all their tabs and devices.
type Rooms struct {
	mu     sync.RWMutex
	conns  map[string]Member              // connID -> member
	rooms  map[string]map[string]Member   // room -> connID -> member
	joined map[string]map[string]struct{} // connID -> rooms it is in
	log    zerolog.Logger
}

// NewRooms creates an empty room table.
func NewRooms(log zerolog.Logger) *Rooms {
	return &Rooms{
		conns:  make(map[string]Member),
		rooms:  make(map[string]map[string]Member),
		joined: make(map[string]map[string]struct{}),
		log:    log.With().Str("component", "rooms").Logger(),
	}
}

var _ interfaces.Broadcaster = (*Rooms)(nil)

// Add makes a connection known to the room table. A connection must be
// added before it can join rooms.
func (r *Rooms) Add(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[m.ID()] = m
}

// Remove drops a connection from every room it joined and forgets it.
// Idempotent.
func (r *Rooms) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connID] {
		r.leaveLocked(room, connID)
	}
	delete(r.joined, connID)
	delete(r.conns, connID)
}

// Join adds a known connection to a room. Unknown connections are ignored.
func (r *Rooms) Join(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return
	}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]Member)
	}
	r.rooms[room][connID] = m

	if r.joined[connID] == nil {
		r.joined[connID] = make(map[string]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

// Leave removes a connection from one room.
func (r *Rooms) Leave(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(room, connID)
	if set, ok := r.joined[connID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *Rooms) leaveLocked(room, connID string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Publish sends one event to every member of the room. An empty room is a
// silent no-op; a failed member send is logged and the rest still receive.
func (r *Rooms) Publish(room, event string, payload any) {
	r.mu.RLock()
	members := make([]Member, 0, len(r.rooms[room]))
	for _, m := range r.rooms[room] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	for _, m := range members {
		if err := m.Send(event, payload); err != nil {
			r.log.Warn().Err(err).Str("room", room).Str("event", event).Str("conn", m.ID()).Msg("room delivery failed")
		}
	}
}

// Stats returns room-table counters for the admin surface.
func (r *Rooms) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"connections": len(r.conns),
		"rooms":       len(r.rooms),
	}
}
