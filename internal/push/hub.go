// Package push fans live vehicle updates out to subscribed clients over
// WebSocket. Delivery is at-most-once per connected subscriber per event;
// there is no replay and no per-client queue beyond a small send buffer.
package push

import (
	"sync"
)

// RouteRoom names the room that carries updates for one route.
func RouteRoom(routeID string) string {
	return "route:" + routeID
}

// Subscriber is one destination for room emissions. Deliver must not block;
// a subscriber that cannot accept the event reports false and is dropped
// from every room it joined.
type Subscriber interface {
	Deliver(event string, payload []byte) bool
}

// Hub tracks room membership and fans emissions out to current members.
// Membership changes and emissions may race; a subscriber joining during an
// emission may or may not receive that event.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Subscriber]struct{})}
}

// Join adds the subscriber to a room. Joining a room twice is a no-op.
func (h *Hub) Join(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
}

// Leave removes the subscriber from a room. Leaving a room it never joined
// is a no-op.
func (h *Hub) Leave(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, s)
}

// LeaveAll removes the subscriber from every room. Called when a connection
// closes.
func (h *Hub) LeaveAll(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.removeLocked(room, s)
	}
}

// Emit delivers one event to every current member of the room. Members that
// refuse delivery are evicted from all rooms.
func (h *Hub) Emit(room, event string, payload []byte) {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	var failed []Subscriber
	for _, s := range members {
		if !s.Deliver(event, payload) {
			failed = append(failed, s)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range failed {
		for r := range h.rooms {
			h.removeLocked(r, s)
		}
	}
}

// RoomSize returns the current number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// removeLocked drops the subscriber from one room and prunes the room when
// it empties. Caller holds the write lock.
func (h *Hub) removeLocked(room string, s Subscriber) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
