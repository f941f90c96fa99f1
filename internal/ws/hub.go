package ws

import (
	"log"
	"sync"

	"messenger-service/internal/session"
)

// Hub is the connection registry and conversation-room index: the single
// source of truth for "is this user reachable now". One live connection per
// user; binding replaces and closes any stale predecessor.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]session.Conn
	rooms   map[string]map[session.Conn]bool
	joined  map[session.Conn]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]session.Conn),
		rooms:   make(map[string]map[session.Conn]bool),
		joined:  make(map[session.Conn]map[string]bool),
	}
}

// Bind records the user -> connection mapping, replacing any prior entry.
func (h *Hub) Bind(userID string, c session.Conn) {
	h.mu.Lock()
	prior, had := h.clients[userID]
	h.clients[userID] = c
	h.mu.Unlock()

	if had && prior != c {
		// Only one live connection per user is modeled.
		_ = prior.Close()
	}
}

// Unbind removes the mapping, but only if c is still the current connection;
// a racing re-bind must not be clobbered by the old connection's teardown.
func (h *Hub) Unbind(userID string, c session.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[userID]; ok && current == c {
		delete(h.clients, userID)
	}
}

// Lookup returns the user's live connection, if any.
func (h *Hub) Lookup(userID string) (session.Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// Join subscribes a connection to a conversation room. Idempotent.
func (h *Hub) Join(conversationID string, c session.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[session.Conn]bool)
	}
	h.rooms[conversationID][c] = true
	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]bool)
	}
	h.joined[c][conversationID] = true
}

// Leave removes a connection from a conversation room.
func (h *Hub) Leave(conversationID string, c session.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationID, c)
}

// LeaveAll removes a connection from every room it joined.
func (h *Hub) LeaveAll(c session.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID := range h.joined[c] {
		h.leaveLocked(conversationID, c)
	}
}

func (h *Hub) leaveLocked(conversationID string, c session.Conn) {
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, conversationID)
		if len(rooms) == 0 {
			delete(h.joined, c)
		}
	}
}

// Broadcast sends an event to every connection joined to the conversation,
// the originator's own connection included.
func (h *Hub) Broadcast(conversationID string, v any) {
	h.mu.RLock()
	conns := make([]session.Conn, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.SendJSON(v); err != nil {
			log.Printf("websocket write error: %v", err)
			_ = c.Close()
			h.Leave(conversationID, c)
		}
	}
}

// BroadcastAll sends an event to every bound connection. Used for presence.
func (h *Hub) BroadcastAll(v any) {
	h.mu.RLock()
	conns := make([]session.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.SendJSON(v); err != nil {
			log.Printf("websocket write error: %v", err)
		}
	}
}

var _ session.Registry = (*Hub)(nil)
