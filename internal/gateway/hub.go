package gateway

import (
	"sync"

	"github.com/youssefm/groupchat/internal/metrics"
)

// Hub tracks which connections are subscribed to which rooms. Rooms are
// purely in-memory, per-process state: subscribing never touches durable
// membership, and a subscriber stays subscribed until they leave the room
// or disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{rooms: make(map[int64]map[*Client]struct{})}
}

// Join subscribes a client to a room
func (h *Hub) Join(roomID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[roomID] = room
	}
	room[c] = struct{}{}
}

// Leave unsubscribes a client from a room; a no-op if not subscribed
func (h *Hub) Leave(roomID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(roomID, c)
}

// LeaveAll unsubscribes a client from every room and returns the room IDs
// it was subscribed to
func (h *Hub) LeaveAll(c *Client) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var left []int64
	for roomID, room := range h.rooms {
		if _, ok := room[c]; ok {
			left = append(left, roomID)
			h.drop(roomID, c)
		}
	}
	return left
}

// drop removes the client and prunes the room when empty. Callers hold the lock.
func (h *Hub) drop(roomID int64, c *Client) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// Subscribed reports whether the client is subscribed to the room
func (h *Hub) Subscribed(roomID int64, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c]
	return ok
}

// Broadcast sends payload to every subscriber of the room
func (h *Hub) Broadcast(roomID int64, payload []byte) {
	h.broadcast(roomID, nil, payload)
}

// BroadcastExcept sends payload to every subscriber of the room except one
func (h *Hub) BroadcastExcept(roomID int64, except *Client, payload []byte) {
	h.broadcast(roomID, except, payload)
}

func (h *Hub) broadcast(roomID int64, except *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c == except {
			continue
		}
		c.enqueue(payload)
	}
	metrics.RoomBroadcasts.Inc()
}
