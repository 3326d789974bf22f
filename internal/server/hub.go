package server

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/bus"
)

// Hub is the connection registry: it owns the room-to-connection mapping and
// the lifecycle of distributed-channel subscriptions. The first connection to
// join a room opens the room's distributed relay, the last one to leave
// closes it, so the number of open distributed subscriptions stays bounded by
// the number of locally populated rooms.
//
// Membership changes for all rooms serialize on one mutex. Relay opening and
// closing talk to Redis, so those run outside the lock; only the refcount
// transitions that decide them are held under it.
type Hub struct {
	bus *bus.Bus
	log *logrus.Logger

	mu         sync.Mutex
	rooms      map[string]map[*Client]struct{}
	relayStops map[string]func()
	closed     bool
}

// NewHub creates an empty registry over the given fanout bus.
func NewHub(b *bus.Bus, log *logrus.Logger) *Hub {
	return &Hub{
		bus:        b,
		log:        log,
		rooms:      make(map[string]map[*Client]struct{}),
		relayStops: make(map[string]func()),
	}
}

// Join attaches the client to a room: it registers a local bus subscription
// forwarding every payload for the room into the client's send queue, and on
// the room's first member opens the distributed relay.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return
	}
	if _, ok := c.subs[room]; ok {
		h.mu.Unlock()
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}

	sub := h.bus.Subscribe(room)
	c.subs[room] = sub
	go c.forward(sub)

	first := len(h.rooms[room]) == 1
	h.mu.Unlock()

	if first {
		// The distributed subscribe does a Redis round-trip; holding the hub
		// mutex across it would stall joins and leaves in every other room.
		stop := h.bus.SubscribeDistributed(room)

		h.mu.Lock()
		_, populated := h.rooms[room]
		_, running := h.relayStops[room]
		if populated && !running && !h.closed {
			h.relayStops[room] = stop
			h.mu.Unlock()
		} else {
			// The room emptied (or another join already reopened it) while
			// the relay was being set up.
			h.mu.Unlock()
			stop()
		}
	}

	h.log.WithFields(logrus.Fields{"user": c.userID, "room": room}).
		Debug("client joined room")
}

// Leave detaches the client from a room, cancelling its local subscription
// synchronously. When the room empties, the room entry is removed and the
// distributed relay stopped.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	stop := h.leaveLocked(c, room)
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// LeaveAll detaches the client from every room it joined. Called on
// connection close.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	var stops []func()
	for room := range c.subs {
		if stop := h.leaveLocked(c, room); stop != nil {
			stops = append(stops, stop)
		}
	}
	h.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// leaveLocked removes the membership under the hub mutex and returns the
// relay stop to run once the lock is released, or nil.
func (h *Hub) leaveLocked(c *Client, room string) func() {
	sub, ok := c.subs[room]
	if !ok {
		return nil
	}
	delete(c.subs, room)
	sub.Close()

	var stop func()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
			if s, ok := h.relayStops[room]; ok {
				delete(h.relayStops, room)
				stop = s
			}
		}
	}

	h.log.WithFields(logrus.Fields{"user": c.userID, "room": room}).
		Debug("client left room")
	return stop
}

// Members reports the current connection count for a room.
func (h *Hub) Members(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Close tears down every connection and relay. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			clients[c] = struct{}{}
		}
	}
	h.mu.Unlock()

	for c := range clients {
		c.Close()
	}
}
