package bus

import "sync"

// subscriptionBuffer bounds each subscriber's pending payloads. A subscriber
// that falls this far behind starts dropping messages rather than blocking
// the publisher.
const subscriptionBuffer = 64

// Subscription is a live feed of payloads for one room. C is closed when the
// subscription is cancelled; no payload is delivered after Close returns.
type Subscription struct {
	C chan []byte

	room string
	bus  *Local
}

// Close cancels the subscription and closes C.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Local is the in-process event multiplexer: it fans every published payload
// out to all current subscribers of the room, instantly and unconditionally.
// Safe for concurrent publish and subscribe across unrelated rooms.
type Local struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
}

// NewLocal creates an empty multiplexer.
func NewLocal() *Local {
	return &Local{rooms: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber for the room. The room is created
// implicitly on first subscribe.
func (l *Local) Subscribe(room string) *Subscription {
	sub := &Subscription{
		C:    make(chan []byte, subscriptionBuffer),
		room: room,
		bus:  l,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rooms[room] == nil {
		l.rooms[room] = make(map[*Subscription]struct{})
	}
	l.rooms[room][sub] = struct{}{}
	return sub
}

// Publish delivers payload to every current subscriber of the room.
// Delivery is non-blocking; a subscriber whose buffer is full misses the
// payload.
func (l *Local) Publish(room string, payload []byte) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for sub := range l.rooms[room] {
		select {
		case sub.C <- payload:
		default:
		}
	}
}

// Subscribers reports the current subscriber count for a room.
func (l *Local) Subscribers(room string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms[room])
}

func (l *Local) unsubscribe(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs, ok := l.rooms[sub.room]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(l.rooms, sub.room)
	}
	close(sub.C)
}
