package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// publishTimeout caps the detached distributed publish so a wedged Redis
// never pins goroutines.
const publishTimeout = 5 * time.Second

// envelope is the wire format on the distributed channel. Origin lets the
// publishing instance's own relay drop the echo: local subscribers already
// received the payload directly from the local multiplexer.
type envelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// Bus is the two-tier room fanout: a local multiplexer for instantly-reached
// in-process subscribers, mirrored over a Redis pub/sub channel per room so
// other instances relay to their own sockets. The distributed tier is
// advisory; when Redis is unavailable publish degrades to local-only
// delivery.
type Bus struct {
	local  *Local
	rdb    *redis.Client
	origin string
	log    *logrus.Logger
}

// New creates a Bus. rdb may be nil, in which case the bus is local-only.
func New(local *Local, rdb *redis.Client, origin string, log *logrus.Logger) *Bus {
	return &Bus{local: local, rdb: rdb, origin: origin, log: log}
}

func channelName(room string) string {
	return fmt.Sprintf("room:%s", room)
}

// Publish fans payload out to the room's local subscribers immediately, then
// mirrors it to other instances as a detached task. Distributed failures are
// logged and never surfaced to the caller.
func (b *Bus) Publish(ctx context.Context, room string, payload []byte) {
	b.local.Publish(room, payload)

	if b.rdb == nil {
		return
	}

	env, err := json.Marshal(envelope{Origin: b.origin, Data: payload})
	if err != nil {
		b.log.WithError(err).Error("marshal broadcast envelope")
		return
	}

	go func() {
		// The mirror outlives the request: keep the caller's values but
		// detach from its cancellation, bounded by publishTimeout.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := b.rdb.Publish(pubCtx, channelName(room), env).Err(); err != nil {
			b.log.WithError(err).WithField("room", room).
				Warn("distributed publish failed, delivered local-only")
		}
	}()
}

// Subscribe attaches a local subscriber to the room.
func (b *Bus) Subscribe(room string) *Subscription {
	return b.local.Subscribe(room)
}

// SubscribeDistributed opens the distributed channel for a room and relays
// every foreign-origin payload into the local multiplexer. It returns a stop
// function; the connection registry calls it when the last local subscriber
// for the room leaves. Returns a no-op stop when the bus is local-only.
func (b *Bus) SubscribeDistributed(room string) func() {
	if b.rdb == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.rdb.Subscribe(ctx, channelName(room))

	go func() {
		for msg := range pubsub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.WithError(err).WithField("room", room).
					Warn("dropping malformed distributed payload")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.local.Publish(room, env.Data)
		}
	}()

	return func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			b.log.WithError(err).WithField("room", room).
				Warn("closing distributed subscription")
		}
	}
}
