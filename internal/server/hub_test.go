package server

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/bus"
)

func newTestHub() (*Hub, *bus.Bus) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	b := bus.New(bus.NewLocal(), nil, "test-instance", log)
	return NewHub(b, log), b
}

func newTestClient(hub *Hub) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(nil, hub, log, "u1", "v1", "live", func(*Client, InboundMessage) {})
}

func awaitSend(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload := <-c.send:
		return payload
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
		return nil
	}
}

func TestJoinDeliversRoomTraffic(t *testing.T) {
	hub, b := newTestHub()
	c := newTestClient(hub)

	hub.Join(c, "v1")
	b.Publish(context.Background(), "v1", []byte("hello"))

	if got := string(awaitSend(t, c)); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub, b := newTestHub()
	c := newTestClient(hub)

	hub.Join(c, "v1")
	hub.Leave(c, "v1")
	b.Publish(context.Background(), "v1", []byte("late"))

	select {
	case payload := <-c.send:
		t.Fatalf("received %q after leave", payload)
	case <-time.After(50 * time.Millisecond):
	}
	if n := hub.Members("v1"); n != 0 {
		t.Fatalf("room still has %d members", n)
	}
}

func TestJoinIsIdempotentPerRoom(t *testing.T) {
	hub, _ := newTestHub()
	c := newTestClient(hub)

	hub.Join(c, "v1")
	hub.Join(c, "v1")

	if n := hub.Members("v1"); n != 1 {
		t.Fatalf("members = %d, want 1", n)
	}
}

func TestRelayLifecycleFollowsMembership(t *testing.T) {
	hub, _ := newTestHub()
	a := newTestClient(hub)
	b := newTestClient(hub)

	hub.Join(a, "v1")
	hub.Join(b, "v1")

	hub.mu.Lock()
	relays := len(hub.relayStops)
	hub.mu.Unlock()
	if relays != 1 {
		t.Fatalf("one relay per populated room, got %d", relays)
	}

	// Relay survives until the last member leaves.
	hub.Leave(a, "v1")
	hub.mu.Lock()
	relays = len(hub.relayStops)
	hub.mu.Unlock()
	if relays != 1 {
		t.Fatalf("relay stopped with a member still attached")
	}

	hub.Leave(b, "v1")
	hub.mu.Lock()
	relays = len(hub.relayStops)
	hub.mu.Unlock()
	if relays != 0 {
		t.Fatalf("relay not released after last leave")
	}
}

func TestLeaveAllDetachesEveryRoom(t *testing.T) {
	hub, b := newTestHub()
	c := newTestClient(hub)

	hub.Join(c, "v1")
	hub.Join(c, "user:u1")
	hub.LeaveAll(c)

	b.Publish(context.Background(), "v1", []byte("x"))
	b.Publish(context.Background(), "user:u1", []byte("y"))

	select {
	case payload := <-c.send:
		t.Fatalf("received %q after leave-all", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentMembershipChurn(t *testing.T) {
	hub, b := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("v%d", i%3)
			for j := 0; j < 50; j++ {
				c := newTestClient(hub)
				hub.Join(c, room)
				b.Publish(context.Background(), room, []byte("m"))
				hub.LeaveAll(c)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		room := fmt.Sprintf("v%d", i)
		if n := hub.Members(room); n != 0 {
			t.Fatalf("room %s still has %d members", room, n)
		}
	}

	// Relays open outside the hub mutex; churn that empties a room mid-setup
	// must still converge to zero running relays.
	hub.mu.Lock()
	relays := len(hub.relayStops)
	hub.mu.Unlock()
	if relays != 0 {
		t.Fatalf("%d relays leaked after churn", relays)
	}
}
