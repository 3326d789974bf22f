package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for payload")
		return nil
	}
}

func TestPublishReachesAllRoomSubscribers(t *testing.T) {
	l := NewLocal()
	a := l.Subscribe("v1")
	b := l.Subscribe("v1")

	l.Publish("v1", []byte("hello"))

	if got := string(recv(t, a)); got != "hello" {
		t.Fatalf("a got %q", got)
	}
	if got := string(recv(t, b)); got != "hello" {
		t.Fatalf("b got %q", got)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	l := NewLocal()
	a := l.Subscribe("v1")
	b := l.Subscribe("v2")

	l.Publish("v1", []byte("one"))

	if got := string(recv(t, a)); got != "one" {
		t.Fatalf("a got %q", got)
	}
	select {
	case msg := <-b.C:
		t.Fatalf("v2 subscriber received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoDeliveryAfterClose(t *testing.T) {
	l := NewLocal()
	sub := l.Subscribe("v1")
	sub.Close()

	l.Publish("v1", []byte("late"))

	if msg, ok := <-sub.C; ok {
		t.Fatalf("received %q on closed subscription", msg)
	}
	if n := l.Subscribers("v1"); n != 0 {
		t.Fatalf("room should be torn down, has %d subscribers", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	l := NewLocal()
	sub := l.Subscribe("v1")
	sub.Close()
	sub.Close()
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	l := NewLocal()
	sub := l.Subscribe("v1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			l.Publish("v1", []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
	sub.Close()
}

func TestConcurrentSubscribePublish(t *testing.T) {
	l := NewLocal()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("v%d", i%4)
			for j := 0; j < 50; j++ {
				sub := l.Subscribe(room)
				l.Publish(room, []byte("m"))
				sub.Close()
			}
		}(i)
	}
	wg.Wait()
}
