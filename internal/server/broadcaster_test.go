package server

import (
	"fmt"
	"testing"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish([]byte("hello"))

	for i, sub := range []*Subscriber{s1, s2} {
		select {
		case msg := <-sub.C:
			if string(msg) != "hello" {
				t.Fatalf("subscriber %d: unexpected message %q", i, msg)
			}
		default:
			t.Fatalf("subscriber %d: no message delivered", i)
		}
	}
}

func TestBroadcasterLaggingSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer sub.Close()

	// Well past the buffer size, without a single read. Publish must
	// return every time.
	for i := 0; i < subscriberBufferSize*3; i++ {
		b.Publish([]byte(fmt.Sprintf("msg-%d", i)))
	}

	// The oldest messages were shed; what remains is the newest window.
	first := <-sub.C
	if string(first) != fmt.Sprintf("msg-%d", subscriberBufferSize*2) {
		t.Fatalf("expected oldest surviving message msg-%d, got %s", subscriberBufferSize*2, first)
	}

	drained := 1
	for {
		select {
		case <-sub.C:
			drained++
		default:
			if drained != subscriberBufferSize {
				t.Fatalf("expected a full buffer of %d messages, got %d", subscriberBufferSize, drained)
			}
			return
		}
	}
}

func TestBroadcasterCloseDetaches(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	sub.Close()
	sub.Close() // idempotent

	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", n)
	}
	if _, open := <-sub.C; open {
		t.Fatal("expected channel closed after detach")
	}

	// Publishing after the subscriber is gone must not panic.
	b.Publish([]byte("late"))
}
