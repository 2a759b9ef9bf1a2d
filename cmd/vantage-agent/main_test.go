package main

import (
	"testing"
	"time"
)

func TestReconnectDelayLadder(t *testing.T) {
	var delay time.Duration
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		time.Minute,
		time.Minute,
	}
	for i, expected := range want {
		delay = reconnectDelay(delay, time.Second)
		if delay != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, expected, delay)
		}
	}
}

func TestReconnectDelayResetsAfterLongSession(t *testing.T) {
	delay := time.Minute
	if got := reconnectDelay(delay, 2*time.Hour); got != reconnectMin {
		t.Fatalf("expected reset to %s after long session, got %s", reconnectMin, got)
	}
}

func TestReconnectDelayShortSessionKeepsClimbing(t *testing.T) {
	if got := reconnectDelay(4*time.Second, 500*time.Millisecond); got != 8*time.Second {
		t.Fatalf("expected 8s, got %s", got)
	}
}
