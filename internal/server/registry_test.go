package server

import (
	"errors"
	"testing"
	"time"

	"vantage/internal/models"
)

func TestRegistrySendToUnknownAgent(t *testing.T) {
	r := NewAgentRegistry()
	err := r.Send("nope", models.AgentCommand{Type: models.MessageTypeSetPingTargets})
	if !errors.Is(err, ErrAgentNotConnected) {
		t.Fatalf("expected ErrAgentNotConnected, got %v", err)
	}
}

func TestRegistrySendDelivers(t *testing.T) {
	r := NewAgentRegistry()
	commands := r.Register("s1")

	cmd := models.AgentCommand{Type: models.MessageTypeSetPingTargets}
	if err := r.Send("s1", cmd); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-commands:
		if got.Type != cmd.Type {
			t.Fatalf("expected %q, got %q", cmd.Type, got.Type)
		}
	default:
		t.Fatal("expected a buffered command")
	}
}

func TestRegistryUnregisterClosesChannel(t *testing.T) {
	r := NewAgentRegistry()
	commands := r.Register("s1")
	r.Unregister("s1")

	if _, open := <-commands; open {
		t.Fatal("expected command channel to be closed")
	}
	if err := r.Send("s1", models.AgentCommand{}); !errors.Is(err, ErrAgentNotConnected) {
		t.Fatalf("expected ErrAgentNotConnected after unregister, got %v", err)
	}
}

func TestRegistryFullBufferEvictsAgent(t *testing.T) {
	r := NewAgentRegistry()
	commands := r.Register("s1")

	for i := 0; i < commandBufferSize; i++ {
		if err := r.Send("s1", models.AgentCommand{}); err != nil {
			t.Fatalf("fill send %d: %v", i, err)
		}
	}

	if err := r.Send("s1", models.AgentCommand{}); !errors.Is(err, ErrCommandBufferFull) {
		t.Fatalf("expected ErrCommandBufferFull, got %v", err)
	}

	// The stuck agent is dropped; its channel drains then closes.
	for i := 0; i < commandBufferSize; i++ {
		<-commands
	}
	if _, open := <-commands; open {
		t.Fatal("expected channel closed after eviction")
	}
	if _, ok := r.LastSeen("s1"); ok {
		t.Fatal("expected agent removed from registry")
	}
}

func TestRegistryRegisterReplacesOldConnection(t *testing.T) {
	r := NewAgentRegistry()
	first := r.Register("s1")
	second := r.Register("s1")

	if _, open := <-first; open {
		t.Fatal("expected first channel closed on re-register")
	}

	if err := r.Send("s1", models.AgentCommand{}); err != nil {
		t.Fatalf("send after re-register: %v", err)
	}
	select {
	case <-second:
	default:
		t.Fatal("expected command on the replacement channel")
	}
}

func TestRegistryTouchAndConnected(t *testing.T) {
	r := NewAgentRegistry()
	r.Register("s1")

	before, ok := r.LastSeen("s1")
	if !ok {
		t.Fatal("expected agent to be connected")
	}
	time.Sleep(5 * time.Millisecond)
	r.Touch("s1")
	after, _ := r.LastSeen("s1")
	if !after.After(before) {
		t.Fatalf("expected Touch to advance last seen: %v vs %v", before, after)
	}

	ids := r.Connected()
	if len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("unexpected connected set: %v", ids)
	}
}
