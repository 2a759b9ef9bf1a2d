package server

import (
	"errors"
	"sync"
	"time"

	"vantage/internal/models"
)

// Distinct send failures: the caller can tell "never/no longer connected"
// apart from "connected but its buffer is stuck".
var (
	ErrAgentNotConnected = errors.New("agent not connected")
	ErrCommandBufferFull = errors.New("agent command buffer full")
)

// commandBufferSize bounds the per-agent inbound command queue.
const commandBufferSize = 8

type agentEntry struct {
	commands chan models.AgentCommand
	lastSeen time.Time
}

// AgentRegistry tracks currently-connected agents and their inbound command
// channels. Entries exist only while a connection is up; nothing here is
// persisted.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*agentEntry
}

func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]*agentEntry)}
}

// Register creates the command channel for a newly-connected agent and
// returns its receive side. Registering an id that is already present
// replaces the old entry; the previous channel is closed so its writer
// goroutine unwinds.
func (r *AgentRegistry) Register(serverID string) <-chan models.AgentCommand {
	entry := &agentEntry{
		commands: make(chan models.AgentCommand, commandBufferSize),
		lastSeen: time.Now(),
	}
	r.mu.Lock()
	if old, ok := r.agents[serverID]; ok {
		close(old.commands)
	}
	r.agents[serverID] = entry
	r.mu.Unlock()
	return entry.commands
}

// Unregister removes an agent and closes its command channel. Unknown ids
// are a no-op.
func (r *AgentRegistry) Unregister(serverID string) {
	r.mu.Lock()
	if entry, ok := r.agents[serverID]; ok {
		close(entry.commands)
		delete(r.agents, serverID)
	}
	r.mu.Unlock()
}

// Send routes a command to one connected agent without blocking. A full
// buffer means the agent's writer is stuck, so the entry is removed and
// ErrCommandBufferFull returned; an unknown id returns ErrAgentNotConnected.
// The send attempt happens under the read lock; channels are only closed
// under the write lock, so a send can never hit a closed channel.
func (r *AgentRegistry) Send(serverID string, cmd models.AgentCommand) error {
	r.mu.RLock()
	entry, ok := r.agents[serverID]
	if ok {
		select {
		case entry.commands <- cmd:
			r.mu.RUnlock()
			return nil
		default:
		}
	}
	r.mu.RUnlock()

	if !ok {
		return ErrAgentNotConnected
	}
	r.Unregister(serverID)
	return ErrCommandBufferFull
}

// Touch records activity from an agent.
func (r *AgentRegistry) Touch(serverID string) {
	r.mu.Lock()
	if entry, ok := r.agents[serverID]; ok {
		entry.lastSeen = time.Now()
	}
	r.mu.Unlock()
}

// LastSeen reports when an agent was last heard from; ok is false when the
// agent is not connected.
func (r *AgentRegistry) LastSeen(serverID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[serverID]
	if !ok {
		return time.Time{}, false
	}
	return entry.lastSeen, true
}

// Connected lists the ids of currently-connected agents.
func (r *AgentRegistry) Connected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}
