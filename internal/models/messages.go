package models

// Wire messages exchanged between agent and server over the WebSocket
// transport. Framing belongs to the transport; only the payload shapes
// matter to the pipeline.

const (
	MessageTypeAuth           = "auth"
	MessageTypeAuthSuccess    = "auth_success"
	MessageTypeMetrics        = "metrics"
	MessageTypeSetPingTargets = "set_ping_targets"
)

// AuthMessage is the first frame an agent sends after connecting.
type AuthMessage struct {
	Type     string `json:"type"`
	ServerID string `json:"server_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Version  string `json:"version,omitempty"`
}

// MetricsMessage carries one Snapshot from an agent.
type MetricsMessage struct {
	Type    string   `json:"type"`
	Metrics Snapshot `json:"metrics"`
}

// AgentCommand is a control message routed to one connected agent. An empty
// Targets list on set_ping_targets means "restore the built-in defaults".
type AgentCommand struct {
	Type    string             `json:"type"`
	Targets []PingTargetConfig `json:"targets,omitempty"`
}

// ViewerUpdate is one frame pushed to subscribed dashboard viewers.
type ViewerUpdate struct {
	Type     string   `json:"type"`
	ServerID string   `json:"server_id"`
	Metrics  Snapshot `json:"metrics"`
}
