package models

import "time"

// Snapshot is one point-in-time bundle of host metrics produced by an agent.
// It is immutable once assembled; every sub-field reflects state at or before
// Timestamp. The ping batch is the most recently completed probe run and may
// be up to one probe interval stale.
type Snapshot struct {
	Timestamp   time.Time      `json:"timestamp"`
	Hostname    string         `json:"hostname"`
	OS          OSInfo         `json:"os"`
	CPU         CPUMetrics     `json:"cpu"`
	Memory      MemoryMetrics  `json:"memory"`
	Disks       []DiskMetrics  `json:"disks"`
	Network     NetworkMetrics `json:"network"`
	Uptime      uint64         `json:"uptime"`
	LoadAverage LoadAverage    `json:"load_average"`
	Ping        *PingMetrics   `json:"ping,omitempty"`
	Version     string         `json:"version,omitempty"`
	IPAddresses []string       `json:"ip_addresses,omitempty"`
}

type OSInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Kernel  string `json:"kernel"`
	Arch    string `json:"arch"`
}

type CPUMetrics struct {
	Brand     string    `json:"brand"`
	Cores     int       `json:"cores"`
	Usage     float64   `json:"usage"`
	Frequency uint64    `json:"frequency"`
	PerCore   []float64 `json:"per_core"`
}

type MemoryMetrics struct {
	Total        uint64         `json:"total"`
	Used         uint64         `json:"used"`
	Available    uint64         `json:"available"`
	SwapTotal    uint64         `json:"swap_total"`
	SwapUsed     uint64         `json:"swap_used"`
	UsagePercent float64        `json:"usage_percent"`
	Modules      []MemoryModule `json:"modules,omitempty"`
}

// MemoryModule describes one populated DIMM slot. Every field except Size may
// be absent when the platform cannot report it.
type MemoryModule struct {
	Slot         string `json:"slot,omitempty"`
	Size         uint64 `json:"size"`
	MemType      string `json:"mem_type,omitempty"`
	Speed        uint32 `json:"speed,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// DiskMetrics describes one physical device with its partitions merged in.
type DiskMetrics struct {
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Serial       string   `json:"serial,omitempty"`
	Total        uint64   `json:"total"`
	DiskType     string   `json:"disk_type,omitempty"`
	MountPoints  []string `json:"mount_points,omitempty"`
	UsagePercent float64  `json:"usage_percent"`
	Used         uint64   `json:"used"`
}

type NetworkMetrics struct {
	Interfaces []NetworkInterface `json:"interfaces"`
	TotalRx    uint64             `json:"total_rx"`
	TotalTx    uint64             `json:"total_tx"`
	RxSpeed    uint64             `json:"rx_speed"`
	TxSpeed    uint64             `json:"tx_speed"`
}

type NetworkInterface struct {
	Name      string `json:"name"`
	MAC       string `json:"mac,omitempty"`
	Speed     uint32 `json:"speed,omitempty"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
}

type LoadAverage struct {
	One     float64 `json:"one"`
	Five    float64 `json:"five"`
	Fifteen float64 `json:"fifteen"`
}

// Ping target status values.
const (
	PingStatusOK      = "ok"
	PingStatusTimeout = "timeout"
	PingStatusError   = "error"
)

type PingMetrics struct {
	Targets []PingTarget `json:"targets"`
}

// PingTarget is the result of probing a single host. LatencyMs is nil when no
// reply was received.
type PingTarget struct {
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	LatencyMs  *float64 `json:"latency_ms"`
	PacketLoss float64  `json:"packet_loss"`
	Status     string   `json:"status"`
}

// PingTargetConfig names a host an agent should probe.
type PingTargetConfig struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// MeanPingLatency returns the average latency across targets that produced a
// reply, or false when no target did.
func (p *PingMetrics) MeanPingLatency() (float64, bool) {
	if p == nil {
		return 0, false
	}
	var sum float64
	var n int
	for _, t := range p.Targets {
		if t.LatencyMs != nil {
			sum += *t.LatencyMs
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
