package agent

import (
	"context"
	"sync"
	"time"

	"vantage/internal/models"
)

// DefaultProbeInterval is how often the latency probe runs a full cycle,
// independent of the collection cadence.
const DefaultProbeInterval = 10 * time.Second

// Pinger issues probe packets to a single host. Implementations send 3
// packets with a 2-second per-packet timeout and report the average latency
// (nil when no reply arrived) and packet loss percentage. A non-nil error
// means the probe mechanism itself failed to run, not that the host was
// unreachable.
type Pinger interface {
	Ping(host string) (latencyMs *float64, packetLoss float64, err error)
}

// defaultTargets are probed when no custom list is configured. The gateway
// entry has an empty host and is resolved lazily to the detected default
// gateway; it is skipped when no gateway is known.
var defaultTargets = []models.PingTargetConfig{
	{Name: "Google DNS", Host: "8.8.8.8"},
	{Name: "Cloudflare", Host: "1.1.1.1"},
	{Name: "Local Gateway", Host: ""},
}

// LatencyProbe measures latency and packet loss to a target list on its own
// schedule and publishes each completed batch into a single slot. Readers see
// the most recently completed run, which may be up to one interval stale;
// that staleness is intentional so a slow or hanging probe never stalls
// collection.
type LatencyProbe struct {
	pinger   Pinger
	interval time.Duration

	gatewayOnce sync.Once
	gatewayFn   func() string
	gateway     string

	mu      sync.Mutex
	latest  *models.PingMetrics
	targets []models.PingTargetConfig
}

// NewLatencyProbe builds a probe over the given Pinger. gatewayFn detects the
// default gateway address and is invoked at most once, on the first cycle
// that needs it; it may be nil when gateway probing is unwanted.
func NewLatencyProbe(pinger Pinger, gatewayFn func() string) *LatencyProbe {
	return &LatencyProbe{
		pinger:    pinger,
		interval:  DefaultProbeInterval,
		gatewayFn: gatewayFn,
	}
}

// Run executes probe cycles until ctx is cancelled. The first cycle starts
// immediately so collectors are not blind for a full interval.
func (p *LatencyProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunCycle()
	for {
		select {
		case <-ticker.C:
			p.RunCycle()
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle probes every current target once and atomically replaces the
// result slot with the new batch. A single target failure never aborts the
// batch; it is reported as status error or timeout for that target only.
func (p *LatencyProbe) RunCycle() {
	targets := p.currentTargets()

	results := make([]models.PingTarget, 0, len(targets))
	for _, t := range targets {
		host := t.Host
		if host == "" {
			host = p.detectGateway()
			if host == "" {
				continue
			}
		}
		results = append(results, p.probeOne(t.Name, host))
	}

	batch := &models.PingMetrics{Targets: results}

	p.mu.Lock()
	p.latest = batch
	p.mu.Unlock()
}

func (p *LatencyProbe) probeOne(name, host string) models.PingTarget {
	latency, loss, err := p.pinger.Ping(host)
	status := models.PingStatusOK
	switch {
	case err != nil:
		status = models.PingStatusError
		latency = nil
		loss = 100
	case loss >= 100:
		status = models.PingStatusTimeout
	}
	return models.PingTarget{
		Name:       name,
		Host:       host,
		LatencyMs:  latency,
		PacketLoss: loss,
		Status:     status,
	}
}

// Latest returns the most recently completed batch, or nil when no cycle has
// finished yet. The returned batch is never mutated afterwards.
func (p *LatencyProbe) Latest() *models.PingMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// SetTargets replaces the target list used by the next cycle. An empty list
// reverts to the built-in defaults rather than disabling probing.
func (p *LatencyProbe) SetTargets(targets []models.PingTargetConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(targets) == 0 {
		p.targets = nil
		return
	}
	p.targets = append([]models.PingTargetConfig(nil), targets...)
}

func (p *LatencyProbe) currentTargets() []models.PingTargetConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.targets != nil {
		return p.targets
	}
	return defaultTargets
}

func (p *LatencyProbe) detectGateway() string {
	p.gatewayOnce.Do(func() {
		if p.gatewayFn != nil {
			p.gateway = p.gatewayFn()
		}
	})
	return p.gateway
}
