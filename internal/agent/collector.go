package agent

import (
	"context"
	"sort"
	"time"

	"vantage/internal/models"
)

// HostFacts groups the raw readings a HostProber harvests on one refresh.
// Any field may be zero/empty when its source was unavailable; the collector
// absorbs that as absent data rather than failing the snapshot.
type HostFacts struct {
	Hostname    string
	OS          models.OSInfo
	CPU         CPUFacts
	Memory      models.MemoryMetrics
	Disks       []PhysicalDisk
	Partitions  []PartitionUsage
	Interfaces  []InterfaceCounters
	Uptime      uint64
	LoadAverage models.LoadAverage
	IPAddresses []string
}

// CPUFacts carries per-core usage; the collector derives the aggregate figure
// from these so the two stay numerically consistent.
type CPUFacts struct {
	Brand        string
	FrequencyMHz uint64
	PerCore      []float64
}

// PhysicalDisk is one block device as reported by the platform, before any
// partition usage has been attributed to it.
type PhysicalDisk struct {
	Name     string
	Model    string
	Serial   string
	DiskType string
	Total    uint64
}

// PartitionUsage is one mounted filesystem.
type PartitionUsage struct {
	Device     string
	Mountpoint string
	Used       uint64
}

// InterfaceCounters is one network interface with cumulative traffic
// counters. Virtual is set when the platform reports the interface as
// virtual (e.g. /sys/devices/virtual/net on Linux).
type InterfaceCounters struct {
	Name      string
	MAC       string
	SpeedMbps uint32
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
	Virtual   bool
}

// HostProber harvests raw OS facts. Implementations live at the platform
// edge; the collector owns all merge and aggregation logic.
type HostProber interface {
	Probe(ctx context.Context) (HostFacts, error)
}

// DiskClassifier maps a partition device name to its parent physical device
// name, or "" when no parent is known. Platform naming heuristics (sda1 ->
// sda, nvme0n1p1 -> nvme0n1) stay behind this interface.
type DiskClassifier interface {
	ParentDevice(partition string) string
}

// InterfaceClassifier decides whether an interface is virtual and should be
// excluded from reporting and from the totals feeding the rate tracker.
type InterfaceClassifier interface {
	IsVirtual(iface InterfaceCounters) bool
}

// Collector assembles coherent point-in-time Snapshots. It exclusively owns
// its RateTracker; the latency probe is shared only through its result slot.
type Collector struct {
	prober     HostProber
	rates      *RateTracker
	probe      *LatencyProbe
	disks      DiskClassifier
	interfaces InterfaceClassifier
	version    string
	now        func() time.Time
}

func NewCollector(prober HostProber, probe *LatencyProbe, disks DiskClassifier, interfaces InterfaceClassifier, version string) *Collector {
	return &Collector{
		prober:     prober,
		rates:      NewRateTracker(),
		probe:      probe,
		disks:      disks,
		interfaces: interfaces,
		version:    version,
		now:        time.Now,
	}
}

// Collect refreshes host facts and assembles one Snapshot. The ping batch is
// whatever the latency probe last completed; before the first cycle it is
// absent, never awaited.
func (c *Collector) Collect(ctx context.Context) (models.Snapshot, error) {
	facts, err := c.prober.Probe(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}

	now := c.now()
	network := c.assembleNetwork(facts.Interfaces, now)

	snap := models.Snapshot{
		Timestamp:   now.UTC(),
		Hostname:    facts.Hostname,
		OS:          facts.OS,
		CPU:         assembleCPU(facts.CPU),
		Memory:      facts.Memory,
		Disks:       c.mergeDisks(facts.Disks, facts.Partitions),
		Network:     network,
		Uptime:      facts.Uptime,
		LoadAverage: facts.LoadAverage,
		Ping:        c.latestPing(),
		Version:     c.version,
		IPAddresses: facts.IPAddresses,
	}
	return snap, nil
}

func (c *Collector) latestPing() *models.PingMetrics {
	if c.probe == nil {
		return nil
	}
	return c.probe.Latest()
}

// assembleCPU reports the aggregate as the arithmetic mean of the per-core
// values rather than a separately sampled figure.
func assembleCPU(facts CPUFacts) models.CPUMetrics {
	var sum float64
	for _, v := range facts.PerCore {
		sum += v
	}
	var usage float64
	if len(facts.PerCore) > 0 {
		usage = sum / float64(len(facts.PerCore))
	}
	return models.CPUMetrics{
		Brand:     facts.Brand,
		Cores:     len(facts.PerCore),
		Usage:     usage,
		Frequency: facts.FrequencyMHz,
		PerCore:   facts.PerCore,
	}
}

// mergeDisks folds partition usage into parent physical devices. Devices
// with zero reported size are dropped entirely.
func (c *Collector) mergeDisks(disks []PhysicalDisk, partitions []PartitionUsage) []models.DiskMetrics {
	byName := make(map[string]*models.DiskMetrics, len(disks))
	order := make([]string, 0, len(disks))
	for _, d := range disks {
		if d.Total == 0 {
			continue
		}
		byName[d.Name] = &models.DiskMetrics{
			Name:     d.Name,
			Model:    d.Model,
			Serial:   d.Serial,
			DiskType: d.DiskType,
			Total:    d.Total,
		}
		order = append(order, d.Name)
	}

	for _, p := range partitions {
		parent := c.disks.ParentDevice(p.Device)
		disk, ok := byName[parent]
		if !ok {
			continue
		}
		if p.Mountpoint != "" && p.Mountpoint != "none" {
			disk.MountPoints = append(disk.MountPoints, p.Mountpoint)
		}
		disk.Used += p.Used
	}

	out := make([]models.DiskMetrics, 0, len(order))
	for _, name := range order {
		d := byName[name]
		if d.Total > 0 {
			d.UsagePercent = float64(d.Used) / float64(d.Total) * 100
		}
		sort.Strings(d.MountPoints)
		out = append(out, *d)
	}
	return out
}

// assembleNetwork filters out virtual interfaces, totals the rest, and feeds
// the totals through the rate tracker.
func (c *Collector) assembleNetwork(interfaces []InterfaceCounters, now time.Time) models.NetworkMetrics {
	var totalRx, totalTx uint64
	reported := make([]models.NetworkInterface, 0, len(interfaces))
	for _, iface := range interfaces {
		if c.interfaces.IsVirtual(iface) {
			continue
		}
		totalRx += iface.RxBytes
		totalTx += iface.TxBytes
		reported = append(reported, models.NetworkInterface{
			Name:      iface.Name,
			MAC:       iface.MAC,
			Speed:     iface.SpeedMbps,
			RxBytes:   iface.RxBytes,
			TxBytes:   iface.TxBytes,
			RxPackets: iface.RxPackets,
			TxPackets: iface.TxPackets,
		})
	}

	rxSpeed, txSpeed := c.rates.Observe(totalRx, totalTx, now)
	return models.NetworkMetrics{
		Interfaces: reported,
		TotalRx:    totalRx,
		TotalTx:    totalTx,
		RxSpeed:    rxSpeed,
		TxSpeed:    txSpeed,
	}
}
