package agent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"

	"vantage/internal/models"
)

// SystemProber reads host facts through gopsutil, with Linux sysfs reads for
// details gopsutil does not expose (physical disk sizes, link speed, the
// virtual-interface flag). Every source is independent: one failing source
// leaves its field empty and never fails the whole probe.
type SystemProber struct{}

func NewSystemProber() *SystemProber {
	return &SystemProber{}
}

func (s *SystemProber) Probe(ctx context.Context) (HostFacts, error) {
	var facts HostFacts

	if info, err := host.InfoWithContext(ctx); err == nil {
		facts.Hostname = info.Hostname
		facts.Uptime = info.Uptime
		facts.OS = models.OSInfo{
			Name:    info.Platform,
			Version: info.PlatformVersion,
			Kernel:  info.KernelVersion,
			Arch:    runtime.GOARCH,
		}
	}

	facts.CPU = s.probeCPU(ctx)
	facts.Memory = s.probeMemory(ctx)
	facts.Disks, facts.Partitions = s.probeDisks(ctx)
	facts.Interfaces = s.probeInterfaces(ctx)

	if avg, err := load.AvgWithContext(ctx); err == nil {
		facts.LoadAverage = models.LoadAverage{One: avg.Load1, Five: avg.Load5, Fifteen: avg.Load15}
	}
	facts.IPAddresses = s.probeIPAddresses(ctx)

	return facts, nil
}

func (s *SystemProber) probeCPU(ctx context.Context) CPUFacts {
	var facts CPUFacts
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		facts.Brand = infos[0].ModelName
		facts.FrequencyMHz = uint64(infos[0].Mhz)
	}
	// Zero interval compares against the previous call, which suits a
	// periodic sampler.
	if perCore, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		facts.PerCore = perCore
	}
	return facts
}

func (s *SystemProber) probeMemory(ctx context.Context) models.MemoryMetrics {
	var m models.MemoryMetrics
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.Total = vm.Total
		m.Used = vm.Used
		m.Available = vm.Available
		m.UsagePercent = vm.UsedPercent
	}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		m.SwapTotal = swap.Total
		m.SwapUsed = swap.Used
	}
	m.Modules = probeMemoryModules()
	return m
}

func (s *SystemProber) probeDisks(ctx context.Context) ([]PhysicalDisk, []PartitionUsage) {
	disks := probePhysicalDisks()

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return disks, nil
	}
	partitions := make([]PartitionUsage, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p.Mountpoint, "/snap") || strings.HasPrefix(p.Mountpoint, "/boot/efi") {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		partitions = append(partitions, PartitionUsage{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Used:       usage.Used,
		})
	}

	if len(disks) == 0 {
		// Platforms without sysfs fall back to one pseudo-device per
		// partition so usage is still reported.
		for _, p := range parts {
			usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
			if err != nil || usage.Total == 0 {
				continue
			}
			disks = append(disks, PhysicalDisk{
				Name:  strings.TrimPrefix(p.Device, "/dev/"),
				Total: usage.Total,
			})
		}
	}
	return disks, partitions
}

// probePhysicalDisks enumerates block devices from /sys/block on Linux.
func probePhysicalDisks() []PhysicalDisk {
	if runtime.GOOS != "linux" {
		return nil
	}
	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil
	}
	var disks []PhysicalDisk
	for _, entry := range entries {
		name := entry.Name()
		if hasAnyPrefix(name, "loop", "ram", "dm-", "sr", "fd", "zram") {
			continue
		}
		total := readSysUint(filepath.Join("/sys/block", name, "size")) * 512
		if total == 0 {
			continue
		}
		disks = append(disks, PhysicalDisk{
			Name:     name,
			Model:    readSysString(filepath.Join("/sys/block", name, "device", "model")),
			Serial:   readSysString(filepath.Join("/sys/block", name, "device", "serial")),
			DiskType: detectDiskType(name),
			Total:    total,
		})
	}
	return disks
}

func detectDiskType(device string) string {
	if strings.HasPrefix(device, "nvme") {
		return "NVMe"
	}
	switch readSysString(filepath.Join("/sys/block", device, "queue", "rotational")) {
	case "0":
		return "SSD"
	case "1":
		return "HDD"
	}
	return ""
}

func (s *SystemProber) probeInterfaces(ctx context.Context) []InterfaceCounters {
	counters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil
	}

	macs := make(map[string]string)
	if ifaces, err := gopsnet.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			macs[iface.Name] = strings.ToUpper(iface.HardwareAddr)
		}
	}

	out := make([]InterfaceCounters, 0, len(counters))
	for _, ctr := range counters {
		iface := InterfaceCounters{
			Name:      ctr.Name,
			MAC:       macs[ctr.Name],
			RxBytes:   ctr.BytesRecv,
			TxBytes:   ctr.BytesSent,
			RxPackets: ctr.PacketsRecv,
			TxPackets: ctr.PacketsSent,
		}
		if iface.MAC == "00:00:00:00:00:00" {
			iface.MAC = ""
		}
		if runtime.GOOS == "linux" {
			if _, err := os.Stat(filepath.Join("/sys/devices/virtual/net", ctr.Name)); err == nil {
				iface.Virtual = true
			}
			if speed := readSysUint(filepath.Join("/sys/class/net", ctr.Name, "speed")); speed > 0 && speed < 1<<32 {
				iface.SpeedMbps = uint32(speed)
			}
		}
		out = append(out, iface)
	}
	return out
}

func (s *SystemProber) probeIPAddresses(ctx context.Context) []string {
	ifaces, err := gopsnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil
	}
	var ips []string
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			ip := addr.Addr
			if i := strings.Index(ip, "/"); i >= 0 {
				ip = ip[:i]
			}
			if strings.Contains(ip, ".") && !strings.HasPrefix(ip, "127.") {
				ips = append(ips, ip)
			}
		}
	}
	return ips
}

func readSysString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysUint(path string) uint64 {
	v, err := strconv.ParseUint(readSysString(path), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
