package agent

import "strings"

// PrefixDiskClassifier attributes partitions to parent devices by name
// prefix: sda1 -> sda, nvme0n1p1 -> nvme0n1, mmcblk0p2 -> mmcblk0.
type PrefixDiskClassifier struct{}

func (PrefixDiskClassifier) ParentDevice(partition string) string {
	name := strings.TrimPrefix(partition, "/dev/")
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		// nvme0n1p1 -> nvme0n1: strip a trailing pN suffix.
		if i := strings.LastIndex(name, "p"); i > 0 && allDigits(name[i+1:]) {
			return name[:i]
		}
		return name
	}
	return strings.TrimRight(name, "0123456789")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// virtualInterfacePrefixes is the denylist of interface name prefixes that
// never count as physical hardware.
var virtualInterfacePrefixes = []string{
	"lo",
	"veth",
	"docker",
	"br-",
	"virbr",
	"vnet",
	"vmnet",
	"vbox",
	"tap",
	"tun",
	"dummy",
	"bond",
	"team",
	"wg",
	"tailscale",
	"utun",
	"gif",
	"stf",
	"awdl",
	"llw",
	"p2p",
}

// DenylistInterfaceClassifier excludes loopback and known-virtual interface
// names, plus anything the platform itself flagged as virtual.
type DenylistInterfaceClassifier struct{}

func (DenylistInterfaceClassifier) IsVirtual(iface InterfaceCounters) bool {
	if iface.Virtual {
		return true
	}
	name := strings.ToLower(iface.Name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
