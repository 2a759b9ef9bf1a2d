package agent

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"vantage/internal/models"
)

// probeMemoryModules reads DIMM facts from dmidecode. Requires root on most
// systems; any failure yields an empty list, which serializes as absent.
func probeMemoryModules() []models.MemoryModule {
	if runtime.GOOS != "linux" {
		return nil
	}
	out, err := exec.Command("dmidecode", "-t", "memory").Output()
	if err != nil {
		return nil
	}
	return parseDmidecodeMemory(string(out))
}

func parseDmidecodeMemory(out string) []models.MemoryModule {
	var modules []models.MemoryModule
	var current *models.MemoryModule

	flush := func() {
		if current != nil && current.Size > 0 {
			modules = append(modules, *current)
		}
		current = nil
	}

	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "Memory Device") {
			flush()
			current = &models.MemoryModule{}
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Size:"):
			current.Size = parseDmiSize(strings.TrimSpace(strings.TrimPrefix(line, "Size:")))
		case strings.HasPrefix(line, "Type:"):
			val := strings.TrimSpace(strings.TrimPrefix(line, "Type:"))
			if val != "" && val != "Unknown" {
				current.MemType = val
			}
		case strings.HasPrefix(line, "Speed:"):
			fields := strings.Fields(strings.TrimPrefix(line, "Speed:"))
			if len(fields) > 0 {
				if speed, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
					current.Speed = uint32(speed)
				}
			}
		case strings.HasPrefix(line, "Locator:"):
			current.Slot = strings.TrimSpace(strings.TrimPrefix(line, "Locator:"))
		case strings.HasPrefix(line, "Manufacturer:"):
			val := strings.TrimSpace(strings.TrimPrefix(line, "Manufacturer:"))
			if val != "" && val != "Unknown" && val != "Not Specified" {
				current.Manufacturer = val
			}
		}
	}
	flush()
	return modules
}

func parseDmiSize(val string) uint64 {
	if val == "No Module Installed" {
		return 0
	}
	fields := strings.Fields(val)
	if len(fields) < 2 {
		return 0
	}
	num, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(fields[1]) {
	case "GB":
		return num << 30
	case "MB":
		return num << 20
	case "KB":
		return num << 10
	}
	return num
}
