package agent

import (
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ExecPinger shells out to the system ping binary: 3 packets, 2-second
// per-packet timeout. Output parsing covers the Linux, macOS, and Windows
// summary formats.
type ExecPinger struct{}

const (
	pingPacketCount  = 3
	pingTimeout      = 2 * time.Second
	pingTotalTimeout = 8 * time.Second
)

var (
	lossRe       = regexp.MustCompile(`(\d+(?:\.\d+)?)%\s*(?:packet\s+)?loss`)
	transmitRe   = regexp.MustCompile(`(\d+)\s+packets\s+transmitted.*?(\d+)\s+(?:packets\s+)?received`)
	winAverageRe = regexp.MustCompile(`Average\s*[=:]\s*(\d+(?:\.\d+)?)\s*ms`)
	msRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*ms`)
)

func (ExecPinger) Ping(host string) (*float64, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTotalTimeout)
	defer cancel()

	count := strconv.Itoa(pingPacketCount)
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "ping", "-n", count, "-w", "2000", host)
	case "darwin":
		cmd = exec.CommandContext(ctx, "ping", "-c", count, "-W", "2000", host)
	default:
		cmd = exec.CommandContext(ctx, "ping", "-c", count, "-W", "2", host)
	}

	output, err := cmd.CombinedOutput()
	if len(output) == 0 && err != nil {
		// ping itself could not run; a non-zero exit with output still
		// carries loss/latency information and is parsed below.
		return nil, 100, err
	}

	out := string(output)
	return parsePingOutput(out), parsePacketLoss(out, err == nil), nil
}

func parsePacketLoss(out string, cleanExit bool) float64 {
	if m := lossRe.FindStringSubmatch(out); len(m) > 1 {
		if loss, err := strconv.ParseFloat(m[1], 64); err == nil {
			return loss
		}
	}
	if m := transmitRe.FindStringSubmatch(out); len(m) > 2 {
		sent, err1 := strconv.ParseFloat(m[1], 64)
		recv, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && sent > 0 {
			return (sent - recv) / sent * 100
		}
	}
	if cleanExit {
		return 0
	}
	return 100
}

func parsePingOutput(out string) *float64 {
	// Unix summary: "rtt min/avg/max/mdev = 1.2/2.3/3.4/0.5 ms"
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(strings.ToLower(line), "avg") || !strings.Contains(line, "/") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) < 2 {
			continue
		}
		fields := strings.Fields(parts[1])
		if len(fields) == 0 {
			continue
		}
		nums := strings.Split(fields[0], "/")
		if len(nums) >= 2 {
			if lat, err := strconv.ParseFloat(nums[1], 64); err == nil {
				return &lat
			}
		}
	}
	// Windows summary: "Average = 12ms"
	if m := winAverageRe.FindStringSubmatch(out); len(m) > 1 {
		if lat, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &lat
		}
	}
	// Last resort: the final "Nms" figure is usually the average.
	if ms := msRe.FindAllStringSubmatch(out, -1); len(ms) > 0 {
		if lat, err := strconv.ParseFloat(ms[len(ms)-1][1], 64); err == nil {
			return &lat
		}
	}
	return nil
}

// DetectGateway returns the default gateway address, or "" when it cannot be
// determined. Suitable as the gatewayFn for NewLatencyProbe.
func DetectGateway() string {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("route", "-n", "get", "default").Output()
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(out), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "gateway:") {
				if _, addr, ok := strings.Cut(line, ":"); ok {
					return strings.TrimSpace(addr)
				}
			}
		}
	case "windows":
		out, err := exec.Command("cmd", "/C", "route", "print", "0.0.0.0").Output()
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(out), "\n") {
			fields := strings.Fields(line)
			if len(fields) >= 3 && fields[0] == "0.0.0.0" && fields[2] != "0.0.0.0" && strings.Contains(fields[2], ".") {
				return fields[2]
			}
		}
	default:
		out, err := exec.Command("ip", "route", "show", "default").Output()
		if err != nil {
			return ""
		}
		// default via 192.168.1.1 dev eth0
		for _, word := range strings.Fields(string(out)) {
			if strings.Contains(word, ".") && !strings.Contains(word, "/") {
				return word
			}
		}
	}
	return ""
}
