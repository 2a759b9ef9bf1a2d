package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"vantage/internal/agent"
	"vantage/internal/models"
	"vantage/internal/version"
)

const (
	reconnectMin = 2 * time.Second
	reconnectMax = time.Minute
	writeWait    = 10 * time.Second
)

func main() {
	cfg, err := loadConfig(defaultConfigPath())
	if err != nil {
		log.Fatalf("agent config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("shutting down")
		cancel()
	}()

	probe := agent.NewLatencyProbe(agent.ExecPinger{}, agent.DetectGateway)
	go probe.Run(ctx)

	collector := agent.NewCollector(
		agent.NewSystemProber(),
		probe,
		agent.PrefixDiskClassifier{},
		agent.DenylistInterfaceClassifier{},
		version.String(),
	)

	interval := time.Duration(cfg.IntervalSecs) * time.Second
	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		err := runSession(ctx, cfg, collector, probe, interval)
		if ctx.Err() != nil {
			return
		}
		backoff = reconnectDelay(backoff, time.Since(start))
		if err != nil {
			log.Printf("session ended: %v (reconnecting in %s)", err, backoff)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// reconnectDelay picks the wait before the next dial attempt. Each
// short-lived session doubles the previous delay up to the cap; a session
// that stayed up past the cap starts the ladder over, so an agent that ran
// for days reconnects quickly after a blip.
func reconnectDelay(prev, sessionLen time.Duration) time.Duration {
	if sessionLen >= reconnectMax {
		return reconnectMin
	}
	if prev == 0 {
		return reconnectMin
	}
	next := prev * 2
	if next > reconnectMax {
		next = reconnectMax
	}
	return next
}

// runSession dials the dashboard, authenticates, and ships one snapshot per
// tick until the connection or context dies. Incoming frames are commands
// from the server.
func runSession(ctx context.Context, cfg *AgentConfig, collector *agent.Collector, probe *agent.LatencyProbe, interval time.Duration) error {
	conn, err := dial(ctx, cfg.DashboardURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(models.AuthMessage{
		Type:     models.MessageTypeAuth,
		ServerID: cfg.ServerID,
		Token:    cfg.AgentToken,
		Version:  version.String(),
	}); err != nil {
		return err
	}
	log.Printf("connected to %s as %s", cfg.DashboardURL, cfg.ServerID)

	// Reader goroutine: applies commands, signals connection loss.
	readErr := make(chan error, 1)
	go func() {
		for {
			var cmd models.AgentCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				readErr <- err
				return
			}
			if cmd.Type == models.MessageTypeSetPingTargets {
				probe.SetTargets(cmd.Targets)
				log.Printf("ping targets updated (%d targets)", len(cmd.Targets))
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap, err := collector.Collect(ctx)
			if err != nil {
				log.Printf("collect: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(models.MetricsMessage{
				Type:    models.MessageTypeMetrics,
				Metrics: snap,
			}); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		}
	}
}

func dial(ctx context.Context, dashboardURL string) (*websocket.Conn, error) {
	u, err := url.Parse(dashboardURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws/agent") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws/agent"
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
