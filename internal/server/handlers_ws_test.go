package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vantage/internal/models"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func authAgent(t *testing.T, conn *websocket.Conn, serverID, token string) {
	t.Helper()
	if err := conn.WriteJSON(models.AuthMessage{
		Type:     models.MessageTypeAuth,
		ServerID: serverID,
		Token:    token,
	}); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read auth reply: %v", err)
	}
	if reply.Type != models.MessageTypeAuthSuccess {
		t.Fatalf("expected %q reply, got %q", models.MessageTypeAuthSuccess, reply.Type)
	}
}

func TestAgentWSIngestsMetrics(t *testing.T) {
	state := newTestState(t)
	srv := httptest.NewServer(testRouter(state))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/agent")
	defer conn.Close()
	authAgent(t, conn, "s1", "tok-1")

	waitFor(t, func() bool { _, ok := state.Registry.LastSeen("s1"); return ok }, "agent never registered")

	if err := conn.WriteJSON(models.MetricsMessage{
		Type:    models.MessageTypeMetrics,
		Metrics: models.Snapshot{Timestamp: time.Now().UTC(), Hostname: "web-1"},
	}); err != nil {
		t.Fatalf("write metrics: %v", err)
	}

	waitFor(t, func() bool {
		snap, ok := state.LatestSnapshot("s1")
		return ok && snap.Hostname == "web-1"
	}, "snapshot never ingested")
}

func TestAgentWSDisconnectUnregisters(t *testing.T) {
	state := newTestState(t)
	srv := httptest.NewServer(testRouter(state))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/agent")
	authAgent(t, conn, "s1", "tok-1")

	waitFor(t, func() bool { _, ok := state.Registry.LastSeen("s1"); return ok }, "agent never registered")

	conn.Close()

	waitFor(t, func() bool { _, ok := state.Registry.LastSeen("s1"); return !ok },
		"agent still registered after disconnect")
}

func TestAgentWSDeliversCommands(t *testing.T) {
	state := newTestState(t)
	srv := httptest.NewServer(testRouter(state))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/agent")
	defer conn.Close()
	authAgent(t, conn, "s1", "tok-1")

	waitFor(t, func() bool { _, ok := state.Registry.LastSeen("s1"); return ok }, "agent never registered")

	if err := state.Registry.Send("s1", models.AgentCommand{
		Type:    models.MessageTypeSetPingTargets,
		Targets: []models.PingTargetConfig{{Name: "dns", Host: "9.9.9.9"}},
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var cmd models.AgentCommand
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("read command: %v", err)
	}
	if cmd.Type != models.MessageTypeSetPingTargets || len(cmd.Targets) != 1 || cmd.Targets[0].Host != "9.9.9.9" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestAgentWSRejectsBadToken(t *testing.T) {
	state := newTestState(t)
	srv := httptest.NewServer(testRouter(state))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/agent")
	defer conn.Close()

	if err := conn.WriteJSON(models.AuthMessage{
		Type:     models.MessageTypeAuth,
		ServerID: "s1",
		Token:    "wrong",
	}); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection closed on rejected auth")
	}
	if _, ok := state.Registry.LastSeen("s1"); ok {
		t.Fatal("rejected agent must not be registered")
	}
}

func TestViewerWSReceivesState(t *testing.T) {
	state := newTestState(t)
	srv := httptest.NewServer(testRouter(state))
	defer srv.Close()

	if err := state.Ingest("s1", &models.Snapshot{Timestamp: time.Now().UTC(), Hostname: "web-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	conn := dialWS(t, srv, "/ws")
	defer conn.Close()

	var update models.ViewerUpdate
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if update.Type != models.MessageTypeMetrics || update.ServerID != "s1" || update.Metrics.Hostname != "web-1" {
		t.Fatalf("unexpected initial update: %+v", update)
	}

	if err := state.Ingest("s1", &models.Snapshot{Timestamp: time.Now().UTC(), Hostname: "web-2"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read live update: %v", err)
	}
	if update.Metrics.Hostname != "web-2" {
		t.Fatalf("expected live update for web-2, got %+v", update)
	}
}
