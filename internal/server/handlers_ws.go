package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vantage/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Configure properly for production
	},
}

const (
	writeWait     = 10 * time.Second
	agentReadWait = 90 * time.Second
)

// HandleAgentWS is the ingestion endpoint. The first frame must be an auth
// message carrying the server id and token; every following metrics frame
// runs the per-snapshot pipeline. The registry entry lives exactly as long
// as this handler.
func (s *AppState) HandleAgentWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logf("agent upgrade error: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(agentReadWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var auth models.AuthMessage
	if err := json.Unmarshal(raw, &auth); err != nil || auth.Type != models.MessageTypeAuth {
		return
	}
	if !s.AuthenticateAgent(auth.ServerID, auth.Token) {
		s.logf("agent auth rejected: %s", auth.ServerID)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth failed"),
			time.Now().Add(writeWait))
		return
	}

	commands := s.Registry.Register(auth.ServerID)
	defer s.Registry.Unregister(auth.ServerID)

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(gin.H{"type": models.MessageTypeAuthSuccess}); err != nil {
		return
	}
	s.logf("agent connected: %s (version %s)", auth.ServerID, auth.Version)

	// Writer goroutine drains the command channel; it unwinds when the
	// registry closes the channel or a write fails.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for cmd := range commands {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cmd); err != nil {
				return
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(agentReadWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logf("agent %s read error: %v", auth.ServerID, err)
			}
			break
		}

		var msg models.MetricsMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != models.MessageTypeMetrics {
			continue
		}
		snap := msg.Metrics
		if err := s.Ingest(auth.ServerID, &snap); err != nil {
			s.logf("ingest %s: %v", auth.ServerID, err)
		}
	}

	s.logf("agent disconnected: %s", auth.ServerID)

	// Unregister now rather than via the defer: closing the command channel
	// is what unwinds the writer goroutine this handler is about to wait on.
	s.Registry.Unregister(auth.ServerID)
	<-writeDone
}

// HandleViewerWS streams live updates to one dashboard viewer: current state
// first, then every published update until the viewer goes away. A viewer
// that stops reading loses old frames instead of stalling ingestion.
func (s *AppState) HandleViewerWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logf("viewer upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := s.Broadcast.Subscribe()
	defer sub.Close()

	for id, snap := range s.LatestSnapshots() {
		data, err := json.Marshal(models.ViewerUpdate{
			Type:     models.MessageTypeMetrics,
			ServerID: id,
			Metrics:  *snap,
		})
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Reader goroutine only detects disconnect.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}
