package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vantage/internal/config"
	"vantage/internal/middleware"
	"vantage/internal/models"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// APILogin exchanges the admin password for a JWT.
func (s *AppState) APILogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	cfg := s.Config()
	if !s.Auth.CheckPassword(req.Password, cfg.AdminPasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	token, err := s.Auth.GenerateToken("admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type serverStatus struct {
	config.RemoteServer
	Connected bool       `json:"connected"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// APIServers lists configured servers with their live connection state.
func (s *AppState) APIServers(c *gin.Context) {
	cfg := s.Config()
	out := make([]serverStatus, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		srv.Token = "" // never expose agent tokens
		st := serverStatus{RemoteServer: srv}
		if last, ok := s.Registry.LastSeen(srv.ID); ok {
			st.Connected = true
			st.LastSeen = &last
		}
		out = append(out, st)
	}
	c.JSON(http.StatusOK, gin.H{"servers": out})
}

type serverRequest struct {
	Name     string `json:"name" binding:"required" validate:"min=1,max=64"`
	URL      string `json:"url,omitempty"`
	Location string `json:"location"`
	Provider string `json:"provider"`
	Token    string `json:"token,omitempty"`
}

// APIServerCreate adds a server entry with a generated id and token.
func (s *AppState) APIServerCreate(c *gin.Context) {
	var req serverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := config.RemoteServer{
		ID:       uuid.NewString(),
		Name:     middleware.SanitizeString(req.Name),
		URL:      req.URL,
		Location: middleware.SanitizeString(req.Location),
		Provider: middleware.SanitizeString(req.Provider),
		Token:    req.Token,
	}
	if entry.Token == "" {
		entry.Token = uuid.NewString()
	}

	if err := s.UpdateConfig(func(cfg *config.AppConfig) {
		cfg.Servers = append(cfg.Servers, entry)
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "config save failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"server": entry})
}

// APIServerDelete removes a server entry. Historical rows are kept; eviction
// ages them out on the normal schedule.
func (s *AppState) APIServerDelete(c *gin.Context) {
	id := c.Param("server_id")
	found := false
	if err := s.UpdateConfig(func(cfg *config.AppConfig) {
		kept := cfg.Servers[:0]
		for _, srv := range cfg.Servers {
			if srv.ID == id {
				found = true
				continue
			}
			kept = append(kept, srv)
		}
		cfg.Servers = kept
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "config save failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown server"})
		return
	}
	s.Registry.Unregister(id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// APIServerLatest returns the latest cached snapshot for one server.
func (s *AppState) APIServerLatest(c *gin.Context) {
	id := c.Param("server_id")
	snap, ok := s.LatestSnapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot received"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"server_id": id, "metrics": snap})
}

// APIServerHistory serves the tiered history. ?tier=raw|hourly|daily,
// ?hours=N bounds the window (default 24).
func (s *AppState) APIServerHistory(c *gin.Context) {
	id := c.Param("server_id")
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
		return
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	switch tier := c.DefaultQuery("tier", "raw"); tier {
	case "raw":
		rows, err := s.Store.RawSince(id, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tier": tier, "samples": rows})
	case "hourly":
		rows, err := s.Store.HourlySince(id, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tier": tier, "samples": rows})
	case "daily":
		rows, err := s.Store.DailySince(id, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tier": tier, "samples": rows})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier"})
	}
}

type pingTargetsRequest struct {
	Targets []models.PingTargetConfig `json:"targets"`
}

// APISetPingTargets pushes a replacement probe target list to a live agent.
// An empty list tells the agent to restore its built-in defaults.
func (s *AppState) APISetPingTargets(c *gin.Context) {
	id := c.Param("server_id")
	var req pingTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, t := range req.Targets {
		if !middleware.ValidHostname(t.Host) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target host: " + t.Host})
			return
		}
	}

	err := s.Registry.Send(id, models.AgentCommand{
		Type:    models.MessageTypeSetPingTargets,
		Targets: req.Targets,
	})
	switch {
	case errors.Is(err, ErrAgentNotConnected):
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not connected"})
	case errors.Is(err, ErrCommandBufferFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unresponsive, connection dropped"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"sent": true, "targets": len(req.Targets)})
	}
}

// APIStats reports pipeline counters for the dashboard header.
func (s *AppState) APIStats(c *gin.Context) {
	cfg := s.Config()
	c.JSON(http.StatusOK, gin.H{
		"servers_configured": len(cfg.Servers),
		"agents_connected":   len(s.Registry.Connected()),
		"viewers":            s.Broadcast.SubscriberCount(),
	})
}
