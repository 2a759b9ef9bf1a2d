package server

import (
	"encoding/json"
	"sync"

	"vantage/internal/config"
	"vantage/internal/middleware"
	"vantage/internal/models"
	"vantage/internal/store"
	"vantage/internal/utils"
)

// AppState is the composition root handed to every handler: the tiered
// store, the agent registry, the viewer broadcaster, and the shared config,
// each under its own guard so no path blocks another.
type AppState struct {
	Store     *store.TimeSeriesStore
	Registry  *AgentRegistry
	Broadcast *Broadcaster
	Auth      *middleware.AuthService
	Logger    *utils.Logger

	cfgMu   sync.RWMutex
	cfg     config.AppConfig
	cfgPath string

	cacheMu sync.RWMutex
	latest  map[string]*models.Snapshot
}

func NewAppState(cfg config.AppConfig, cfgPath string, ts *store.TimeSeriesStore, logger *utils.Logger) *AppState {
	return &AppState{
		Store:     ts,
		Registry:  NewAgentRegistry(),
		Broadcast: NewBroadcaster(),
		Auth:      middleware.NewAuthService(),
		Logger:    logger,
		cfg:       cfg,
		cfgPath:   cfgPath,
		latest:    make(map[string]*models.Snapshot),
	}
}

// Config returns a copy of the current configuration.
func (s *AppState) Config() config.AppConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	cfg := s.cfg
	cfg.Servers = append([]config.RemoteServer(nil), s.cfg.Servers...)
	return cfg
}

// UpdateConfig applies fn to the configuration under the write lock and
// persists the result.
func (s *AppState) UpdateConfig(fn func(*config.AppConfig)) error {
	s.cfgMu.Lock()
	fn(&s.cfg)
	cfg := s.cfg
	cfg.Servers = append([]config.RemoteServer(nil), s.cfg.Servers...)
	s.cfgMu.Unlock()
	return config.Save(s.cfgPath, cfg)
}

// AuthenticateAgent checks an agent's server id and bearer token against
// configuration. A server entry with an empty token accepts any token;
// useful for initial enrollment, tightened by setting one.
func (s *AppState) AuthenticateAgent(serverID, token string) bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	entry, ok := s.cfg.FindServer(serverID)
	if !ok {
		return false
	}
	return entry.Token == "" || entry.Token == token
}

// Ingest is the per-snapshot pipeline step: append to the raw tier, mark the
// agent alive, refresh the latest-snapshot cache, and fan the update out to
// viewers. Snapshots from one agent arrive on its single connection
// goroutine, so per-agent ordering is preserved. The storage error is
// returned for the caller to log; cache and fan-out still happen so live
// viewers keep working through a storage outage.
func (s *AppState) Ingest(serverID string, snap *models.Snapshot) error {
	err := s.Store.Append(serverID, snap)

	s.Registry.Touch(serverID)

	s.cacheMu.Lock()
	s.latest[serverID] = snap
	s.cacheMu.Unlock()

	if data, merr := json.Marshal(models.ViewerUpdate{
		Type:     models.MessageTypeMetrics,
		ServerID: serverID,
		Metrics:  *snap,
	}); merr == nil {
		s.Broadcast.Publish(data)
	}

	return err
}

// LatestSnapshot returns the most recent snapshot received from a server.
func (s *AppState) LatestSnapshot(serverID string) (*models.Snapshot, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	snap, ok := s.latest[serverID]
	return snap, ok
}

// LatestSnapshots returns the latest snapshot per server id.
func (s *AppState) LatestSnapshots() map[string]*models.Snapshot {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	out := make(map[string]*models.Snapshot, len(s.latest))
	for id, snap := range s.latest {
		out[id] = snap
	}
	return out
}

func (s *AppState) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Writef(format, args...)
	}
}
