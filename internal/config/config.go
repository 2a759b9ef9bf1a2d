package config

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultConfigFile = "vantage-config.json"
	DefaultDBFile     = "vantage.db"
	defaultAdminPass  = "admin"
)

// RemoteServer is one monitored host known to the dashboard. Entries are
// static configuration; agents authenticate with the per-server token.
type RemoteServer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Location string `json:"location"`
	Provider string `json:"provider"`
	Token    string `json:"token,omitempty"`
}

type SiteSettings struct {
	SiteName        string `json:"site_name,omitempty"`
	SiteDescription string `json:"site_description,omitempty"`
}

// AppConfig is the server's persisted configuration.
type AppConfig struct {
	AdminPasswordHash string         `json:"admin_password_hash"`
	Servers           []RemoteServer `json:"servers"`
	SiteSettings      SiteSettings   `json:"site_settings"`
}

// Default returns a config with a bcrypt hash of the default admin password.
// Deployments are expected to change it on first login.
func Default() AppConfig {
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPass), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt only fails on invalid cost, which is constant here.
		panic(err)
	}
	return AppConfig{
		AdminPasswordHash: string(hash),
		Servers:           []RemoteServer{},
		SiteSettings: SiteSettings{
			SiteName:        "Vantage",
			SiteDescription: "Fleet telemetry dashboard",
		},
	}
}

// Path returns the config file location, honoring the VANTAGE_CONFIG env
// override.
func Path() string {
	if p := os.Getenv("VANTAGE_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads the config file, writing out a default one when it does not
// exist yet.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.AdminPasswordHash == "" {
		cfg.AdminPasswordHash = Default().AdminPasswordHash
	}
	return cfg, nil
}

// Save writes the config atomically via a temp-file rename.
func Save(path string, cfg AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// FindServer returns the config entry for a server id.
func (c *AppConfig) FindServer(id string) (RemoteServer, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return RemoteServer{}, false
}
