package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const configFilename = "vantage-agent.json"

// AgentConfig tells the agent where to ship snapshots and how often to
// sample.
type AgentConfig struct {
	DashboardURL string `json:"dashboard_url"`
	ServerID     string `json:"server_id"`
	AgentToken   string `json:"agent_token"`
	IntervalSecs uint64 `json:"interval_secs"`
}

func defaultConfigPath() string {
	if envPath := os.Getenv("VANTAGE_AGENT_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("/etc/vantage-agent"); err == nil {
		return "/etc/vantage-agent/" + configFilename
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "vantage-agent", configFilename)
	}
	return configFilename
}

// loadConfigFromEnv builds a config from environment variables, or returns
// nil when the required ones are absent.
func loadConfigFromEnv() *AgentConfig {
	url := os.Getenv("VANTAGE_DASHBOARD_URL")
	serverID := os.Getenv("VANTAGE_SERVER_ID")
	token := os.Getenv("VANTAGE_AGENT_TOKEN")
	if url == "" || serverID == "" || token == "" {
		return nil
	}

	cfg := &AgentConfig{
		DashboardURL: url,
		ServerID:     serverID,
		AgentToken:   token,
		IntervalSecs: 2,
	}
	if v := os.Getenv("VANTAGE_INTERVAL_SECS"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil && parsed > 0 {
			cfg.IntervalSecs = parsed
		}
	}
	return cfg
}

func loadConfig(path string) (*AgentConfig, error) {
	if cfg := loadConfigFromEnv(); cfg != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	if cfg.DashboardURL == "" || cfg.ServerID == "" {
		return nil, fmt.Errorf("agent config %s missing dashboard_url or server_id", path)
	}
	if cfg.IntervalSecs == 0 {
		cfg.IntervalSecs = 2
	}
	return &cfg, nil
}
