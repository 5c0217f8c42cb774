package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8787"`
	DataDir        string `envconfig:"DATA_DIR" default:"./data"`
	SettingsDB     string `envconfig:"SETTINGS_DB" default:"./data/settings.db"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/assets"`
	EnginePath     string `envconfig:"ENGINE_PATH" default:"pagemark-engine"`
	SessionSecret  string `envconfig:"SESSION_SECRET" default:"dev-secret-change-in-production"`
	HistoryLimit   int    `envconfig:"HISTORY_LIMIT" default:"50"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"tauri://localhost,http://localhost:1420"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into the list websocket accept and CORS
// checks expect.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
