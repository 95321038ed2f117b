package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Values come from an optional YAML
// file (CONFIG env var) with environment variables taking precedence.
type Config struct {
	// Port is the HTTP listen port.
	Port string `yaml:"port"`
	// DBPath is the SQLite database holding scene, history, queue, and
	// rate-limit tables.
	DBPath string `yaml:"db_path"`
	// PlannerURL is the base URL of the reasoning service. Required.
	PlannerURL string `yaml:"planner_url"`
	// PlannerToken is the bearer token sent to the reasoning service.
	PlannerToken string `yaml:"planner_token"`
	// AuthPassword, when set, gates mutating endpoints behind a bearer
	// password.
	AuthPassword string `yaml:"auth_password"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// MCPTransport enables the MCP surface when set to "stdio".
	MCPTransport string `yaml:"mcp_transport"`
	// CanvasWidth and CanvasHeight are the document bounds seeded on
	// first start.
	CanvasWidth  float64 `yaml:"canvas_width"`
	CanvasHeight float64 `yaml:"canvas_height"`
	// HistoryCap bounds the command history, oldest entries evicted.
	HistoryCap int `yaml:"history_cap"`
}

func defaultConfig() Config {
	return Config{
		Port:         "8090",
		DBPath:       "db/sketchd.db",
		LogLevel:     "info",
		CanvasWidth:  1920,
		CanvasHeight: 1080,
	}
}

// loadConfig reads the optional YAML file, then applies env overrides.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.DBPath, "SKETCHD_DB")
	envOverride(&cfg.PlannerURL, "PLANNER_URL")
	envOverride(&cfg.PlannerToken, "PLANNER_TOKEN")
	envOverride(&cfg.AuthPassword, "AUTH_PASSWORD")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.MCPTransport, "MCP_TRANSPORT")

	if cfg.PlannerURL == "" {
		return cfg, fmt.Errorf("PLANNER_URL is required")
	}
	return cfg, nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
