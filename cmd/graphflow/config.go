package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all graphflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath        string   `json:"db_path"`
	StoreDir      string   `json:"store_dir"` // non-empty selects the directory store
	MaxIterations int      `json:"max_iterations"`
	LogLevel      string   `json:"log_level"`
	MCPCommand    string   `json:"mcp_command"`
	MCPArgs       []string `json:"mcp_args"`
}

func defaultConfig() Config {
	return Config{
		DBPath:        filepath.Join(graphflowDir(), "graphflow.db"),
		MaxIterations: 100,
		LogLevel:      "info",
	}
}

func graphflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".graphflow"
	}
	return filepath.Join(home, ".graphflow")
}

func settingsPath() string {
	return filepath.Join(graphflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("GRAPHFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GRAPHFLOW_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("GRAPHFLOW_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("GRAPHFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GRAPHFLOW_MCP_COMMAND"); v != "" {
		cfg.MCPCommand = v
	}
	if v := os.Getenv("GRAPHFLOW_MCP_ARGS"); v != "" {
		cfg.MCPArgs = strings.Fields(v)
	}

	return cfg
}
