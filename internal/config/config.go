package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Limits  LimitsConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// AllowedOrigins are CORS origin patterns; `*` matches any run of
	// characters (e.g. "http://localhost:*").
	AllowedOrigins []string
}

type LimitsConfig struct {
	MaxBodyBytes     int
	MaxBatchSize     int
	MaxCommentLength int
}

type StorageConfig struct {
	// Backend selects the store implementation: "memory" (default,
	// volatile) or "sqlite" (durable).
	Backend string
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           4747,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Limits: LimitsConfig{
			MaxBodyBytes:     1 << 20,
			MaxBatchSize:     100,
			MaxCommentLength: 10000,
		},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/gosnap/config.json, then applies GOSNAP_* environment
// variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Storage.Backend != "memory" && cfg.Storage.Backend != "sqlite" {
		return Config{}, fmt.Errorf("invalid storage.backend %q: must be \"memory\" or \"sqlite\"", cfg.Storage.Backend)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d: must be 1-65535", cfg.Server.Port)
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "gosnap-data"
		}
	}
	return filepath.Join(dir, "gosnap")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "gosnap", "config.json")
}
