package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DefaultMode is the gate mode used when a request does not name one:
	// "single" or "multi".
	DefaultMode string `json:"defaultMode" yaml:"defaultMode"`
	// AllowAutoCreateGates permits operations against gates that have no
	// meta record yet; the gate is registered on first use.
	AllowAutoCreateGates bool `json:"allowAutoCreateGates" yaml:"allowAutoCreateGates"`
	// GateNameRegex constrains gate names.
	GateNameRegex string `json:"gateNameRegex" yaml:"gateNameRegex"`
	// PayloadMaxBytes bounds a single arrival payload. Zero disables the check.
	PayloadMaxBytes int `json:"payloadMaxBytes" yaml:"payloadMaxBytes"`

	Store StoreConfig `json:"store" yaml:"store"`
	Sink  SinkConfig  `json:"sink" yaml:"sink"`
	HTTP  HTTPConfig  `json:"http" yaml:"http"`
	Log   LogConfig   `json:"log" yaml:"log"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Backend is "pebble" (default) or "redis".
	Backend string `json:"backend" yaml:"backend"`
	// DataDir is the Pebble database directory.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is "always", "interval" (default) or "never".
	Fsync string `json:"fsync" yaml:"fsync"`
	// FsyncIntervalMs controls group-commit when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`

	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`
}

// SinkConfig wires downstream delivery of admissions.
type SinkConfig struct {
	// NATSURL enables the NATS admission sink when non-empty.
	NATSURL string `json:"natsUrl" yaml:"natsUrl"`
	// SubjectPrefix prefixes published subjects; the gate name is appended.
	SubjectPrefix string `json:"subjectPrefix" yaml:"subjectPrefix"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DefaultMode:          "multi",
		AllowAutoCreateGates: true,
		GateNameRegex:        "[a-z0-9-_]{1,64}",
		PayloadMaxBytes:      1 << 20,
		Store: StoreConfig{
			Backend: "pebble",
			Fsync:   "interval",
		},
		Sink: SinkConfig{
			SubjectPrefix: "turnstile.admissions",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
