// Package config loads the daemon's YAML configuration file, merging in
// environment overrides for the terminal query-reply colors and the
// latency benchmark gate (spec.md §6).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of daemon-level settings.
type Config struct {
	// Listener
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Auth
	AuthToken    string `yaml:"auth_token,omitempty"`
	AuthJWTKey   string `yaml:"auth_jwt_key,omitempty"` // HMAC secret for JWT bearer mode
	RequireToken bool   `yaml:"require_token,omitempty"`

	// Storage
	StateStorePath string `yaml:"state_store_path"`

	// Session lifecycle
	SessionExitTombstoneTTLMs int64 `yaml:"session_exit_tombstone_ttl_ms"`

	// Stream server limits
	MaxConnectionBufferedBytes int `yaml:"max_connection_buffered_bytes"`
	MaxStreamJournalEntries    int `yaml:"max_stream_journal_entries"`
	MaxLineBytes               int `yaml:"max_line_bytes"`

	// Terminal query-reply defaults (overridable by env, see Env* below)
	TerminalFG     string `yaml:"terminal_fg"`
	TerminalBG     string `yaml:"terminal_bg"`
	TerminalCursor string `yaml:"terminal_cursor"`

	// Perf sink
	PerfEnabled bool   `yaml:"perf_enabled"`
	PerfLogPath string `yaml:"perf_log_path,omitempty"`

	// Notify file tailing
	NotifyPollInterval time.Duration `yaml:"notify_poll_interval"`
}

const (
	EnvTermFG = "HARNESS_TERM_FG"
	EnvTermBG = "HARNESS_TERM_BG"

	EnvLatencySamples  = "HARNESS_LATENCY_SAMPLES"
	EnvLatencyTimeout  = "HARNESS_LATENCY_TIMEOUT_MS"
	EnvLatencyMaxP50   = "HARNESS_LATENCY_MAX_P50_MS"
	EnvLatencyMaxP95   = "HARNESS_LATENCY_MAX_P95_MS"
	EnvLatencyMaxP99   = "HARNESS_LATENCY_MAX_P99_MS"
)

// Default returns the daemon's built-in configuration, including a
// 5-minute tombstone TTL. Load keeps that TTL when the file omits it;
// only LoadExplicit rejects a file without session_exit_tombstone_ttl_ms.
func Default() *Config {
	return &Config{
		Host:                        "127.0.0.1",
		Port:                        7777,
		StateStorePath:              defaultStatePath(),
		SessionExitTombstoneTTLMs:   5 * 60 * 1000,
		MaxConnectionBufferedBytes:  8 * 1024 * 1024,
		MaxStreamJournalEntries:     10000,
		MaxLineBytes:                1024 * 1024,
		TerminalFG:                  "#d0d0d0",
		TerminalBG:                  "#1a1a1a",
		TerminalCursor:              "#ffffff",
		PerfEnabled:                 false,
		NotifyPollInterval:          250 * time.Millisecond,
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "harness.db"
	}
	return filepath.Join(home, ".harness", "state.db")
}

// Load reads a YAML config file, falling back to Default() fields for any
// value the file doesn't override, then applies environment overrides.
// If path is empty or the file doesn't exist, Load returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			overlay := *cfg
			if err := yaml.Unmarshal(data, &overlay); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg = &overlay
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadExplicit behaves like Load but requires SessionExitTombstoneTTLMs to be
// present in the file (Open Question (2): no implicit default for callers
// that want the required-config-value discipline spec.md asks for).
func LoadExplicit(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, ok := raw["session_exit_tombstone_ttl_ms"]; !ok {
		return nil, fmt.Errorf("config %s: session_exit_tombstone_ttl_ms is required", path)
	}
	return Load(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvTermFG); v != "" {
		cfg.TerminalFG = v
	}
	if v := os.Getenv(EnvTermBG); v != "" {
		cfg.TerminalBG = v
	}
}

// LatencyGate holds the optional env-configured latency benchmark gate
// (spec.md §6). Zero Samples means the gate is disabled.
type LatencyGate struct {
	Samples  int
	TimeoutMs int
	MaxP50Ms int
	MaxP95Ms int
	MaxP99Ms int
}

// LoadLatencyGate reads HARNESS_LATENCY_* env vars.
func LoadLatencyGate() LatencyGate {
	return LatencyGate{
		Samples:   envInt(EnvLatencySamples, 0),
		TimeoutMs: envInt(EnvLatencyTimeout, 2000),
		MaxP50Ms:  envInt(EnvLatencyMaxP50, 50),
		MaxP95Ms:  envInt(EnvLatencyMaxP95, 150),
		MaxP99Ms:  envInt(EnvLatencyMaxP99, 300),
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// TombstoneTTL returns the configured tombstone TTL as a time.Duration.
func (c *Config) TombstoneTTL() time.Duration {
	return time.Duration(c.SessionExitTombstoneTTLMs) * time.Millisecond
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
