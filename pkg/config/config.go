// Package config handles loading and saving wv configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/wv/config.yaml
//   - State:   ~/.local/state/wv/ (view state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RefreshConfig controls how change notifications become redraws.
type RefreshConfig struct {
	// DebounceMS is the redraw debounce in milliseconds. 0 disables
	// debouncing; values are clamped to 0-5000 when applied.
	DebounceMS *int `yaml:"debounce_ms,omitempty"`
	// SettleMS is the git-operation settle timer in milliseconds,
	// clamped to 100-5000 when applied.
	SettleMS *int `yaml:"settle_ms,omitempty"`
	// GitDetection toggles the repository-operation detector.
	GitDetection *bool `yaml:"git_detection,omitempty"`
	// PollIntervalMS is the watcher polling interval for fallback mode.
	PollIntervalMS *int `yaml:"poll_interval_ms,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultGroup string  `yaml:"default_group,omitempty"` // status bucket, or "all"
	ShowArchived bool    `yaml:"show_archived,omitempty"`
	SplitRatio   float64 `yaml:"split_ratio,omitempty"` // tree/detail split (0.2-0.8)
}

// Config is the top-level configuration for wv.
type Config struct {
	// PlanDir is the default plan directory; the --plan-dir flag wins.
	PlanDir string        `yaml:"plan_dir,omitempty"`
	Refresh RefreshConfig `yaml:"refresh,omitempty"`
	UI      UIConfig      `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PlanDir: ".workplan",
		UI: UIConfig{
			DefaultGroup: "all",
			SplitRatio:   0.55,
		},
	}
}

// ConfigDir returns the XDG config directory for wv.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "wv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "wv")
}

// StateDir returns the XDG state directory for wv.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "wv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "wv")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.PlanDir = expandHome(cfg.PlanDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// RefreshDelay returns the configured redraw debounce, or fallback when
// unset. Range clamping happens where the value is applied.
func (c Config) RefreshDelay(fallback time.Duration) time.Duration {
	if c.Refresh.DebounceMS == nil {
		return fallback
	}
	return time.Duration(*c.Refresh.DebounceMS) * time.Millisecond
}

// SettleDelay returns the configured settle timer, or fallback when unset.
func (c Config) SettleDelay(fallback time.Duration) time.Duration {
	if c.Refresh.SettleMS == nil {
		return fallback
	}
	return time.Duration(*c.Refresh.SettleMS) * time.Millisecond
}

// PollInterval returns the configured watcher poll interval, or fallback
// when unset.
func (c Config) PollInterval(fallback time.Duration) time.Duration {
	if c.Refresh.PollIntervalMS == nil || *c.Refresh.PollIntervalMS <= 0 {
		return fallback
	}
	return time.Duration(*c.Refresh.PollIntervalMS) * time.Millisecond
}

// GitDetectionEnabled reports whether the repository-operation detector
// should run. Defaults to on.
func (c Config) GitDetectionEnabled() bool {
	if c.Refresh.GitDetection == nil {
		return true
	}
	return *c.Refresh.GitDetection
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
