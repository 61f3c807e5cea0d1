package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PlanDir != ".workplan" {
		t.Errorf("PlanDir = %q", cfg.PlanDir)
	}
	if cfg.UI.DefaultGroup != "all" {
		t.Errorf("DefaultGroup = %q", cfg.UI.DefaultGroup)
	}
	if !cfg.GitDetectionEnabled() {
		t.Error("git detection should default to on")
	}
	if got := cfg.RefreshDelay(300 * time.Millisecond); got != 300*time.Millisecond {
		t.Errorf("RefreshDelay fallback = %v", got)
	}
}

func TestLoadFrom_ParsesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
plan_dir: ~/work/.workplan
refresh:
  debounce_ms: 0
  settle_ms: 750
  git_detection: false
ui:
  default_group: "status:in_progress"
  show_archived: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}

	home, _ := os.UserHomeDir()
	if cfg.PlanDir != filepath.Join(home, "work", ".workplan") {
		t.Errorf("PlanDir ~ not expanded: %q", cfg.PlanDir)
	}
	// debounce_ms: 0 is an explicit "no debounce", distinct from unset.
	if got := cfg.RefreshDelay(300 * time.Millisecond); got != 0 {
		t.Errorf("RefreshDelay = %v, want 0", got)
	}
	if got := cfg.SettleDelay(500 * time.Millisecond); got != 750*time.Millisecond {
		t.Errorf("SettleDelay = %v", got)
	}
	if cfg.GitDetectionEnabled() {
		t.Error("git detection should be off")
	}
	if cfg.UI.DefaultGroup != "status:in_progress" || !cfg.UI.ShowArchived {
		t.Errorf("UI config mismatch: %+v", cfg.UI)
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("plan_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	settle := 1200
	cfg.Refresh.SettleMS = &settle
	cfg.UI.ShowArchived = true

	if err := SaveTo(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.SettleDelay(0); got != 1200*time.Millisecond {
		t.Errorf("SettleDelay = %v", got)
	}
	if !loaded.UI.ShowArchived {
		t.Error("ShowArchived lost in round trip")
	}
}

func TestConfigDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	if got := ConfigDir(); got != "/tmp/xdg-test/wv" {
		t.Errorf("ConfigDir = %q", got)
	}
	if got := ConfigPath(); got != "/tmp/xdg-test/wv/config.yaml" {
		t.Errorf("ConfigPath = %q", got)
	}
}
