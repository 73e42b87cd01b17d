package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `{
	// This is a JSONC comment
	"interpreter": {
		"execute": true,
		"defer_events": false
	},
	"inspector": {
		"enabled": true,
		"host": "0.0.0.0",
		"port": 9999
	},
	"tracing": {
		"endpoint": "${{ .Env.OTLP_ENDPOINT }}"
	},
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Interpreter.IsExecuteEnabled() {
		t.Error("expected execute enabled")
	}
	if cfg.Interpreter.IsDeferEventsEnabled() {
		t.Error("expected defer_events disabled")
	}
	if !cfg.Inspector.IsEnabled() {
		t.Error("expected inspector enabled")
	}
	if cfg.Inspector.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Inspector.Host)
	}
	if cfg.Inspector.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Inspector.Port)
	}
	if cfg.Tracing.Endpoint != "http://collector:4318" {
		t.Errorf("expected expanded endpoint, got %s", cfg.Tracing.Endpoint)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Interpreter.IsExecuteEnabled() {
		t.Error("execute should default to enabled")
	}
	if !cfg.Interpreter.IsDeferEventsEnabled() {
		t.Error("defer_events should default to enabled")
	}
	if cfg.Inspector.IsEnabled() {
		t.Error("inspector should default to disabled")
	}
	if cfg.Inspector.Host != "127.0.0.1" {
		t.Errorf("expected default host, got %s", cfg.Inspector.Host)
	}
	if cfg.Inspector.Port != 18530 {
		t.Errorf("expected default port, got %d", cfg.Inspector.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Plugins.Dir == "" {
		t.Error("expected default plugins dir")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_TickBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	content := `{"interpreter": {"tick_budget": "250ms"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Interpreter.TickBudget.Duration().Milliseconds(); got != 250 {
		t.Errorf("tick_budget = %dms, want 250ms", got)
	}
}
