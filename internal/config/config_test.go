package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.API.TimeoutSeconds)
	}
	if cfg.Fetch.RequestsPerSecond != 2 {
		t.Errorf("RequestsPerSecond = %v, want 2", cfg.Fetch.RequestsPerSecond)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genie-export.yaml")

	content := `
api:
  key: file-key
  timeout_seconds: 10
fetch:
  requests_per_second: 5
  max_concurrency: 4
log:
  level: debug
  pretty: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Key != "file-key" {
		t.Errorf("API.Key = %q, want file-key", cfg.API.Key)
	}
	if cfg.API.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10", cfg.API.TimeoutSeconds)
	}
	if cfg.Fetch.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %v, want 5", cfg.Fetch.RequestsPerSecond)
	}
	if cfg.Fetch.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Fetch.MaxConcurrency)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v, want debug/pretty", cfg.Log)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Fetch.RequestsPerSecond != 2 {
		t.Errorf("RequestsPerSecond = %v, want default 2", cfg.Fetch.RequestsPerSecond)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/genie-export.yaml"); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GENIE_API_KEY", "env-key")
	t.Setenv("GENIE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Key != "env-key" {
		t.Errorf("API.Key = %q, want env-key", cfg.API.Key)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "defaults are valid",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "negative concurrency",
			mutate:      func(c *Config) { c.Fetch.MaxConcurrency = -1 },
			expectError: true,
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "loud" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.expectError && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
