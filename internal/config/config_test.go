package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PollInterval.Duration != time.Second {
		t.Errorf("PollInterval = %v, want 1s default", cfg.Monitor.PollInterval.Duration)
	}
	if cfg.Report.Format != "text" {
		t.Errorf("Format = %q, want text default", cfg.Report.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromBytes(t *testing.T) {
	data := []byte("monitor:\n  poll_interval: 250ms\nreport:\n  format: json\nlogging:\n  level: debug\n")

	cfg, err := LoadFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PollInterval.Duration != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.Monitor.PollInterval.Duration)
	}
	if cfg.Report.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Report.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFromBytes_BadDuration(t *testing.T) {
	if _, err := LoadFromBytes([]byte("monitor:\n  poll_interval: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("RESMON_POLL_INTERVAL", "2s")
	t.Setenv("RESMON_REPORT_FORMAT", "yaml")

	cfg, err := LoadFromBytes([]byte("monitor:\n  poll_interval: 250ms\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PollInterval.Duration != 2*time.Second {
		t.Errorf("PollInterval = %v, want env override 2s", cfg.Monitor.PollInterval.Duration)
	}
	if cfg.Report.Format != "yaml" {
		t.Errorf("Format = %q, want env override yaml", cfg.Report.Format)
	}
}

func TestEnvOverride_BadDuration(t *testing.T) {
	t.Setenv("RESMON_POLL_INTERVAL", "whenever")
	if _, err := LoadFromBytes(nil); err == nil {
		t.Error("expected error for invalid RESMON_POLL_INTERVAL")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PollInterval.Duration != time.Second {
		t.Errorf("PollInterval = %v, want default", cfg.Monitor.PollInterval.Duration)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("monitor:\n  poll_interval: 500ms\n"), 0640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PollInterval.Duration != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.Monitor.PollInterval.Duration)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero interval", func(c *Config) { c.Monitor.PollInterval = Duration{} }, true},
		{"negative interval", func(c *Config) { c.Monitor.PollInterval = Duration{-time.Second} }, true},
		{"yaml format", func(c *Config) { c.Report.Format = "yaml" }, false},
		{"unknown format", func(c *Config) { c.Report.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
