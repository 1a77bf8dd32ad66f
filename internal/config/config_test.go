package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathMissingFile(t *testing.T) {
	t.Setenv("SHEET2XML_API_URL", "")
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q; want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v; want 30s", cfg.Timeout())
	}
}

func TestLoadFromPathFile(t *testing.T) {
	t.Setenv("SHEET2XML_API_URL", "")
	t.Setenv("SHEET2XML_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `api_url = "https://convert.example.com/api/"
timeout_secs = 45
download_dir = "/tmp/out"

[log]
level = "debug"
format = "console"

[preview]
escape = true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.APIURL != "https://convert.example.com/api" {
		t.Errorf("APIURL = %q; trailing slash should be trimmed", cfg.APIURL)
	}
	if cfg.TimeoutSecs != 45 {
		t.Errorf("TimeoutSecs = %d; want 45", cfg.TimeoutSecs)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Preview.Escape {
		t.Error("Preview.Escape = false; want true")
	}
	if !cfg.Preview.Highlight {
		t.Error("Preview.Highlight lost its default")
	}
	if cfg.RequestsPerMinute != DefaultRequestsPerMinute {
		t.Errorf("RequestsPerMinute = %d; want default", cfg.RequestsPerMinute)
	}
	if cfg.APIOrigin() != "https://convert.example.com" {
		t.Errorf("APIOrigin() = %q", cfg.APIOrigin())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHEET2XML_API_URL", "http://backend:9000")
	t.Setenv("SHEET2XML_LOG_LEVEL", "WARN")
	t.Setenv("SHEET2XML_LISTEN", "127.0.0.1:8080")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.APIURL != "http://backend:9000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Server.Listen != "127.0.0.1:8080" {
		t.Errorf("Server.Listen = %q", cfg.Server.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"Relative URL", func(c *Config) { c.APIURL = "/api" }, "api_url"},
		{"FTP URL", func(c *Config) { c.APIURL = "ftp://host" }, "api_url"},
		{"Negative timeout", func(c *Config) { c.TimeoutSecs = -1 }, "timeout_secs"},
		{"Bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"Bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v; want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q; want %q", verr.Field, tt.field)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestRequestsPerMinute(t *testing.T) {
	if got := Default().RequestsPerMinute; got != 100 {
		t.Errorf("Default().RequestsPerMinute = %d; want 100", got)
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("requests_per_minute = 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.RequestsPerMinute != 0 {
		t.Errorf("RequestsPerMinute = %d; want 0 to disable throttling", cfg.RequestsPerMinute)
	}
}
