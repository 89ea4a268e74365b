package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("endpoint: got %q, want %q", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.MaxDepth != 6 {
		t.Errorf("max depth: got %d, want %d", cfg.MaxDepth, 6)
	}
	if cfg.MaxNodes != 2000 {
		t.Errorf("max nodes: got %d, want %d", cfg.MaxNodes, 2000)
	}
	if cfg.PageDelay != 50*time.Millisecond {
		t.Errorf("page delay: got %v, want %v", cfg.PageDelay, 50*time.Millisecond)
	}
	if !cfg.IncludeInfobox || !cfg.IncludeNavbox {
		t.Error("template links should be included by default")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
max_depth = 3
max_nodes = 150
include_navbox = false
page_delay = "200ms"
endpoint = "https://de.wikipedia.org/w/api.php"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != 3 {
		t.Errorf("max depth: got %d, want %d", cfg.MaxDepth, 3)
	}
	if cfg.MaxNodes != 150 {
		t.Errorf("max nodes: got %d, want %d", cfg.MaxNodes, 150)
	}
	if cfg.IncludeNavbox {
		t.Error("include_navbox: got true, want false")
	}
	if !cfg.IncludeInfobox {
		t.Error("include_infobox should keep its default")
	}
	if cfg.PageDelay != 200*time.Millisecond {
		t.Errorf("page delay: got %v, want %v", cfg.PageDelay, 200*time.Millisecond)
	}
	if cfg.Endpoint != "https://de.wikipedia.org/w/api.php" {
		t.Errorf("endpoint: got %q", cfg.Endpoint)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_depth = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WIKICHAIN_MAX_DEPTH", "4")
	t.Setenv("WIKICHAIN_INCLUDE_INFOBOX", "false")
	t.Setenv("WIKICHAIN_RPS", "2.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("max depth: got %d, want %d", cfg.MaxDepth, 4)
	}
	if cfg.IncludeInfobox {
		t.Error("include infobox: got true, want false")
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Errorf("rps: got %v, want %v", cfg.RequestsPerSecond, 2.5)
	}
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("WIKICHAIN_MAX_NODES", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxNodes != 2000 {
		t.Errorf("max nodes: got %d, want default %d", cfg.MaxNodes, 2000)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_depth = [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero depth allowed", mutate: func(c *Config) { c.MaxDepth = 0 }},
		{name: "negative depth", mutate: func(c *Config) { c.MaxDepth = -1 }, wantErr: true},
		{name: "zero nodes", mutate: func(c *Config) { c.MaxNodes = 0 }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "empty endpoint", mutate: func(c *Config) { c.Endpoint = " " }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -2 }, wantErr: true},
		{name: "logging off", mutate: func(c *Config) { c.LogLevel = "off" }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
