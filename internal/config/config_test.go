package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	// Create a temp config file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servicebridge.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	t.Chdir(dir)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "servicebridge.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "servicebridge.yaml")
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(`
log_level: debug
log_format: json
listen:
  address: 127.0.0.1
  port: 8808
tools:
  skip_optional: true
services:
  moviepilot:
    baseUrl: http://mp:3000
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ListenAddr() != "127.0.0.1:8808" || cfg.ServesStdio() {
		t.Errorf("listen = %q, stdio = %v", cfg.ListenAddr(), cfg.ServesStdio())
	}
	if !cfg.Tools.SkipOptional {
		t.Error("tools.skip_optional not decoded")
	}
	if _, ok := cfg.Raw["services"]; !ok {
		t.Errorf("raw tree missing services: %v", cfg.Raw)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	os.WriteFile(path, []byte(`
log_level = "warn"

[listen]
port = 0

[plugins.entries.openclaw-moviepilot-rest.config.services.moviepilot]
baseUrl = "http://mp:3000"
apiKeyMode = "bearer"
retries = 0
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, want warn", cfg.LogLevel)
	}
	if !cfg.ServesStdio() {
		t.Error("port 0 should serve stdio")
	}

	pc := ResolvePluginConfig(cfg.Raw, RESTPluginID)
	if pc.Shape != ShapePluginEntry {
		t.Fatalf("shape = %v, want plugin-entry", pc.Shape)
	}
	svc, err := pc.Service("moviepilot")
	if err != nil || svc == nil {
		t.Fatalf("moviepilot service not resolved from TOML: %v", err)
	}
	if svc.KeyMode() != KeyModeBearer || svc.RetryCount() != 0 {
		t.Errorf("mode = %q retries = %d", svc.KeyMode(), svc.RetryCount())
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("services:\n  moviepilot:\n    baseUrl: http://mp\n    apiKey: ${SERVICEBRIDGE_TEST_KEY}\n"), 0600)
	t.Setenv("SERVICEBRIDGE_TEST_KEY", "secret123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	svc, err := ResolvePluginConfig(cfg.Raw, MCPPluginID).Service("moviepilot")
	if err != nil || svc == nil || svc.APIKey != "secret123" {
		t.Errorf("apiKey not expanded: %+v", svc)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"bad port", "listen:\n  port: 70000\n"},
		{"bad yaml", "listen: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(path, []byte(tt.body), 0600)
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) should fail", tt.body)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.ServesStdio() {
		t.Error("default should serve stdio")
	}
}
