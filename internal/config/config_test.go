package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
reporting:
  endpoint: "https://key@faultline.example.com/1"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Reporting.ClientOptions.Timeout != 10*time.Second {
		t.Errorf("timeout default = %v", cfg.Reporting.ClientOptions.Timeout)
	}
	if !cfg.Reporting.ReportExpectedOrDefault() {
		t.Error("report_expected must default to true")
	}
	if !cfg.Reporting.Async.AsyncEnabledOrDefault() {
		t.Error("async must default to enabled")
	}
	if cfg.Reporting.Async.QueueSize != 1000 || cfg.Reporting.Async.Workers != 2 {
		t.Errorf("async defaults = %+v", cfg.Reporting.Async)
	}
	if cfg.Relay.Listen != ":8090" || cfg.Relay.MetricsPort != 9090 {
		t.Errorf("relay defaults = %+v", cfg.Relay)
	}
	if cfg.Relay.Retention.TTL != 168*time.Hour {
		t.Errorf("retention ttl default = %v", cfg.Relay.Retention.TTL)
	}
	if cfg.Relay.Auth.APIKeyHeader != "X-API-Key" {
		t.Errorf("api key header default = %q", cfg.Relay.Auth.APIKeyHeader)
	}
	if cfg.Metrics.Namespace != "faultline" {
		t.Errorf("metrics namespace default = %q", cfg.Metrics.Namespace)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
reporting:
  endpoint: "https://key@relay.internal/9"
  report_expected: false
  user_match_patterns: ["^account_"]
  async:
    enabled: false
    queue_size: 50
relay:
  listen: ":9999"
  retention:
    ttl: 24h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Reporting.ReportExpectedOrDefault() {
		t.Error("explicit report_expected=false must stick")
	}
	if cfg.Reporting.Async.AsyncEnabledOrDefault() {
		t.Error("explicit async.enabled=false must stick")
	}
	if cfg.Reporting.Async.QueueSize != 50 {
		t.Errorf("queue_size = %d", cfg.Reporting.Async.QueueSize)
	}
	if len(cfg.Reporting.UserMatchPatterns) != 1 || cfg.Reporting.UserMatchPatterns[0] != "^account_" {
		t.Errorf("user patterns = %v", cfg.Reporting.UserMatchPatterns)
	}
	if cfg.Relay.Listen != ":9999" {
		t.Errorf("listen = %q", cfg.Relay.Listen)
	}
	if cfg.Relay.Retention.TTL != 24*time.Hour {
		t.Errorf("ttl = %v", cfg.Relay.Retention.TTL)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
reporting:
  endpoint: ""
storage:
  postgres:
    password: "from-file"
`)
	t.Setenv("FAULTLINE_ENDPOINT", "https://env@relay.example.com/2")
	t.Setenv("FAULTLINE_POSTGRES_PASSWORD", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reporting.Endpoint != "https://env@relay.example.com/2" {
		t.Errorf("endpoint = %q, env must override", cfg.Reporting.Endpoint)
	}
	if cfg.Storage.Postgres.Password != "from-env" {
		t.Errorf("password = %q, env must override file value", cfg.Storage.Postgres.Password)
	}
}

func TestEnvFileOverrides(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "jwt_secret")
	if err := os.WriteFile(secretPath, []byte("s3cr3t\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	path := writeConfig(t, "relay:\n  auth:\n    enabled: true\n")
	t.Setenv("FAULTLINE_AUTH_JWT_SECRET_FILE", secretPath)
	t.Setenv("FAULTLINE_AUTH_JWT_SECRET", "ignored")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Relay.Auth.JWTSecret != "s3cr3t" {
		t.Errorf("jwt secret = %q, _FILE variant must win and be trimmed", cfg.Relay.Auth.JWTSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load must fail for a missing file")
	}
}
