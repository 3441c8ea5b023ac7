package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tripwire/ktracepoint/internal/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	return f.Name()
}

const validYAML = `
control_addr: "127.0.0.1:9191"
log_level: debug
jwt_public_key_path: "/etc/ktraced/jwt.pub"
pipe_capacity: 8192
cmdline_cache_capacity: 2048
telemetry_interval: 30s
`

func TestLoadConfig_Valid(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ControlAddr != "127.0.0.1:9191" {
		t.Errorf("ControlAddr = %q", cfg.ControlAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.JWTPublicKeyPath != "/etc/ktraced/jwt.pub" {
		t.Errorf("JWTPublicKeyPath = %q", cfg.JWTPublicKeyPath)
	}
	if cfg.PipeCapacity != 8192 {
		t.Errorf("PipeCapacity = %d, want 8192", cfg.PipeCapacity)
	}
	if cfg.CmdlineCacheCapacity != 2048 {
		t.Errorf("CmdlineCacheCapacity = %d, want 2048", cfg.CmdlineCacheCapacity)
	}
	if cfg.TelemetryInterval != 30*time.Second {
		t.Errorf("TelemetryInterval = %v, want 30s", cfg.TelemetryInterval)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeTemp(t, "control_addr: \"127.0.0.1:9090\"\n")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.PipeCapacity != 4096 {
		t.Errorf("default PipeCapacity = %d, want 4096", cfg.PipeCapacity)
	}
	if cfg.CmdlineCacheCapacity != 1024 {
		t.Errorf("default CmdlineCacheCapacity = %d, want 1024", cfg.CmdlineCacheCapacity)
	}
	if cfg.TelemetryInterval != 10*time.Second {
		t.Errorf("default TelemetryInterval = %v, want 10s", cfg.TelemetryInterval)
	}
}

func TestLoadConfig_EmptyFileUsesAllDefaults(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ControlAddr != "127.0.0.1:9090" {
		t.Errorf("default ControlAddr = %q", cfg.ControlAddr)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	path := writeTemp(t, "control_addr: \"127.0.0.1:9090\"\nlog_level: \"verbose\"\n")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error %q does not mention log_level", err.Error())
	}
}

func TestLoadConfig_NegativeTelemetryInterval(t *testing.T) {
	path := writeTemp(t, "control_addr: \"127.0.0.1:9090\"\ntelemetry_interval: \"-1s\"\n")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for negative telemetry_interval, got nil")
	}
	if !strings.Contains(err.Error(), "telemetry_interval") {
		t.Errorf("error %q does not mention telemetry_interval", err.Error())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "nonexistent.yaml")
	_, err := config.LoadConfig(missingPath)
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTemp(t, ":::invalid yaml:::")
	_, err := config.LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}
