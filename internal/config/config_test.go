package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return p
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
stream-replay:
  node:
    ip: "10.0.0.1"
    hostname: "test-host"
  control:
    default_port: 6000
  kafka:
    brokers:
      - "kafka1:9092"
  log:
    level: "debug"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
    path: "/metrics"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Node.IP != "10.0.0.1" {
		t.Errorf("Node.IP = %q, want 10.0.0.1", cfg.Node.IP)
	}
	if cfg.Node.Hostname != "test-host" {
		t.Errorf("Node.Hostname = %q, want test-host", cfg.Node.Hostname)
	}
	if cfg.Control.DefaultPort != 6000 {
		t.Errorf("Control.DefaultPort = %d, want 6000", cfg.Control.DefaultPort)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "kafka1:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
stream-replay:
  log:
    level: "loud"
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
stream-replay:
  node:
    hostname: "defaults-host"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Control.DefaultPort != 5566 {
		t.Errorf("Control.DefaultPort = %d, want default 5566", cfg.Control.DefaultPort)
	}
	if cfg.Metrics.Listen != ":9091" {
		t.Errorf("Metrics.Listen = %q, want default :9091", cfg.Metrics.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
