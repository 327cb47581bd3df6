package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr())
	}
	if cfg.Sync.Interval.Duration() != 30*time.Second {
		t.Errorf("unexpected sync interval: %v", cfg.Sync.Interval.Duration())
	}
	if cfg.Sync.ErrorBackoff.Duration() != 60*time.Second {
		t.Errorf("unexpected error backoff: %v", cfg.Sync.ErrorBackoff.Duration())
	}
	if cfg.Sync.StaleAfter.Duration() != 30*time.Minute {
		t.Errorf("unexpected stale grace: %v", cfg.Sync.StaleAfter.Duration())
	}
	if cfg.Collector.Mode != "http" {
		t.Errorf("unexpected collector mode: %s", cfg.Collector.Mode)
	}

	if len(cfg.Topology.Devices) != 5 {
		t.Errorf("expected 5 demo devices, got %d", len(cfg.Topology.Devices))
	}
	if len(cfg.Topology.Links) != 4 {
		t.Errorf("expected 4 demo links, got %d", len(cfg.Topology.Links))
	}
	if cfg.Topology.Devices["frr-router"].Type != "router" {
		t.Errorf("unexpected router rule: %+v", cfg.Topology.Devices["frr-router"])
	}
}

func TestLoadFromPath(t *testing.T) {
	content := `
server:
  port: 9090
sync:
  interval: 10s
  stale_after: 1h
collector:
  mode: static
topology:
  devices:
    gw:
      type: router
      address: 10.0.0.1
  links:
    - source: gw
      target: gw
`
	path := filepath.Join(t.TempDir(), "netviz.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, loadedPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loadedPath != path {
		t.Errorf("unexpected path: %s", loadedPath)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port override lost: %d", cfg.Server.Port)
	}
	if cfg.Sync.Interval.Duration() != 10*time.Second {
		t.Errorf("interval override lost: %v", cfg.Sync.Interval.Duration())
	}
	if cfg.Sync.StaleAfter.Duration() != time.Hour {
		t.Errorf("stale_after override lost: %v", cfg.Sync.StaleAfter.Duration())
	}
	if cfg.Collector.Mode != "static" {
		t.Errorf("collector mode override lost: %s", cfg.Collector.Mode)
	}

	// Unset fields still get defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host default missing: %s", cfg.Server.Host)
	}
	if cfg.Sync.ErrorBackoff.Duration() != 60*time.Second {
		t.Errorf("error backoff default missing: %v", cfg.Sync.ErrorBackoff.Duration())
	}

	// A configured topology replaces the demo lab entirely
	if len(cfg.Topology.Devices) != 1 || len(cfg.Topology.Links) != 1 {
		t.Errorf("custom topology not honored: %+v", cfg.Topology)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netviz.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  interval: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}
