package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSinkConfigDefaults(t *testing.T) {
	cfg, err := LoadSinkConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7878" || cfg.Width != 64 || cfg.Height != 32 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxFrameBytes != 1<<30 {
		t.Errorf("max frame bytes: got %d", cfg.MaxFrameBytes)
	}
	if cfg.UsesRegistry() {
		t.Error("defaults must not use the registry")
	}
}

func TestLoadSinkConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
addr = "0.0.0.0:9000"
width = 1920
height = 1080
stream = "cam"
advertise_addr = "10.0.0.5:9000"
etcd_endpoints = [" 127.0.0.1:2379 ", "", "127.0.0.1:2379", "127.0.0.2:2379"]
weight = 3
snapshot_path = "/tmp/last.png"
`)
	cfg, err := LoadSinkConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "0.0.0.0:9000" || cfg.Width != 1920 || cfg.Height != 1080 {
		t.Fatalf("unexpected listener config: %+v", cfg)
	}
	if len(cfg.EtcdEndpoints) != 2 || cfg.EtcdEndpoints[0] != "127.0.0.1:2379" {
		t.Fatalf("endpoints not normalized: %q", cfg.EtcdEndpoints)
	}
	if !cfg.UsesRegistry() || cfg.Weight != 3 {
		t.Fatalf("unexpected registry config: %+v", cfg)
	}
	if cfg.SnapshotEvery != 100 {
		t.Errorf("snapshot_every default lost: %d", cfg.SnapshotEvery)
	}
}

func TestLoadSinkConfigRejects(t *testing.T) {
	cases := map[string]string{
		"zero width":       "width = 0",
		"frame limit":      "width = 100\nheight = 100\nmax_frame_bytes = 1000",
		"no advertise":     "stream = \"cam\"\netcd_endpoints = [\"127.0.0.1:2379\"]",
		"unknown key":      "colour = \"blue\"",
		"malformed toml":   "width = ",
		"negative weight":  "weight = -1",
		"wrong value type": "height = \"tall\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSinkConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expect error for %q", body)
			}
		})
	}
}

func TestLoadSinkConfigMissingFile(t *testing.T) {
	_, err := LoadSinkConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "load sink config") {
		t.Fatalf("expect load error, got %v", err)
	}
}

func TestLoadSourceConfig(t *testing.T) {
	path := writeConfig(t, `
stream = "cam"
etcd_endpoints = ["127.0.0.1:2379"]
balancer = "Consistent_Hash"
source_id = "camera-7"
fps = 12.5
burst = 2
drop = true
`)
	cfg, err := LoadSourceConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.UsesRegistry() || cfg.Balancer != "consistent_hash" || cfg.SourceID != "camera-7" {
		t.Fatalf("unexpected discovery config: %+v", cfg)
	}
	if cfg.FPS != 12.5 || cfg.Burst != 2 || !cfg.Drop {
		t.Fatalf("unexpected pacing config: %+v", cfg)
	}
}

func TestLoadSourceConfigRejects(t *testing.T) {
	cases := map[string]string{
		"no target":   "sink_addr = \"\"",
		"balancer":    "balancer = \"random\"",
		"negative":    "fps = -1.0",
		"zero burst":  "fps = 10.0\nburst = 0",
		"unknown key": "sink = \"x\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSourceConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expect error for %q", body)
			}
		})
	}
}
