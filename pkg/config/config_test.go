package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.RXPort != DefaultRXPort || cfg.TXPort != DefaultTXPort {
		t.Fatalf("unexpected default ports: rx=%d tx=%d", cfg.RXPort, cfg.TXPort)
	}
	if cfg.StatusAddr != DefaultStatusAddr {
		t.Errorf("unexpected default status addr: %s", cfg.StatusAddr)
	}
}

func TestLoadYAMLBytes_Overrides(t *testing.T) {
	data := []byte(`
rx_port: 6001
tx_port: 6000
dry_run: true
storage_path: disabled
debug_level: 2
`)

	cfg, err := LoadYAMLBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RXPort != 6001 || cfg.TXPort != 6000 {
		t.Errorf("ports not overridden: rx=%d tx=%d", cfg.RXPort, cfg.TXPort)
	}
	if !cfg.DryRun {
		t.Error("expected dry_run=true")
	}
	if cfg.StoragePath != "disabled" {
		t.Errorf("expected storage_path disabled, got %s", cfg.StoragePath)
	}
	if cfg.DebugLevel != 2 {
		t.Errorf("expected debug_level 2, got %d", cfg.DebugLevel)
	}
	// Unset fields keep their defaults.
	if cfg.Adapter != DefaultAdapterIndex {
		t.Errorf("expected default adapter, got %d", cfg.Adapter)
	}
}

func TestLoadYAMLBytes_Empty(t *testing.T) {
	cfg, err := LoadYAMLBytes(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RXPort != DefaultRXPort {
		t.Errorf("expected default rx port, got %d", cfg.RXPort)
	}
}

func TestLoadYAMLBytes_Malformed(t *testing.T) {
	_, err := LoadYAMLBytes([]byte("rx_port: [this is not an int"))
	if err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestExpandStoragePath(t *testing.T) {
	if got := ExpandStoragePath("disabled"); got != "disabled" {
		t.Errorf("expected disabled to pass through, got %s", got)
	}
	if got := ExpandStoragePath(""); got != "" {
		t.Errorf("expected empty to pass through, got %q", got)
	}
	if got := ExpandStoragePath("/tmp/x/../y.db"); got != "/tmp/y.db" {
		t.Errorf("expected cleaned path, got %s", got)
	}
}
