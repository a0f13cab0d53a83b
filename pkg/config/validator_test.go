package config

import "testing"

func TestValidator_NilConfig(t *testing.T) {
	v := NewValidator()
	result := v.Validate(nil)
	if result.Valid {
		t.Error("expected invalid for nil config")
	}
}

func TestValidator_ValidConfig(t *testing.T) {
	cfg := Default()
	v := NewValidator()
	result := v.Validate(cfg)
	if !result.Valid {
		t.Errorf("expected valid config, got errors: %v", result.Errors)
	}
}

func TestValidator_BadPorts(t *testing.T) {
	cfg := Default()
	cfg.RXPort = 0
	cfg.TXPort = 70000

	v := NewValidator()
	result := v.Validate(cfg)
	if result.Valid {
		t.Fatal("expected invalid config for bad ports")
	}
	if !result.HasErrors() {
		t.Error("expected HasErrors true")
	}
}

func TestValidator_SamePort(t *testing.T) {
	cfg := Default()
	cfg.TXPort = cfg.RXPort

	v := NewValidator()
	result := v.Validate(cfg)
	if result.Valid {
		t.Fatal("expected invalid config when rx_port == tx_port")
	}
}

func TestValidator_EmptyStatusAddrIsWarningOnly(t *testing.T) {
	cfg := Default()
	cfg.StatusAddr = ""

	v := NewValidator()
	result := v.Validate(cfg)
	if !result.Valid {
		t.Errorf("expected config to remain valid with just a warning, got: %v", result.Errors)
	}
	if len(result.Errors) == 0 {
		t.Error("expected a warning entry for empty status address")
	}
}
