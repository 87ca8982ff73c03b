package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PBKDF2Iterations < 100_000 {
		t.Fatalf("expected default iterations >= 100000, got %d", cfg.PBKDF2Iterations)
	}
	if cfg.GossipFanout != defaultGossipFanout {
		t.Fatalf("expected default fanout %d, got %d", defaultGossipFanout, cfg.GossipFanout)
	}
}

func TestLoadRejectsLowPBKDF2Iterations(t *testing.T) {
	t.Setenv("CHRYSALIS_PBKDF2_ITERATIONS", "100")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for low iteration count")
	}
}

func TestLoadRejectsOutOfRangeFidelity(t *testing.T) {
	t.Setenv("CHRYSALIS_MIN_FIDELITY_SCORE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range fidelity")
	}
}
