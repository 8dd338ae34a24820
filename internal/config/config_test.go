package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v, want 15s", cfg.FetchTimeout)
	}
	if cfg.ThumbWorkers != 3 {
		t.Errorf("ThumbWorkers = %d, want 3", cfg.ThumbWorkers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HNGRID_ADDR", ":9999")
	t.Setenv("HNGRID_THUMB_WORKERS", "0")
	t.Setenv("HNGRID_FETCH_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.ThumbWorkers != 1 {
		t.Errorf("ThumbWorkers = %d, want clamp to 1", cfg.ThumbWorkers)
	}
	if cfg.FetchTimeout != 2*time.Second {
		t.Errorf("FetchTimeout = %v, want 2s", cfg.FetchTimeout)
	}
}
