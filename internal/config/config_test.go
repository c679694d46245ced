package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "HTTP_ADDR", "REDIS_ADDR",
		"RECONCILE_INTERVAL_HOURS", "RECONCILE_TIME", "RECONCILE_REPAIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "timeclerk.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReconcileInterval != 24*time.Hour {
		t.Errorf("ReconcileInterval = %v, want 24h", cfg.ReconcileInterval)
	}
	if cfg.ReconcileRepair {
		t.Error("ReconcileRepair should default to false")
	}
}

func TestLoadExplicitZeroDisablesSweep(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECONCILE_INTERVAL_HOURS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval = %v, want 0 (sweep disabled)", cfg.ReconcileInterval)
	}
}

func TestLoadIntervalHours(t *testing.T) {
	clearEnv(t)

	t.Setenv("RECONCILE_INTERVAL_HOURS", "6")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconcileInterval != 6*time.Hour {
		t.Errorf("ReconcileInterval = %v, want 6h", cfg.ReconcileInterval)
	}

	t.Setenv("RECONCILE_INTERVAL_HOURS", "0.5")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconcileInterval != 30*time.Minute {
		t.Errorf("ReconcileInterval = %v, want 30m", cfg.ReconcileInterval)
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	for _, raw := range []string{"soon", "-1"} {
		clearEnv(t)
		t.Setenv("RECONCILE_INTERVAL_HOURS", raw)
		if _, err := Load(); err == nil {
			t.Errorf("Load() with RECONCILE_INTERVAL_HOURS=%q expected error", raw)
		}
	}
}

func TestLoadReconcileTime(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECONCILE_TIME", "03:30")
	t.Setenv("RECONCILE_REPAIR", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconcileTime != "03:30" {
		t.Errorf("ReconcileTime = %q, want 03:30", cfg.ReconcileTime)
	}
	if !cfg.ReconcileRepair {
		t.Error("ReconcileRepair should be true")
	}
}
