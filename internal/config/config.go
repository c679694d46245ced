package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config keeps runtime settings for the server.
type Config struct {
	DatabaseURL       string
	HTTPAddr          string
	RedisAddr         string        // empty disables the stats cache
	ReconcileInterval time.Duration // 0 disables the periodic sweep
	ReconcileTime     string        // optional HH:MM; runs the sweep daily instead of on an interval
	ReconcileRepair   bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:          strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		ReconcileInterval: 24 * time.Hour,
		ReconcileTime:     strings.TrimSpace(os.Getenv("RECONCILE_TIME")),
		ReconcileRepair:   strings.TrimSpace(os.Getenv("RECONCILE_REPAIR")) == "true",
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "timeclerk.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	// An explicit 0 disables the sweep; only an absent variable falls
	// back to the daily default.
	if raw := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL_HOURS")); raw != "" {
		interval, err := parseInterval(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.ReconcileInterval = interval
	}

	return cfg, nil
}

func parseInterval(raw string) (time.Duration, error) {
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid RECONCILE_INTERVAL_HOURS %q", raw)
	}
	return hours, nil
}
