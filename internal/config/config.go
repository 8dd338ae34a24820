// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable for the grid server. Values come from the
// environment; defaults match the upstream behavior the service replicates.
type Config struct {
	Addr            string        `env:"HNGRID_ADDR" envDefault:":8080"`
	DBPath          string        `env:"HNGRID_DB" envDefault:"hngrid.db"`
	FrontPageURL    string        `env:"HNGRID_FRONT_PAGE_URL" envDefault:"https://news.ycombinator.com/"`
	FeedURL         string        `env:"HNGRID_FEED_URL" envDefault:"https://hnrss.org/frontpage"`
	UserAgent       string        `env:"HNGRID_USER_AGENT" envDefault:"Mozilla/5.0 (compatible; hngrid/1.0)"`
	FetchTimeout    time.Duration `env:"HNGRID_FETCH_TIMEOUT" envDefault:"15s"`
	ThumbWorkers    int           `env:"HNGRID_THUMB_WORKERS" envDefault:"3"`
	FetchRPS        float64       `env:"HNGRID_FETCH_RPS" envDefault:"8"`
	SessionTTL      time.Duration `env:"HNGRID_SESSION_TTL" envDefault:"12h"`
	SweepInterval   time.Duration `env:"HNGRID_SWEEP_INTERVAL" envDefault:"10m"`
	ListingCacheTTL time.Duration `env:"HNGRID_LISTING_CACHE_TTL" envDefault:"60s"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ThumbWorkers < 1 {
		cfg.ThumbWorkers = 1
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	return cfg, nil
}
