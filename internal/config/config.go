// Package config loads cache settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/and161185/fedicache/internal/crypto/atrest"
	"github.com/and161185/fedicache/internal/identity"
)

// Config holds the settings of a cache host process.
type Config struct {
	Root          string `env:"FEDICACHE_ROOT"             envDefault:"./fedicache-data"`
	Mode          string `env:"FEDICACHE_MODE"             envDefault:"persistent"`
	KDFTime       uint32 `env:"FEDICACHE_KDF_TIME"         envDefault:"3"`
	KDFMemoryKiB  uint32 `env:"FEDICACHE_KDF_MEMORY_KIB"   envDefault:"65536"`
	KDFThreads    uint8  `env:"FEDICACHE_KDF_THREADS"      envDefault:"1"`
	TimelineLimit int    `env:"FEDICACHE_TIMELINE_LIMIT"   envDefault:"1000"`
	GCWorkers     int    `env:"FEDICACHE_GC_WORKERS"       envDefault:"4"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := identity.ParseMode(cfg.Mode); err != nil {
		return Config{}, err
	}
	if cfg.KDFTime == 0 || cfg.KDFMemoryKiB == 0 || cfg.KDFThreads == 0 {
		return Config{}, fmt.Errorf("kdf parameters must be positive")
	}
	return cfg, nil
}

// StoreMode returns the parsed default store mode.
func (c Config) StoreMode() identity.Mode {
	m, _ := identity.ParseMode(c.Mode)
	return m
}

// Identity returns the identity manager configuration.
func (c Config) Identity() identity.Config {
	return identity.Config{
		Root:          c.Root,
		KDF:           atrest.KDFParams{Time: c.KDFTime, MemoryKiB: c.KDFMemoryKiB, Threads: c.KDFThreads},
		TimelineLimit: c.TimelineLimit,
		GCWorkers:     c.GCWorkers,
	}
}
