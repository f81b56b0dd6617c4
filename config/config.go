// Copyright (c) 2025 The BitNS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config holds the settlement platform configuration: data directory,
// marketplace fee, royalty defaults and the platform addresses. Values come
// from the environment on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config captures everything needed to assemble the settlement platform.
type Config struct {
	// DataDir is where the settlement database lives.
	DataDir string `env:"BITNS_DATA_DIR"`

	// DatabaseFile is the bbolt file name inside DataDir.
	DatabaseFile string `env:"BITNS_DATABASE_FILE" envDefault:"settlement.db"`

	// MarketFeeBps is the marketplace cut per sale in basis points.
	MarketFeeBps uint32 `env:"BITNS_MARKET_FEE_BPS" envDefault:"250"`

	// DefaultRoyaltyBps is the collection-wide royalty rate in basis points.
	DefaultRoyaltyBps uint32 `env:"BITNS_ROYALTY_BPS" envDefault:"500"`

	// CreatorShareBps and TreasuryShareBps apportion splitter deposits. They
	// must sum to 10,000.
	CreatorShareBps  uint32 `env:"BITNS_CREATOR_SHARE_BPS" envDefault:"4000"`
	TreasuryShareBps uint32 `env:"BITNS_TREASURY_SHARE_BPS" envDefault:"6000"`

	// Admin is the address holding the platform admin permissions.
	Admin string `env:"BITNS_ADMIN_ADDR"`

	// Treasury receives the treasury share of splitter deposits.
	Treasury string `env:"BITNS_TREASURY_ADDR"`

	// FeeTreasury receives withdrawn marketplace fees.
	FeeTreasury string `env:"BITNS_FEE_TREASURY_ADDR"`

	// LogLevel controls log verbosity: debug, info, warn or error.
	LogLevel string `env:"BITNS_LOG_LEVEL" envDefault:"info"`
}

// DefaultConfig returns the built-in defaults. The data directory defaults to
// .bitns under the user's home directory.
func DefaultConfig() Config {
	return Config{
		DataDir:           defaultDataDir(),
		DatabaseFile:      "settlement.db",
		MarketFeeBps:      250,
		DefaultRoyaltyBps: 500,
		CreatorShareBps:   4_000,
		TreasuryShareBps:  6_000,
		LogLevel:          "info",
	}
}

// FromEnv builds a Config from the environment on top of the defaults and
// validates it.
func FromEnv() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabasePath returns the full path of the settlement database.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bitns"
	}
	return filepath.Join(home, ".bitns")
}
