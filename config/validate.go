// Copyright (c) 2025 The BitNS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "strings"

// maxMarketFeeBps is the ceiling on the marketplace fee, 10%.
const maxMarketFeeBps = 1_000

// totalBps is one whole in basis points.
const totalBps = 10_000

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Admin == "" || cfg.Treasury == "" || cfg.FeeTreasury == "" {
		return ErrMissingAddress
	}

	if cfg.MarketFeeBps > maxMarketFeeBps {
		return ErrFeeTooHigh
	}

	if cfg.DefaultRoyaltyBps > totalBps {
		return ErrRoyaltyTooHigh
	}

	if cfg.CreatorShareBps+cfg.TreasuryShareBps != totalBps {
		return ErrBadShareSplit
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}
