// Copyright (c) 2025 The BitNS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrMissingAddress indicates a required platform address is unset.
	ErrMissingAddress = errors.New("config: admin, treasury and fee treasury addresses are required")

	// ErrFeeTooHigh indicates a marketplace fee above the 10% ceiling.
	ErrFeeTooHigh = errors.New("config: market fee bps exceeds 1000")

	// ErrRoyaltyTooHigh indicates a royalty rate above 10,000 bps.
	ErrRoyaltyTooHigh = errors.New("config: royalty bps exceeds 10000")

	// ErrBadShareSplit indicates creator and treasury shares that do not sum
	// to 10,000 bps.
	ErrBadShareSplit = errors.New("config: creator and treasury shares must sum to 10000")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")
)
