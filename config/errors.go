// Copyright (c) 2024 The PayRoute developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"devnet\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidLogFormat indicates the log format is neither console nor json.
	ErrInvalidLogFormat = errors.New("config: invalid log format (must be \"console\" or \"json\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidAddress indicates an account address is missing or not 0x-prefixed hex.
	ErrInvalidAddress = errors.New("config: invalid account address")

	// ErrFeeTooHigh indicates a fee above 100 basis points.
	ErrFeeTooHigh = errors.New("config: fee_bps must not exceed 100")

	// ErrInvalidDNSUpstream indicates the DNS upstream is not host:port.
	ErrInvalidDNSUpstream = errors.New("config: invalid dns upstream")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)
