// Copyright (c) 2024 The PayRoute developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validate = validator.New()

// fieldErrors maps a struct field to the sentinel reported when it fails.
var fieldErrors = map[string]error{
	"DataDir":         ErrEmptyDataDir,
	"Network":         ErrInvalidNetwork,
	"LogFormat":       ErrInvalidLogFormat,
	"Owner":           ErrInvalidAddress,
	"RegistryAddress": ErrInvalidAddress,
	"RouterAddress":   ErrInvalidAddress,
	"WrappedNative":   ErrInvalidAddress,
	"SwapAdapter":     ErrInvalidAddress,
	"FeeRecipient":    ErrInvalidAddress,
	"FeeBps":          ErrFeeTooHigh,
	"DNSUpstream":     ErrInvalidDNSUpstream,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		fe := verrs[0]
		sentinel, ok := fieldErrors[fe.StructField()]
		if !ok {
			return err
		}
		return fmt.Errorf("%w: %s failed %q", sentinel, fe.StructField(), fe.Tag())
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.FeeBps > 0 && cfg.FeeRecipient == "" {
		return fmt.Errorf("%w: fee_bps set without fee_recipient", ErrInvalidAddress)
	}
	return nil
}
