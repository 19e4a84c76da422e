package profile

import "errors"

var (
	// ErrInvalidName indicates an empty or malformed profile name.
	ErrInvalidName = errors.New("profile: invalid name")

	// ErrDNSLookupFailed indicates the TXT lookup failed.
	ErrDNSLookupFailed = errors.New("profile: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("profile: DNSSEC validation failed")

	// ErrNoProfile indicates no payroute= record was published for the name.
	ErrNoProfile = errors.New("profile: no payment profile published")

	// ErrInvalidRecord indicates the published record is malformed.
	ErrInvalidRecord = errors.New("profile: invalid profile record")
)
