package access

import "errors"

var (
	// ErrUnauthorized indicates the caller lacks the role required for the operation.
	ErrUnauthorized = errors.New("access: unauthorized")

	// ErrZeroAddress indicates the zero address was supplied where an account is required.
	ErrZeroAddress = errors.New("access: zero address")
)
