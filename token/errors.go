package token

import "errors"

var (
	// ErrInsufficientBalance indicates the sender holds less than the transfer amount.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientAllowance indicates the spender is not approved for the transfer amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrZeroAddress indicates a transfer to or from the zero address.
	ErrZeroAddress = errors.New("token: zero address")

	// ErrNotMinter indicates a mint inside a call by anyone other than the token.
	ErrNotMinter = errors.New("token: caller is not the minter")

	// ErrOverflow indicates a balance would exceed 2^256-1.
	ErrOverflow = errors.New("token: balance overflow")
)
