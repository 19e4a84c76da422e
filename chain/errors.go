package chain

import "errors"

var (
	// ErrInsufficientNative indicates a native currency balance is too low for a transfer.
	ErrInsufficientNative = errors.New("chain: insufficient native balance")

	// ErrNilCall indicates a state mutation was attempted outside a call frame.
	ErrNilCall = errors.New("chain: nil call frame")

	// ErrNotSender indicates a frame tried to debit an account other than its sender.
	ErrNotSender = errors.New("chain: debit from account other than sender")

	// ErrReentrant indicates Execute was called while another execution was in progress.
	ErrReentrant = errors.New("chain: execution already in progress")

	// ErrOverflow indicates a 256-bit arithmetic overflow.
	ErrOverflow = errors.New("chain: arithmetic overflow")
)
