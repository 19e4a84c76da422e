package router

import "errors"

var (
	// ErrZeroAmount indicates a zero invoice amount or zero acquired input.
	ErrZeroAmount = errors.New("router: zero amount")

	// ErrExpired indicates the descriptor's deadline has passed.
	ErrExpired = errors.New("router: descriptor expired")

	// ErrReplayRejected indicates the descriptor was already settled.
	ErrReplayRejected = errors.New("router: descriptor already settled")

	// ErrInvalidState indicates the linked invoice is not Active.
	ErrInvalidState = errors.New("router: invoice not settleable")

	// ErrDescriptorMismatch indicates the descriptor disagrees with the stored invoice.
	ErrDescriptorMismatch = errors.New("router: descriptor does not match invoice")

	// ErrInvalidDescriptor indicates a descriptor with a zero receiver or token.
	ErrInvalidDescriptor = errors.New("router: invalid descriptor")

	// ErrInvalidRoute indicates missing, unexpected or malformed swap instructions.
	ErrInvalidRoute = errors.New("router: invalid swap route")

	// ErrInvalidBatch indicates an empty batch or one with mixed output tokens.
	ErrInvalidBatch = errors.New("router: invalid batch")

	// ErrInsufficientFunds indicates acquired input below the settlement target.
	ErrInsufficientFunds = errors.New("router: insufficient funds")

	// ErrInsufficientOutput indicates the swap produced less than the settlement target.
	ErrInsufficientOutput = errors.New("router: insufficient swap output")

	// ErrFeeTooHigh indicates a fee above MaxFeeBps.
	ErrFeeTooHigh = errors.New("router: fee exceeds cap")

	// ErrReentrant indicates a settlement was entered while another was in progress.
	ErrReentrant = errors.New("router: reentrant call")

	// ErrNativeUnsupported indicates native settlement without a wrapped-native token.
	ErrNativeUnsupported = errors.New("router: native settlement not configured")

	// ErrOverflow indicates an amount sum exceeded 256 bits.
	ErrOverflow = errors.New("router: amount overflow")
)
