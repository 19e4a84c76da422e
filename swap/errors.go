package swap

import "errors"

var (
	// ErrMalformedRoute indicates the command list or its inputs cannot be executed.
	ErrMalformedRoute = errors.New("swap: malformed route")

	// ErrUnknownCommand indicates a command byte the adapter does not implement.
	ErrUnknownCommand = errors.New("swap: unknown command")

	// ErrDeadlinePassed indicates the route was submitted after its deadline.
	ErrDeadlinePassed = errors.New("swap: deadline passed")

	// ErrSlippage indicates the quoted amount falls outside the caller's bound.
	ErrSlippage = errors.New("swap: slippage bound exceeded")

	// ErrNoRate indicates the adapter has no rate for the token pair.
	ErrNoRate = errors.New("swap: no rate for pair")

	// ErrWrongFrame indicates Execute was given a frame that is not the adapter's own.
	ErrWrongFrame = errors.New("swap: call frame is not the adapter's")

	// ErrOverflow indicates an amount computation exceeded 256 bits.
	ErrOverflow = errors.New("swap: amount overflow")
)
