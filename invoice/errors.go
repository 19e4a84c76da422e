package invoice

import (
	"errors"
	"fmt"

	"github.com/payroute/libpayroute-go/access"
)

var (
	// ErrNotFound indicates no invoice exists under the given id.
	ErrNotFound = errors.New("invoice: not found")

	// ErrInvalidState indicates the invoice's effective status does not permit the transition.
	ErrInvalidState = errors.New("invoice: invalid state transition")

	// ErrExpired indicates the invoice deadline passed before it could be settled.
	ErrExpired = errors.New("invoice: expired")

	// ErrZeroAmount indicates an invoice for zero units.
	ErrZeroAmount = errors.New("invoice: zero amount")

	// ErrDeadlinePassed indicates a non-zero deadline that is already in the past at creation.
	ErrDeadlinePassed = errors.New("invoice: deadline already passed")

	// ErrIDCollision indicates the derived invoice id is already taken.
	ErrIDCollision = errors.New("invoice: id collision")

	// ErrInvalidParams indicates malformed creation parameters.
	ErrInvalidParams = errors.New("invoice: invalid parameters")

	// ErrCorruptRecord indicates a stored record could not be decoded.
	ErrCorruptRecord = errors.New("invoice: corrupt record")

	// ErrNotMerchant indicates a caller other than the merchant tried to cancel.
	ErrNotMerchant = fmt.Errorf("invoice: caller is not the merchant: %w", access.ErrUnauthorized)
)
