// Package invoice implements the invoice registry: merchant-authored payment
// requests and their lifecycle (Active, then Settled or Cancelled, with
// Expired derived from the deadline at read time).
package invoice

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
)

// Status is the lifecycle state of an invoice.
type Status uint8

const (
	StatusNone Status = iota
	StatusActive
	StatusSettled
	StatusCancelled
	// StatusExpired is never stored. It is reported for Active invoices
	// whose deadline has passed.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusActive:
		return "active"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// Record is the canonical state of one invoice.
type Record struct {
	ID           common.Hash
	Merchant     common.Address
	Receiver     common.Address
	TokenOut     common.Address
	AmountOut    *uint256.Int
	Deadline     uint64 // unix seconds, 0 = never expires
	Ref          common.Hash
	Nonce        uint64
	Memo         string
	CreatedAt    uint64
	Status       Status
	SettlementTx common.Hash
}

// EffectiveStatus returns the status of r as observed at now. An Active
// record past its deadline reports StatusExpired. It never modifies r.
func EffectiveStatus(r *Record, now uint64) Status {
	if r == nil {
		return StatusNone
	}
	if r.Status == StatusActive && r.Deadline != 0 && now > r.Deadline {
		return StatusExpired
	}
	return r.Status
}

// DeriveID computes the invoice id for a merchant's nonce and reference:
// keccak256(merchant || uint256(nonce) || ref).
func DeriveID(merchant common.Address, nonce uint64, ref common.Hash) common.Hash {
	return chain.Keccak256(merchant.Bytes(), chain.Word(nonce), ref.Bytes())
}

// CreateParams are the merchant-supplied fields of a new invoice.
type CreateParams struct {
	Receiver  common.Address
	TokenOut  common.Address
	AmountOut *uint256.Int
	Deadline  uint64
	Ref       common.Hash
	Memo      string `validate:"max=256"`
}
