package router

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/invoice"
)

// MaxFeeBps caps the protocol fee at 1%.
const MaxFeeBps = 100

const bpsDenominator = 10_000

// Descriptor is what a payer settles against. InvoiceID is required when a
// registry is wired and ignored otherwise.
type Descriptor struct {
	InvoiceID common.Hash
	Receiver  common.Address
	TokenOut  common.Address
	AmountOut *uint256.Int
	Deadline  uint64
	Ref       common.Hash
	Nonce     uint64
}

// Key identifies the descriptor for replay protection.
func (d Descriptor) Key() common.Hash {
	return chain.Keccak256(d.Receiver.Bytes(), d.TokenOut.Bytes(), d.Ref.Bytes(), chain.Word(d.Nonce))
}

// DescriptorFromRecord projects a stored invoice onto the descriptor a payer settles.
func DescriptorFromRecord(rec *invoice.Record) Descriptor {
	return Descriptor{
		InvoiceID: rec.ID,
		Receiver:  rec.Receiver,
		TokenOut:  rec.TokenOut,
		AmountOut: rec.AmountOut.Clone(),
		Deadline:  rec.Deadline,
		Ref:       rec.Ref,
		Nonce:     rec.Nonce,
	}
}

// SwapInstructions is passed through to the swap adapter unchanged.
type SwapInstructions struct {
	Commands []byte
	Inputs   [][]byte
	Deadline uint64
}

func (s *SwapInstructions) empty() bool {
	return s == nil || len(s.Commands) == 0
}

// FeeConfig is the protocol fee. A zero Recipient disables the fee.
type FeeConfig struct {
	Recipient common.Address
	Bps       uint16
}

// Enabled reports whether settlements pay a fee.
func (f FeeConfig) Enabled() bool {
	return f.Recipient != (common.Address{}) && f.Bps != 0
}

// Fee returns floor(amount * Bps / 10000), or zero when the fee is disabled.
func (f FeeConfig) Fee(amount *uint256.Int) (*uint256.Int, error) {
	if !f.Enabled() {
		return new(uint256.Int), nil
	}
	prod, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(f.Bps)))
	if overflow {
		return nil, ErrOverflow
	}
	return prod.Div(prod, uint256.NewInt(bpsDenominator)), nil
}
