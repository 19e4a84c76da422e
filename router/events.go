package router

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PaymentExecuted summarizes one settled descriptor. AmountIn is the total
// input acquired by the attempt.
type PaymentExecuted struct {
	InvoiceID common.Hash
	Ref       common.Hash
	Payer     common.Address
	Receiver  common.Address
	TokenIn   common.Address
	AmountIn  *uint256.Int
	TokenOut  common.Address
	AmountOut *uint256.Int
	Fee       *uint256.Int
}

// BatchSettled closes a batch settlement.
type BatchSettled struct {
	Count     uint64
	Timestamp uint64
}

// BridgeSettlementExecuted records a settlement paid from bridged funds.
type BridgeSettlementExecuted struct {
	Caller      common.Address
	Ref         common.Hash
	TokenIn     common.Address
	AmountIn    *uint256.Int
	MinAmountIn *uint256.Int
}

// FeeConfigUpdated is emitted when the owner changes the fee.
type FeeConfigUpdated struct {
	Recipient common.Address
	Bps       uint16
}

// RouterAddressUpdated is emitted when the swap adapter changes.
type RouterAddressUpdated struct {
	Previous common.Address
	Current  common.Address
}

func (PaymentExecuted) EventName() string          { return "PaymentExecuted" }
func (BatchSettled) EventName() string             { return "BatchSettled" }
func (BridgeSettlementExecuted) EventName() string { return "BridgeSettlementExecuted" }
func (FeeConfigUpdated) EventName() string         { return "FeeConfigUpdated" }
func (RouterAddressUpdated) EventName() string     { return "RouterAddressUpdated" }
