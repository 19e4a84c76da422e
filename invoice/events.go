package invoice

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// InvoiceCreated carries the full descriptor of a new invoice for off-chain indexing.
type InvoiceCreated struct {
	ID        common.Hash
	Merchant  common.Address
	Receiver  common.Address
	TokenOut  common.Address
	AmountOut *uint256.Int
	Deadline  uint64
	Ref       common.Hash
	Nonce     uint64
	Memo      string
}

// InvoiceCancelled is emitted when a merchant cancels an invoice.
type InvoiceCancelled struct {
	ID       common.Hash
	Merchant common.Address
}

// InvoiceSettled is emitted when an authorized caller marks an invoice paid.
type InvoiceSettled struct {
	ID           common.Hash
	SettlementTx common.Hash
}

func (InvoiceCreated) EventName() string   { return "InvoiceCreated" }
func (InvoiceCancelled) EventName() string { return "InvoiceCancelled" }
func (InvoiceSettled) EventName() string   { return "InvoiceSettled" }
