package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
)

// WrappedNative is the canonical wrapped-native token. Native currency
// deposited with it is held at Address and mirrored 1:1 as a ledger balance of
// the token at the same address.
type WrappedNative struct {
	Address common.Address
	ledger  *Ledger
}

// NewWrappedNative registers the wrapped-native token at address on ledger.
func NewWrappedNative(ledger *Ledger, address common.Address, meta Metadata) *WrappedNative {
	ledger.Register(address, meta)
	return &WrappedNative{Address: address, ledger: ledger}
}

// Deposit wraps amount of call.Sender's native currency.
func (w *WrappedNative) Deposit(call *chain.Call, amount *uint256.Int) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if amount.IsZero() {
		return nil
	}
	if err := call.Env().TransferNative(call, call.Sender, w.Address, amount); err != nil {
		return err
	}
	return w.ledger.Mint(call.Sub(w.Address), w.Address, call.Sender, amount)
}

// Withdraw burns amount of call.Sender's wrapped balance and returns native currency.
func (w *WrappedNative) Withdraw(call *chain.Call, amount *uint256.Int) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if amount.IsZero() {
		return nil
	}

	l := w.ledger
	l.mu.Lock()
	bal := l.balance(w.Address, call.Sender)
	if bal.Lt(amount) {
		l.mu.Unlock()
		return ErrInsufficientBalance
	}
	l.setBalance(call, w.Address, call.Sender, new(uint256.Int).Sub(bal, amount))
	l.mu.Unlock()

	return call.Env().TransferNative(call.Sub(w.Address), w.Address, call.Sender, amount)
}
