// Package token implements ERC20-style fungible token accounting on top of
// the chain execution host.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
)

// TransferHook runs after every successful transfer of the token it is
// attached to, inside the same transaction. The hook gets the token's own
// frame: call.Sender is the token and call.Caller() is the account that made
// the transfer. Returning an error reverts the call.
type TransferHook func(call *chain.Call, token, from, to common.Address, amount *uint256.Int) error

type allowanceKey struct {
	owner, spender common.Address
}

// Ledger holds balances and allowances for any number of tokens.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[allowanceKey]*uint256.Int
	meta       map[common.Address]Metadata
	hooks      map[common.Address]TransferHook
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[allowanceKey]*uint256.Int),
		meta:       make(map[common.Address]Metadata),
		hooks:      make(map[common.Address]TransferHook),
	}
}

// Register records display metadata for token.
func (l *Ledger) Register(token common.Address, meta Metadata) {
	l.mu.Lock()
	l.meta[token] = meta
	l.mu.Unlock()
}

// Metadata returns the registered metadata for token.
func (l *Ledger) Metadata(token common.Address) (Metadata, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.meta[token]
	return m, ok
}

// SetHook attaches a transfer hook to token. A nil hook removes it.
func (l *Ledger) SetHook(token common.Address, hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, token)
		return
	}
	l.hooks[token] = hook
}

// BalanceOf returns owner's balance of token.
func (l *Ledger) BalanceOf(token, owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.balance(token, owner))
}

// Allowance returns how much spender may move from owner's balance of token.
func (l *Ledger) Allowance(token, owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.allowance(token, owner, spender))
}

// Mint credits amount of token to to. With a nil call the credit is
// permanent (genesis allocation or an inbound bridge delivery); with a call it
// is journaled and only the token itself may mint.
func (l *Ledger) Mint(call *chain.Call, token, to common.Address, amount *uint256.Int) error {
	if call != nil && call.Sender != token {
		return fmt.Errorf("%w: %s cannot mint %s", ErrNotMinter, call.Sender.Hex(), token.Hex())
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint recipient", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sum, overflow := new(uint256.Int).AddOverflow(l.balance(token, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.setBalance(call, token, to, sum)
	return nil
}

// Transfer moves amount of token from call.Sender to to.
func (l *Ledger) Transfer(call *chain.Call, token, to common.Address, amount *uint256.Int) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if err := l.move(call, token, call.Sender, to, amount); err != nil {
		return err
	}
	return l.runHook(call, token, call.Sender, to, amount)
}

// TransferFrom moves amount of token from from to to, spending call.Sender's allowance.
func (l *Ledger) TransferFrom(call *chain.Call, token, from, to common.Address, amount *uint256.Int) error {
	if call == nil {
		return chain.ErrNilCall
	}

	l.mu.Lock()
	allowed := l.allowance(token, from, call.Sender)
	if allowed.Lt(amount) {
		l.mu.Unlock()
		return fmt.Errorf("%w: spender %s has %s, needs %s", ErrInsufficientAllowance, call.Sender.Hex(), allowed, amount)
	}
	l.setAllowance(call, token, from, call.Sender, new(uint256.Int).Sub(allowed, amount))
	l.mu.Unlock()

	if err := l.move(call, token, from, to, amount); err != nil {
		return err
	}
	return l.runHook(call, token, from, to, amount)
}

// Approve sets spender's allowance over call.Sender's balance of token.
func (l *Ledger) Approve(call *chain.Call, token, spender common.Address, amount *uint256.Int) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowance(call, token, call.Sender, spender, new(uint256.Int).Set(amount))
	return nil
}

func (l *Ledger) move(call *chain.Call, token, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer recipient", ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal := l.balance(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, overflow := new(uint256.Int).AddOverflow(l.balance(token, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.setBalance(call, token, from, new(uint256.Int).Sub(fromBal, amount))
	l.setBalance(call, token, to, toBal)
	return nil
}

func (l *Ledger) runHook(call *chain.Call, token, from, to common.Address, amount *uint256.Int) error {
	l.mu.RLock()
	hook := l.hooks[token]
	l.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(call.Sub(token), token, from, to, new(uint256.Int).Set(amount))
}

// balance and allowance expect l.mu to be held.
func (l *Ledger) balance(token, owner common.Address) *uint256.Int {
	if b, ok := l.balances[token][owner]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(token, owner, spender common.Address) *uint256.Int {
	if a, ok := l.allowances[token][allowanceKey{owner, spender}]; ok {
		return a
	}
	return new(uint256.Int)
}

func (l *Ledger) setBalance(call *chain.Call, token, owner common.Address, v *uint256.Int) {
	byOwner, ok := l.balances[token]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		l.balances[token] = byOwner
	}
	prev, had := byOwner[owner]
	byOwner[owner] = v
	if call == nil {
		return
	}
	call.OnRevert(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if had {
			l.balances[token][owner] = prev
		} else {
			delete(l.balances[token], owner)
		}
	})
}

func (l *Ledger) setAllowance(call *chain.Call, token, owner, spender common.Address, v *uint256.Int) {
	byPair, ok := l.allowances[token]
	if !ok {
		byPair = make(map[allowanceKey]*uint256.Int)
		l.allowances[token] = byPair
	}
	key := allowanceKey{owner, spender}
	prev, had := byPair[key]
	byPair[key] = v
	call.OnRevert(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if had {
			l.allowances[token][key] = prev
		} else {
			delete(l.allowances[token], key)
		}
	})
}
