// Package chain provides the serialized, all-or-nothing execution host the
// payment contracts run on.
//
// Every top-level operation runs inside Env.Execute. State owners register
// undo closures with the current Call; if the operation returns an error the
// closures run in reverse and the emitted events are discarded, so a failed
// call leaves no trace.
package chain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is an append-only observability record emitted by a contract.
type Event interface {
	EventName() string
}

// Log is a committed event.
type Log struct {
	Address common.Address
	TxHash  common.Hash
	Index   uint64
	Time    uint64
	Event   Event
}

// Msg describes a top-level execution request.
type Msg struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// Receipt summarizes a successful execution.
type Receipt struct {
	TxHash common.Hash
	Time   uint64
	Logs   []Log
}

// Env runs one execution at a time and owns native balances and the event log.
type Env struct {
	busy atomic.Bool
	seq  uint64

	clock Clock

	mu     sync.RWMutex
	native map[common.Address]*uint256.Int
	logs   []Log
	subs   []func(Log)
}

// NewEnv creates an environment reading time from clock.
// A nil clock falls back to SystemClock.
func NewEnv(clock Clock) *Env {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Env{
		clock:  clock,
		native: make(map[common.Address]*uint256.Int),
	}
}

// Now returns the current block time.
func (e *Env) Now() uint64 { return e.clock.Now() }

// Execute runs fn as one atomic transaction. Attached value moves from
// msg.From to msg.To before fn runs. Any error, or a panic, reverts every
// journaled mutation and drops the transaction's events.
//
// One execution runs at a time. Execute called while another execution is in
// progress, including from code running inside it, fails with ErrReentrant.
func (e *Env) Execute(ctx context.Context, msg Msg, fn func(call *Call) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, logs, err := e.execute(ctx, msg, fn)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	subs := append([]func(Log){}, e.subs...)
	e.mu.RUnlock()
	for _, lg := range logs {
		for _, sub := range subs {
			sub(lg)
		}
	}

	return &Receipt{TxHash: tx.hash, Time: tx.time, Logs: logs}, nil
}

func (e *Env) execute(ctx context.Context, msg Msg, fn func(call *Call) error) (*txState, []Log, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrReentrant
	}
	defer e.busy.Store(false)

	e.seq++
	now := e.clock.Now()
	tx := &txState{
		hash: Keccak256(Word(e.seq), msg.From.Bytes(), Word(now)),
		time: now,
	}
	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}
	call := &Call{ctx: ctx, env: e, tx: tx, Sender: msg.From, Value: value}

	logs, err := e.run(call, msg, fn)
	return tx, logs, err
}

func (e *Env) run(call *Call, msg Msg, fn func(call *Call) error) (logs []Log, err error) {
	tx := call.tx
	defer func() {
		if r := recover(); r != nil {
			tx.revert()
			panic(r)
		}
	}()

	if !call.Value.IsZero() {
		if err := e.TransferNative(call, msg.From, msg.To, call.Value); err != nil {
			tx.revert()
			return nil, err
		}
	}

	if err := fn(call); err != nil {
		tx.revert()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	logs = make([]Log, len(tx.events))
	for i, pe := range tx.events {
		logs[i] = Log{
			Address: pe.address,
			TxHash:  tx.hash,
			Index:   uint64(len(e.logs)),
			Time:    tx.time,
			Event:   pe.event,
		}
		e.logs = append(e.logs, logs[i])
	}
	return logs, nil
}

// Subscribe registers fn to receive every committed log.
func (e *Env) Subscribe(fn func(Log)) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// Logs returns committed logs for which match returns true. A nil match returns all logs.
func (e *Env) Logs(match func(Log) bool) []Log {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Log
	for _, lg := range e.logs {
		if match == nil || match(lg) {
			out = append(out, lg)
		}
	}
	return out
}

// NativeBalance returns the native currency balance of addr.
func (e *Env) NativeBalance(addr common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if b, ok := e.native[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// FundNative credits addr outside of any transaction (genesis allocation).
func (e *Env) FundNative(addr common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sum, overflow := new(uint256.Int).AddOverflow(e.balance(addr), amount)
	if overflow {
		return ErrOverflow
	}
	e.native[addr] = sum
	return nil
}

// TransferNative moves amount of native currency from one account to another
// within call. Only call.Sender may be debited.
func (e *Env) TransferNative(call *Call, from, to common.Address, amount *uint256.Int) error {
	if call == nil {
		return ErrNilCall
	}
	if from != call.Sender {
		return fmt.Errorf("%w: %s debited by %s", ErrNotSender, from.Hex(), call.Sender.Hex())
	}
	if amount.IsZero() {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fromBal := e.balance(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientNative, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal := e.balance(to)
	newTo, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ErrOverflow
	}

	prevFrom, prevTo := fromBal, toBal
	e.native[from] = new(uint256.Int).Sub(fromBal, amount)
	e.native[to] = newTo
	call.OnRevert(func() {
		e.mu.Lock()
		e.native[from] = prevFrom
		e.native[to] = prevTo
		e.mu.Unlock()
	})
	return nil
}

func (e *Env) balance(addr common.Address) *uint256.Int {
	if b, ok := e.native[addr]; ok {
		return b
	}
	return new(uint256.Int)
}
