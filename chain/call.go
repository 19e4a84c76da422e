package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// txState is shared by every frame of one execution.
type txState struct {
	hash   common.Hash
	time   uint64
	undo   []func()
	events []pendingEvent
}

type pendingEvent struct {
	address common.Address
	event   Event
}

// Call is one frame of an execution: the message sender and attached value
// for the code currently running, plus the transaction-wide journal.
type Call struct {
	ctx    context.Context
	env    *Env
	tx     *txState
	caller common.Address
	Sender common.Address
	Value  *uint256.Int
}

// Context returns the context the execution was started with.
func (c *Call) Context() context.Context { return c.ctx }

// Env returns the execution environment.
func (c *Call) Env() *Env { return c.env }

// TxHash returns the hash of the enclosing transaction.
func (c *Call) TxHash() common.Hash { return c.tx.hash }

// Time returns the block time the transaction executes at.
func (c *Call) Time() uint64 { return c.tx.time }

// Caller returns the sender of the frame that opened this one, or the zero
// address for a top-level frame.
func (c *Call) Caller() common.Address { return c.caller }

// Sub returns a nested frame with sender as msg.sender and no value attached.
// Code handed a frame can only spend what sender owns.
func (c *Call) Sub(sender common.Address) *Call {
	return &Call{
		ctx:    c.ctx,
		env:    c.env,
		tx:     c.tx,
		caller: c.Sender,
		Sender: sender,
		Value:  new(uint256.Int),
	}
}

// OnRevert registers undo to run if the transaction fails.
// Undo closures run in reverse registration order.
func (c *Call) OnRevert(undo func()) {
	c.tx.undo = append(c.tx.undo, undo)
}

// Emit records ev as emitted by address. Events of a failed transaction are dropped.
func (c *Call) Emit(address common.Address, ev Event) {
	c.tx.events = append(c.tx.events, pendingEvent{address: address, event: ev})
}

func (tx *txState) revert() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}
