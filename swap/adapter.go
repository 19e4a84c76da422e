// Package swap defines the boundary to an external token swap router and an
// in-process fixed-rate implementation of it.
package swap

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/token"
)

// Adapter executes a list of routing commands on behalf of call.Caller().
// call is the adapter's own frame (call.Sender is Address()), so the adapter
// can only spend what it holds or what the caller approved to it. Execution is atomic: either the output reaches each command's recipient or
// an error is returned and the enclosing transaction reverts.
type Adapter interface {
	Address() common.Address
	Execute(call *chain.Call, commands []byte, inputs [][]byte, deadline uint64) error
}

type pair struct {
	in, out common.Address
}

// Rate prices one unit of the input token at Num/Den units of the output token.
type Rate struct {
	Num uint64
	Den uint64
}

// RateAdapter swaps at fixed per-pair rates. It pays out of its own token
// balances and pulls input from the caller through the caller's allowance.
type RateAdapter struct {
	address common.Address
	ledger  *token.Ledger

	mu    sync.RWMutex
	rates map[pair]Rate
}

var _ Adapter = (*RateAdapter)(nil)

// NewRateAdapter creates an adapter holding balances at address on ledger.
func NewRateAdapter(ledger *token.Ledger, address common.Address) *RateAdapter {
	return &RateAdapter{
		address: address,
		ledger:  ledger,
		rates:   make(map[pair]Rate),
	}
}

// Address returns the adapter's account address.
func (a *RateAdapter) Address() common.Address { return a.address }

// SetRate sets the tokenIn to tokenOut rate.
func (a *RateAdapter) SetRate(tokenIn, tokenOut common.Address, r Rate) error {
	if r.Num == 0 || r.Den == 0 {
		return fmt.Errorf("%w: rate %d/%d", ErrNoRate, r.Num, r.Den)
	}
	a.mu.Lock()
	a.rates[pair{tokenIn, tokenOut}] = r
	a.mu.Unlock()
	return nil
}

// QuoteExactIn returns the output for amountIn of tokenIn, rounded down.
func (a *RateAdapter) QuoteExactIn(tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	r, err := a.rate(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amountIn, uint256.NewInt(r.Num), uint256.NewInt(r.Den))
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// QuoteExactOut returns the input needed for amountOut of tokenOut, rounded up.
func (a *RateAdapter) QuoteExactOut(tokenIn, tokenOut common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	r, err := a.rate(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	num, den := uint256.NewInt(r.Num), uint256.NewInt(r.Den)
	// ceil(amountOut * den / num)
	prod, overflow := new(uint256.Int).MulOverflow(amountOut, den)
	if overflow {
		return nil, ErrOverflow
	}
	in, rem := new(uint256.Int).DivMod(prod, num, new(uint256.Int))
	if !rem.IsZero() {
		in.AddUint64(in, 1)
	}
	return in, nil
}

// Execute runs commands in order. Every command pulls its input from
// call.Caller() and pays the output to its recipient.
func (a *RateAdapter) Execute(call *chain.Call, commands []byte, inputs [][]byte, deadline uint64) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if call.Sender != a.address {
		return fmt.Errorf("%w: frame of %s", ErrWrongFrame, call.Sender.Hex())
	}
	if deadline != 0 && call.Time() > deadline {
		return fmt.Errorf("%w: deadline %d, now %d", ErrDeadlinePassed, deadline, call.Time())
	}
	if err := ValidateCommands(commands, inputs); err != nil {
		return err
	}

	payer := call.Caller()
	for i, cmd := range commands {
		var err error
		switch cmd {
		case CommandExactIn:
			err = a.exactIn(call, payer, inputs[i])
		case CommandExactOut:
			err = a.exactOut(call, payer, inputs[i])
		}
		if err != nil {
			return fmt.Errorf("swap: command %d: %w", i, err)
		}
	}
	return nil
}

func (a *RateAdapter) exactIn(self *chain.Call, payer common.Address, input []byte) error {
	p, err := DecodeExactIn(input)
	if err != nil {
		return err
	}
	out, err := a.QuoteExactIn(p.TokenIn, p.TokenOut, p.AmountIn)
	if err != nil {
		return err
	}
	if out.Lt(p.AmountOutMin) {
		return fmt.Errorf("%w: out %s, min %s", ErrSlippage, out, p.AmountOutMin)
	}
	return a.trade(self, payer, p.Recipient, p.TokenIn, p.TokenOut, p.AmountIn, out)
}

func (a *RateAdapter) exactOut(self *chain.Call, payer common.Address, input []byte) error {
	p, err := DecodeExactOut(input)
	if err != nil {
		return err
	}
	in, err := a.QuoteExactOut(p.TokenIn, p.TokenOut, p.AmountOut)
	if err != nil {
		return err
	}
	if in.Gt(p.AmountInMax) {
		return fmt.Errorf("%w: in %s, max %s", ErrSlippage, in, p.AmountInMax)
	}
	return a.trade(self, payer, p.Recipient, p.TokenIn, p.TokenOut, in, p.AmountOut)
}

func (a *RateAdapter) trade(self *chain.Call, payer, recipient, tokenIn, tokenOut common.Address, in, out *uint256.Int) error {
	if err := a.ledger.TransferFrom(self, tokenIn, payer, a.address, in); err != nil {
		return err
	}
	return a.ledger.Transfer(self, tokenOut, recipient, out)
}

func (a *RateAdapter) rate(tokenIn, tokenOut common.Address) (Rate, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.rates[pair{tokenIn, tokenOut}]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, tokenIn.Hex(), tokenOut.Hex())
	}
	return r, nil
}
