package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/invoice"
	"github.com/payroute/libpayroute-go/metrics"
	"github.com/payroute/libpayroute-go/store"
	"github.com/payroute/libpayroute-go/swap"
)

// Settlement modes, also used as the metrics mode label.
const (
	ModeDirect = "direct"
	ModeBridge = "bridge"
	ModeNative = "native"
	ModeBatch  = "batch"
)

type acquisition int

const (
	acquirePull acquisition = iota
	acquireResident
	acquireWrap
)

// attempt is one settlement request after the entry point has picked how
// funds are acquired.
type attempt struct {
	mode        string
	acquire     acquisition
	descriptors []Descriptor
	tokenIn     common.Address
	amountIn    *uint256.Int // exact pull amount, or minimum for resident funds
	route       *SwapInstructions
}

// Settle pulls amountIn of tokenIn from payer, which must have approved the
// router, and settles d.
func (r *Router) Settle(ctx context.Context, payer common.Address, d Descriptor, tokenIn common.Address, amountIn *uint256.Int, si *SwapInstructions) (*chain.Receipt, error) {
	return r.run(ctx, chain.Msg{From: payer, To: r.address}, attempt{
		mode:        ModeDirect,
		acquire:     acquirePull,
		descriptors: []Descriptor{d},
		tokenIn:     tokenIn,
		amountIn:    amountIn,
		route:       si,
	})
}

// SettleIn is Settle within an existing call, with call.Sender as payer.
func (r *Router) SettleIn(call *chain.Call, d Descriptor, tokenIn common.Address, amountIn *uint256.Int, si *SwapInstructions) error {
	return r.settle(call, attempt{
		mode:        ModeDirect,
		acquire:     acquirePull,
		descriptors: []Descriptor{d},
		tokenIn:     tokenIn,
		amountIn:    amountIn,
		route:       si,
	})
}

// SettleFromBridge settles d from the router's resident balance of tokenIn,
// delivered beforehand by a bridge. The whole resident balance is consumed;
// anything left after settlement goes to caller.
func (r *Router) SettleFromBridge(ctx context.Context, caller common.Address, d Descriptor, tokenIn common.Address, minAmountIn *uint256.Int, si *SwapInstructions) (*chain.Receipt, error) {
	return r.run(ctx, chain.Msg{From: caller, To: r.address}, attempt{
		mode:        ModeBridge,
		acquire:     acquireResident,
		descriptors: []Descriptor{d},
		tokenIn:     tokenIn,
		amountIn:    minAmountIn,
		route:       si,
	})
}

// SettleNative wraps value of payer's native currency and settles d with the
// wrapped token as input.
func (r *Router) SettleNative(ctx context.Context, payer common.Address, value *uint256.Int, d Descriptor, si *SwapInstructions) (*chain.Receipt, error) {
	if r.wrapped == nil {
		return nil, ErrNativeUnsupported
	}
	return r.run(ctx, chain.Msg{From: payer, To: r.address, Value: value}, attempt{
		mode:        ModeNative,
		acquire:     acquireWrap,
		descriptors: []Descriptor{d},
		tokenIn:     r.wrapped.Address,
		route:       si,
	})
}

// SettleBatch pulls amountIn of tokenIn once and settles every descriptor
// from it. All descriptors must share one output token. Either all settle or
// none does.
func (r *Router) SettleBatch(ctx context.Context, payer common.Address, ds []Descriptor, tokenIn common.Address, amountIn *uint256.Int, si *SwapInstructions) (*chain.Receipt, error) {
	return r.run(ctx, chain.Msg{From: payer, To: r.address}, attempt{
		mode:        ModeBatch,
		acquire:     acquirePull,
		descriptors: ds,
		tokenIn:     tokenIn,
		amountIn:    amountIn,
		route:       si,
	})
}

func (r *Router) run(ctx context.Context, msg chain.Msg, a attempt) (*chain.Receipt, error) {
	start := time.Now()
	rcpt, err := r.env.Execute(ctx, msg, func(call *chain.Call) error {
		return r.settle(call, a)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		r.log.Warn().Err(err).
			Str("mode", a.mode).
			Str("payer", msg.From.Hex()).
			Int("descriptors", len(a.descriptors)).
			Msg("settlement failed")
	} else {
		r.log.Debug().
			Str("mode", a.mode).
			Str("tx", rcpt.TxHash.Hex()).
			Int("descriptors", len(a.descriptors)).
			Msg("settlement executed")
	}
	labels := map[string]string{metrics.LabelMode: a.mode, metrics.LabelOutcome: outcome}
	r.metrics.IncCounter("settlement", labels)
	r.metrics.ObserveLatency("settle", time.Since(start), labels)
	return rcpt, err
}

// settle is the single settlement routine behind every entry point.
func (r *Router) settle(call *chain.Call, a attempt) error {
	if call == nil {
		return chain.ErrNilCall
	}
	if !r.entered.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer r.entered.Store(false)

	fee := r.FeeConfig()
	adapter := r.SwapAdapter()

	// Checks.
	p, err := r.validate(call, a, fee, adapter)
	if err != nil {
		return err
	}

	// Effects.
	for _, key := range p.keys {
		if err := store.PutIn(call, r.kv, bucketSettled, key.Bytes(), call.TxHash().Bytes()); err != nil {
			return err
		}
	}

	// Interactions.
	self := call.Sub(r.address)
	acquired, err := r.acquireFunds(call, self, a)
	if err != nil {
		return err
	}
	inBase, err := sub(r.ledger.BalanceOf(a.tokenIn, r.address), acquired)
	if err != nil {
		return err
	}

	refundIn, refundOut := new(uint256.Int), new(uint256.Int)
	if a.tokenIn == p.tokenOut {
		if acquired.Lt(p.required) {
			return fmt.Errorf("%w: acquired %s, need %s", ErrInsufficientFunds, acquired, p.required)
		}
		refundIn.Sub(acquired, p.required)
	} else {
		refundIn, refundOut, err = r.convert(self, adapter, a, p, acquired, inBase)
		if err != nil {
			return err
		}
	}

	for i, d := range a.descriptors {
		if err := r.ledger.Transfer(self, d.TokenOut, d.Receiver, d.AmountOut); err != nil {
			return err
		}
		if !p.fees[i].IsZero() {
			if err := r.ledger.Transfer(self, d.TokenOut, fee.Recipient, p.fees[i]); err != nil {
				return err
			}
		}
		call.Emit(r.address, PaymentExecuted{
			InvoiceID: d.InvoiceID,
			Ref:       d.Ref,
			Payer:     call.Sender,
			Receiver:  d.Receiver,
			TokenIn:   a.tokenIn,
			AmountIn:  acquired.Clone(),
			TokenOut:  d.TokenOut,
			AmountOut: d.AmountOut.Clone(),
			Fee:       p.fees[i].Clone(),
		})
	}

	if err := r.refund(call, self, a, a.tokenIn, refundIn); err != nil {
		return err
	}
	if err := r.refund(call, self, a, p.tokenOut, refundOut); err != nil {
		return err
	}

	if r.registry != nil {
		for _, d := range a.descriptors {
			if err := r.registry.MarkSettledIn(self, d.InvoiceID, call.TxHash()); err != nil {
				return err
			}
		}
	}

	switch a.mode {
	case ModeBatch:
		call.Emit(r.address, BatchSettled{Count: uint64(len(a.descriptors)), Timestamp: call.Time()})
	case ModeBridge:
		call.Emit(r.address, BridgeSettlementExecuted{
			Caller:      call.Sender,
			Ref:         a.descriptors[0].Ref,
			TokenIn:     a.tokenIn,
			AmountIn:    acquired.Clone(),
			MinAmountIn: amountOrZero(a.amountIn),
		})
	}
	return nil
}

// plan is the outcome of validation: what must be delivered and which replay
// keys to commit.
type plan struct {
	tokenOut common.Address
	required *uint256.Int // sum of amountOut + fee
	fees     []*uint256.Int
	keys     []common.Hash
}

func (r *Router) validate(call *chain.Call, a attempt, fee FeeConfig, adapter swap.Adapter) (*plan, error) {
	if len(a.descriptors) == 0 {
		return nil, fmt.Errorf("%w: no descriptors", ErrInvalidBatch)
	}
	if a.tokenIn == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero input token", ErrInvalidRoute)
	}

	p := &plan{
		tokenOut: a.descriptors[0].TokenOut,
		required: new(uint256.Int),
		fees:     make([]*uint256.Int, len(a.descriptors)),
		keys:     make([]common.Hash, len(a.descriptors)),
	}
	seen := make(map[common.Hash]struct{}, len(a.descriptors))
	now := call.Time()

	for i, d := range a.descriptors {
		if d.TokenOut != p.tokenOut {
			return nil, fmt.Errorf("%w: descriptor %d pays %s, batch pays %s", ErrInvalidBatch, i, d.TokenOut.Hex(), p.tokenOut.Hex())
		}
		if err := r.checkDescriptor(d, now); err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}

		key := d.Key()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: descriptor %d repeats an earlier one", ErrReplayRejected, i)
		}
		seen[key] = struct{}{}
		settled, err := r.IsSettled(d)
		if err != nil {
			return nil, err
		}
		if settled {
			return nil, fmt.Errorf("%w: %s", ErrReplayRejected, key.Hex())
		}
		p.keys[i] = key

		if err := r.checkInvoice(d, now); err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}

		f, err := fee.Fee(d.AmountOut)
		if err != nil {
			return nil, err
		}
		p.fees[i] = f
		if p.required, err = add(p.required, d.AmountOut, f); err != nil {
			return nil, err
		}
	}

	if a.tokenIn == p.tokenOut {
		if !a.route.empty() {
			return nil, fmt.Errorf("%w: swap instructions given for same-token settlement", ErrInvalidRoute)
		}
		return p, nil
	}
	if a.route.empty() {
		return nil, fmt.Errorf("%w: %s -> %s requires swap instructions", ErrInvalidRoute, a.tokenIn.Hex(), p.tokenOut.Hex())
	}
	if adapter == nil {
		return nil, fmt.Errorf("%w: no swap adapter configured", ErrInvalidRoute)
	}
	if err := swap.ValidateCommands(a.route.Commands, a.route.Inputs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	return p, nil
}

func (r *Router) checkDescriptor(d Descriptor, now uint64) error {
	if d.AmountOut == nil || d.AmountOut.IsZero() {
		return ErrZeroAmount
	}
	if d.Receiver == (common.Address{}) || d.TokenOut == (common.Address{}) {
		return fmt.Errorf("%w: zero receiver or token", ErrInvalidDescriptor)
	}
	// The replay key carries no amount or merchant, so a registry-backed router
	// only settles tuples tied to a registered invoice.
	if r.registry != nil && d.InvoiceID == (common.Hash{}) {
		return fmt.Errorf("%w: invoice id required", ErrInvalidDescriptor)
	}
	if d.Deadline != 0 && d.Deadline < now {
		return fmt.Errorf("%w: deadline %d, now %d", ErrExpired, d.Deadline, now)
	}
	return nil
}

// checkInvoice validates d against the registry record it names.
func (r *Router) checkInvoice(d Descriptor, now uint64) error {
	if r.registry == nil {
		return nil
	}
	rec, err := r.registry.GetInvoice(d.InvoiceID)
	if err != nil {
		return err
	}
	if rec.Receiver != d.Receiver ||
		rec.TokenOut != d.TokenOut ||
		!rec.AmountOut.Eq(d.AmountOut) ||
		rec.Deadline != d.Deadline ||
		rec.Ref != d.Ref ||
		rec.Nonce != d.Nonce {
		return fmt.Errorf("%w: %s", ErrDescriptorMismatch, d.InvoiceID.Hex())
	}
	switch st := invoice.EffectiveStatus(rec, now); st {
	case invoice.StatusActive:
		return nil
	case invoice.StatusExpired:
		return fmt.Errorf("%w: %w", ErrExpired, invoice.ErrExpired)
	default:
		return fmt.Errorf("%w: invoice is %s: %w", ErrInvalidState, st, invoice.ErrInvalidState)
	}
}

func (r *Router) acquireFunds(call, self *chain.Call, a attempt) (*uint256.Int, error) {
	switch a.acquire {
	case acquirePull:
		if a.amountIn == nil || a.amountIn.IsZero() {
			return nil, ErrZeroAmount
		}
		if err := r.ledger.TransferFrom(self, a.tokenIn, call.Sender, r.address, a.amountIn); err != nil {
			return nil, err
		}
		return a.amountIn.Clone(), nil

	case acquireResident:
		bal := r.ledger.BalanceOf(a.tokenIn, r.address)
		if bal.IsZero() {
			return nil, fmt.Errorf("%w: no resident balance", ErrZeroAmount)
		}
		if a.amountIn != nil && bal.Lt(a.amountIn) {
			return nil, fmt.Errorf("%w: resident %s, minimum %s", ErrInsufficientFunds, bal, a.amountIn)
		}
		return bal, nil

	case acquireWrap:
		if call.Value == nil || call.Value.IsZero() {
			return nil, ErrZeroAmount
		}
		if err := r.wrapped.Deposit(self, call.Value); err != nil {
			return nil, err
		}
		return call.Value.Clone(), nil
	}
	return nil, fmt.Errorf("router: unknown acquisition %d", a.acquire)
}

// convert converts acquired input into the output token through adapter and
// returns what is left over on each side.
func (r *Router) convert(self *chain.Call, adapter swap.Adapter, a attempt, p *plan, acquired, inBase *uint256.Int) (refundIn, refundOut *uint256.Int, err error) {
	outBefore := r.ledger.BalanceOf(p.tokenOut, r.address)

	if err := r.ledger.Approve(self, a.tokenIn, adapter.Address(), acquired); err != nil {
		return nil, nil, err
	}
	if err := adapter.Execute(self.Sub(adapter.Address()), a.route.Commands, a.route.Inputs, a.route.Deadline); err != nil {
		return nil, nil, err
	}
	if err := r.ledger.Approve(self, a.tokenIn, adapter.Address(), new(uint256.Int)); err != nil {
		return nil, nil, err
	}

	outAfter := r.ledger.BalanceOf(p.tokenOut, r.address)
	if outAfter.Lt(outBefore) {
		return nil, nil, fmt.Errorf("%w: output balance fell", ErrInsufficientOutput)
	}
	output := new(uint256.Int).Sub(outAfter, outBefore)
	if output.Lt(p.required) {
		return nil, nil, fmt.Errorf("%w: got %s, need %s", ErrInsufficientOutput, output, p.required)
	}

	refundIn, err = sub(r.ledger.BalanceOf(a.tokenIn, r.address), inBase)
	if err != nil {
		return nil, nil, err
	}
	return refundIn, new(uint256.Int).Sub(output, p.required), nil
}

// refund returns amount of tok to the payer. Wrapped native input is unwrapped first.
func (r *Router) refund(call, self *chain.Call, a attempt, tok common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if a.acquire == acquireWrap && tok == r.wrapped.Address {
		if err := r.wrapped.Withdraw(self, amount); err != nil {
			return err
		}
		return r.env.TransferNative(self, r.address, call.Sender, amount)
	}
	return r.ledger.Transfer(self, tok, call.Sender, amount)
}

func add(sum *uint256.Int, xs ...*uint256.Int) (*uint256.Int, error) {
	out := sum.Clone()
	for _, x := range xs {
		if _, overflow := out.AddOverflow(out, x); overflow {
			return nil, ErrOverflow
		}
	}
	return out, nil
}

func sub(x, y *uint256.Int) (*uint256.Int, error) {
	if x.Lt(y) {
		return nil, errors.New("router: balance accounting underflow")
	}
	return new(uint256.Int).Sub(x, y), nil
}

func amountOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}
