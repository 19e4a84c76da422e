// Package router implements the settlement engine: it validates a payment
// descriptor, acquires the payer's funds, optionally swaps them into the
// invoice token, and delivers the amount plus protocol fee atomically.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/payroute/libpayroute-go/access"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/invoice"
	"github.com/payroute/libpayroute-go/metrics"
	"github.com/payroute/libpayroute-go/store"
	"github.com/payroute/libpayroute-go/swap"
	"github.com/payroute/libpayroute-go/token"
	"github.com/rs/zerolog"
)

var bucketSettled = []byte("settled")

// Buckets lists the store buckets the router writes to.
func Buckets() [][]byte {
	return [][]byte{bucketSettled}
}

// InvoiceBook is the part of the invoice registry the router consults.
type InvoiceBook interface {
	GetInvoice(id common.Hash) (*invoice.Record, error)
	MarkSettledIn(call *chain.Call, id, settlementRef common.Hash) error
}

var _ InvoiceBook = (*invoice.Registry)(nil)

// Router is the settlement engine.
type Router struct {
	address common.Address
	env     *chain.Env
	ledger  *token.Ledger
	kv      store.KV
	access  *access.Controller

	wrapped  *token.WrappedNative
	registry InvoiceBook
	log      zerolog.Logger
	metrics  metrics.Recorder

	mu      sync.RWMutex
	adapter swap.Adapter
	fee     FeeConfig

	entered atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// WithRegistry links the router to an invoice registry. The router must be an
// authorized caller of it.
func WithRegistry(book InvoiceBook) Option {
	return func(r *Router) { r.registry = book }
}

// WithWrappedNative enables native settlement through w.
func WithWrappedNative(w *token.WrappedNative) Option {
	return func(r *Router) { r.wrapped = w }
}

// WithSwapAdapter sets the initial swap adapter.
func WithSwapAdapter(a swap.Adapter) Option {
	return func(r *Router) { r.adapter = a }
}

// WithFeeConfig sets the initial fee.
func WithFeeConfig(f FeeConfig) Option {
	return func(r *Router) { r.fee = f }
}

// WithLogger sets the router logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.log = l.With().Str("component", "router").Logger()
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates a router deployed at address and controlled by owner.
func New(env *chain.Env, ledger *token.Ledger, kv store.KV, address, owner common.Address, opts ...Option) (*Router, error) {
	if env == nil || ledger == nil || kv == nil {
		return nil, errors.New("router: env, ledger and store are required")
	}
	ctrl, err := access.NewController(address, owner)
	if err != nil {
		return nil, err
	}
	r := &Router{
		address: address,
		env:     env,
		ledger:  ledger,
		kv:      kv,
		access:  ctrl,
		log:     zerolog.Nop(),
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fee.Bps > MaxFeeBps {
		return nil, fmt.Errorf("%w: %d bps", ErrFeeTooHigh, r.fee.Bps)
	}
	return r, nil
}

// Address returns the router's account address.
func (r *Router) Address() common.Address { return r.address }

// Owner returns the account allowed to reconfigure the router.
func (r *Router) Owner() common.Address { return r.access.Owner() }

// FeeConfig returns the current fee.
func (r *Router) FeeConfig() FeeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fee
}

// SwapAdapter returns the current swap adapter, or nil.
func (r *Router) SwapAdapter() swap.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapter
}

// IsSettled reports whether d has already been settled.
func (r *Router) IsSettled(d Descriptor) (bool, error) {
	key := d.Key()
	_, err := r.kv.Get(bucketSettled, key.Bytes())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetFeeConfig replaces the fee. Owner only.
func (r *Router) SetFeeConfig(ctx context.Context, caller common.Address, f FeeConfig) error {
	return r.execute(ctx, chain.Msg{From: caller, To: r.address}, func(call *chain.Call) error {
		if err := r.access.RequireOwner(call.Sender); err != nil {
			return err
		}
		if f.Bps > MaxFeeBps {
			return fmt.Errorf("%w: %d bps", ErrFeeTooHigh, f.Bps)
		}

		r.mu.Lock()
		prev := r.fee
		r.fee = f
		r.mu.Unlock()
		call.OnRevert(func() {
			r.mu.Lock()
			r.fee = prev
			r.mu.Unlock()
		})

		call.Emit(r.address, FeeConfigUpdated{Recipient: f.Recipient, Bps: f.Bps})
		r.log.Info().Str("recipient", f.Recipient.Hex()).Uint16("bps", f.Bps).Msg("fee config updated")
		return nil
	})
}

// SetSwapAdapter replaces the swap adapter. A nil adapter disables swaps. Owner only.
func (r *Router) SetSwapAdapter(ctx context.Context, caller common.Address, a swap.Adapter) error {
	return r.execute(ctx, chain.Msg{From: caller, To: r.address}, func(call *chain.Call) error {
		if err := r.access.RequireOwner(call.Sender); err != nil {
			return err
		}

		r.mu.Lock()
		prev := r.adapter
		r.adapter = a
		r.mu.Unlock()
		call.OnRevert(func() {
			r.mu.Lock()
			r.adapter = prev
			r.mu.Unlock()
		})

		call.Emit(r.address, RouterAddressUpdated{Previous: adapterAddress(prev), Current: adapterAddress(a)})
		r.log.Info().Str("adapter", adapterAddress(a).Hex()).Msg("swap adapter updated")
		return nil
	})
}

// TransferOwnership hands the owner role to newOwner. Owner only.
func (r *Router) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return r.execute(ctx, chain.Msg{From: caller, To: r.address}, func(call *chain.Call) error {
		return r.access.TransferOwnership(call, newOwner)
	})
}

func (r *Router) execute(ctx context.Context, msg chain.Msg, fn func(*chain.Call) error) error {
	_, err := r.env.Execute(ctx, msg, fn)
	return err
}

func adapterAddress(a swap.Adapter) common.Address {
	if a == nil {
		return common.Address{}
	}
	return a.Address()
}
