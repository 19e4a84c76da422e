package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/payroute/libpayroute-go/access"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/store"
	"github.com/rs/zerolog"
)

var (
	bucketInvoices = []byte("invoices")
	bucketNonces   = []byte("nonces")
)

// Buckets lists the store buckets the registry writes to.
func Buckets() [][]byte {
	return [][]byte{bucketInvoices, bucketNonces}
}

// Registry owns invoice records. Merchants create and cancel their own
// invoices; only allowlisted callers (the settlement engine) mark them settled.
type Registry struct {
	address  common.Address
	env      *chain.Env
	kv       store.KV
	access   *access.Controller
	log      zerolog.Logger
	validate *validator.Validate
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = l.With().Str("component", "invoice-registry").Logger()
	}
}

// NewRegistry creates a registry deployed at address and controlled by owner.
func NewRegistry(env *chain.Env, kv store.KV, address, owner common.Address, opts ...Option) (*Registry, error) {
	if env == nil || kv == nil {
		return nil, fmt.Errorf("%w: env and store are required", ErrInvalidParams)
	}
	ctrl, err := access.NewController(address, owner)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		address:  address,
		env:      env,
		kv:       kv,
		access:   ctrl,
		log:      zerolog.Nop(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Address returns the registry's account address.
func (r *Registry) Address() common.Address { return r.address }

// Owner returns the account allowed to manage the settler allowlist.
func (r *Registry) Owner() common.Address { return r.access.Owner() }

// IsAuthorized reports whether account may mark invoices settled.
func (r *Registry) IsAuthorized(account common.Address) bool {
	return r.access.IsAuthorized(account)
}

func (r *Registry) execute(ctx context.Context, from common.Address, fn func(*chain.Call) error) error {
	_, err := r.env.Execute(ctx, chain.Msg{From: from, To: r.address}, fn)
	return err
}

// CreateInvoice registers a new invoice for merchant and returns its id.
func (r *Registry) CreateInvoice(ctx context.Context, merchant common.Address, p CreateParams) (common.Hash, error) {
	var id common.Hash
	err := r.execute(ctx, merchant, func(call *chain.Call) error {
		var err error
		id, err = r.CreateInvoiceIn(call, p)
		return err
	})
	if err != nil {
		return common.Hash{}, err
	}
	return id, nil
}

// CreateInvoiceIn registers a new invoice for call.Sender within call.
func (r *Registry) CreateInvoiceIn(call *chain.Call, p CreateParams) (common.Hash, error) {
	if p.AmountOut == nil || p.AmountOut.IsZero() {
		return common.Hash{}, ErrZeroAmount
	}
	if p.Receiver == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: zero receiver", ErrInvalidParams)
	}
	if p.TokenOut == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: zero token", ErrInvalidParams)
	}
	if err := r.validate.Struct(p); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	now := call.Time()
	if p.Deadline != 0 && p.Deadline < now {
		return common.Hash{}, fmt.Errorf("%w: deadline %d, now %d", ErrDeadlinePassed, p.Deadline, now)
	}

	merchant := call.Sender
	nonce, err := r.MerchantNonce(merchant)
	if err != nil {
		return common.Hash{}, err
	}
	id := DeriveID(merchant, nonce, p.Ref)

	if _, err := r.kv.Get(bucketInvoices, id.Bytes()); err == nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrIDCollision, id.Hex())
	} else if !errors.Is(err, store.ErrNotFound) {
		return common.Hash{}, err
	}

	rec := &Record{
		ID:        id,
		Merchant:  merchant,
		Receiver:  p.Receiver,
		TokenOut:  p.TokenOut,
		AmountOut: p.AmountOut.Clone(),
		Deadline:  p.Deadline,
		Ref:       p.Ref,
		Nonce:     nonce,
		Memo:      p.Memo,
		CreatedAt: now,
		Status:    StatusActive,
	}
	if err := r.put(call, rec); err != nil {
		return common.Hash{}, err
	}
	if err := store.PutIn(call, r.kv, bucketNonces, merchant.Bytes(), encodeNonce(nonce+1)); err != nil {
		return common.Hash{}, err
	}

	call.Emit(r.address, InvoiceCreated{
		ID:        id,
		Merchant:  merchant,
		Receiver:  rec.Receiver,
		TokenOut:  rec.TokenOut,
		AmountOut: rec.AmountOut.Clone(),
		Deadline:  rec.Deadline,
		Ref:       rec.Ref,
		Nonce:     nonce,
		Memo:      rec.Memo,
	})
	r.log.Debug().
		Str("id", id.Hex()).
		Str("merchant", merchant.Hex()).
		Uint64("nonce", nonce).
		Str("amount", rec.AmountOut.Dec()).
		Msg("invoice created")
	return id, nil
}

// CancelInvoice cancels an Active invoice. Only its merchant may cancel. An
// invoice past its deadline may still be cancelled since Expired is never stored.
func (r *Registry) CancelInvoice(ctx context.Context, caller common.Address, id common.Hash) error {
	return r.execute(ctx, caller, func(call *chain.Call) error {
		return r.CancelInvoiceIn(call, id)
	})
}

// CancelInvoiceIn cancels an invoice within call.
func (r *Registry) CancelInvoiceIn(call *chain.Call, id common.Hash) error {
	rec, err := r.GetInvoice(id)
	if err != nil {
		return err
	}
	if call.Sender != rec.Merchant {
		return ErrNotMerchant
	}
	if rec.Status != StatusActive {
		return fmt.Errorf("%w: cannot cancel %s invoice", ErrInvalidState, rec.Status)
	}

	rec.Status = StatusCancelled
	if err := r.put(call, rec); err != nil {
		return err
	}
	call.Emit(r.address, InvoiceCancelled{ID: id, Merchant: rec.Merchant})
	r.log.Debug().Str("id", id.Hex()).Msg("invoice cancelled")
	return nil
}

// MarkSettled records that the invoice was paid by the settlement identified
// by settlementRef. Only allowlisted callers may call.
func (r *Registry) MarkSettled(ctx context.Context, caller common.Address, id, settlementRef common.Hash) error {
	return r.execute(ctx, caller, func(call *chain.Call) error {
		return r.MarkSettledIn(call, id, settlementRef)
	})
}

// MarkSettledIn marks an invoice settled within call.
func (r *Registry) MarkSettledIn(call *chain.Call, id, settlementRef common.Hash) error {
	if err := r.access.RequireAuthorized(call.Sender); err != nil {
		return err
	}
	rec, err := r.GetInvoice(id)
	if err != nil {
		return err
	}
	switch st := EffectiveStatus(rec, call.Time()); st {
	case StatusActive:
	case StatusExpired:
		return fmt.Errorf("%w: deadline %d", ErrExpired, rec.Deadline)
	default:
		return fmt.Errorf("%w: cannot settle %s invoice", ErrInvalidState, st)
	}

	rec.Status = StatusSettled
	rec.SettlementTx = settlementRef
	if err := r.put(call, rec); err != nil {
		return err
	}
	call.Emit(r.address, InvoiceSettled{ID: id, SettlementTx: settlementRef})
	r.log.Debug().
		Str("id", id.Hex()).
		Str("settlement", settlementRef.Hex()).
		Msg("invoice settled")
	return nil
}

// SetAuthorizedCaller adds or removes account from the settler allowlist. Owner only.
func (r *Registry) SetAuthorizedCaller(ctx context.Context, caller, account common.Address, authorized bool) error {
	return r.execute(ctx, caller, func(call *chain.Call) error {
		return r.access.SetAuthorized(call, account, authorized)
	})
}

// TransferOwnership hands the registry owner role to newOwner. Owner only.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return r.execute(ctx, caller, func(call *chain.Call) error {
		return r.access.TransferOwnership(call, newOwner)
	})
}

// GetInvoice returns the stored record for id.
func (r *Registry) GetInvoice(id common.Hash) (*Record, error) {
	data, err := r.kv.Get(bucketInvoices, id.Bytes())
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// GetStatus returns the effective status of id at the current time.
// Unknown ids report StatusNone.
func (r *Registry) GetStatus(id common.Hash) (Status, error) {
	rec, err := r.GetInvoice(id)
	if errors.Is(err, ErrNotFound) {
		return StatusNone, nil
	}
	if err != nil {
		return StatusNone, err
	}
	return EffectiveStatus(rec, r.env.Now()), nil
}

// MerchantNonce returns the number of invoices merchant has created, which is
// also the nonce of its next invoice.
func (r *Registry) MerchantNonce(merchant common.Address) (uint64, error) {
	data, err := r.kv.Get(bucketNonces, merchant.Bytes())
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeNonce(data)
}

// ListByMerchant returns merchant's invoices ordered by nonce.
func (r *Registry) ListByMerchant(merchant common.Address) ([]*Record, error) {
	n, err := r.MerchantNonce(merchant)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, n)
	err = r.kv.ForEach(bucketInvoices, func(_, v []byte) error {
		rec, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if rec.Merchant == merchant {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out, nil
}

func (r *Registry) put(call *chain.Call, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return store.PutIn(call, r.kv, bucketInvoices, rec.ID.Bytes(), data)
}
