package invoice

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/access"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/profile"
	"github.com/payroute/libpayroute-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000ae601")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	merchantA    = common.HexToAddress("0x000000000000000000000000000000000000000a")
	merchantB    = common.HexToAddress("0x000000000000000000000000000000000000000b")
	settler      = common.HexToAddress("0x0000000000000000000000000000000000005e77")
	usdc         = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	refH1        = common.HexToHash("0x4831")
)

const t0 = uint64(1_700_000_000)

type fixture struct {
	ctx   context.Context
	clock *chain.ManualClock
	env   *chain.Env
	reg   *Registry
}

func newFixture(t *testing.T, kv store.KV) *fixture {
	t.Helper()
	clock := chain.NewManualClock(t0)
	env := chain.NewEnv(clock)
	if kv == nil {
		kv = store.NewMemKV()
	}
	reg, err := NewRegistry(env, kv, registryAddr, owner)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, reg.SetAuthorizedCaller(ctx, owner, settler, true))
	return &fixture{ctx: ctx, clock: clock, env: env, reg: reg}
}

func params(amount uint64, deadline uint64) CreateParams {
	return CreateParams{
		Receiver:  merchantA,
		TokenOut:  usdc,
		AmountOut: uint256.NewInt(amount),
		Deadline:  deadline,
		Ref:       refH1,
		Memo:      "order #1",
	}
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, DeriveID(merchantA, 0, refH1), id)

	rec, err := f.reg.GetInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, merchantA, rec.Merchant)
	assert.Equal(t, merchantA, rec.Receiver)
	assert.Equal(t, usdc, rec.TokenOut)
	assert.Equal(t, uint64(1000), rec.AmountOut.Uint64())
	assert.Equal(t, uint64(0), rec.Nonce)
	assert.Equal(t, "order #1", rec.Memo)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Equal(t, StatusActive, rec.Status)

	n, err := f.reg.MerchantNonce(merchantA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	logs := f.env.Logs(func(l chain.Log) bool { return l.Event.EventName() == "InvoiceCreated" })
	require.Len(t, logs, 1)
	ev := logs[0].Event.(InvoiceCreated)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, refH1, ev.Ref)
	assert.Equal(t, registryAddr, logs[0].Address)
}

func TestCreateInvoice_SameFieldsDistinctIDs(t *testing.T) {
	f := newFixture(t, nil)

	id1, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)
	id2, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)
	id3, err := f.reg.CreateInvoice(f.ctx, merchantB, params(1000, 0))
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)

	rec2, err := f.reg.GetInvoice(id2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec2.Nonce)

	nb, err := f.reg.MerchantNonce(merchantB)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nb)
}

func TestCreateInvoice_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CreateParams)
		wantErr error
	}{
		{"zero amount", func(p *CreateParams) { p.AmountOut = uint256.NewInt(0) }, ErrZeroAmount},
		{"nil amount", func(p *CreateParams) { p.AmountOut = nil }, ErrZeroAmount},
		{"past deadline", func(p *CreateParams) { p.Deadline = t0 - 1 }, ErrDeadlinePassed},
		{"zero receiver", func(p *CreateParams) { p.Receiver = common.Address{} }, ErrInvalidParams},
		{"zero token", func(p *CreateParams) { p.TokenOut = common.Address{} }, ErrInvalidParams},
		{"long memo", func(p *CreateParams) { p.Memo = strings.Repeat("x", 257) }, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			p := params(1000, 0)
			tt.modify(&p)
			_, err := f.reg.CreateInvoice(f.ctx, merchantA, p)
			assert.ErrorIs(t, err, tt.wantErr)

			n, err := f.reg.MerchantNonce(merchantA)
			require.NoError(t, err)
			assert.Zero(t, n, "failed creation must not consume a nonce")
		})
	}
}

func TestCreateInvoice_DeadlineNowAccepted(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1, t0))
	assert.NoError(t, err)
}

func TestCreateInvoice_Collision(t *testing.T) {
	f := newFixture(t, nil)
	// Pre-seed the slot the next invoice would occupy.
	data, err := encodeRecord(&Record{ID: DeriveID(merchantA, 0, refH1), AmountOut: uint256.NewInt(1), Status: StatusActive})
	require.NoError(t, err)
	require.NoError(t, f.reg.kv.Put(bucketInvoices, DeriveID(merchantA, 0, refH1).Bytes(), data))

	_, err = f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	assert.ErrorIs(t, err, ErrIDCollision)
}

func TestCancelInvoice(t *testing.T) {
	f := newFixture(t, nil)
	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)

	err = f.reg.CancelInvoice(f.ctx, merchantB, id)
	assert.ErrorIs(t, err, ErrNotMerchant)
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	require.NoError(t, f.reg.CancelInvoice(f.ctx, merchantA, id))
	st, err := f.reg.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)

	assert.ErrorIs(t, f.reg.CancelInvoice(f.ctx, merchantA, id), ErrInvalidState)
	assert.ErrorIs(t, f.reg.MarkSettled(f.ctx, settler, id, common.HexToHash("0x1")), ErrInvalidState)

	assert.ErrorIs(t, f.reg.CancelInvoice(f.ctx, merchantA, common.HexToHash("0xdead")), ErrNotFound)
}

func TestCancelInvoice_ExpiredStillCancellable(t *testing.T) {
	f := newFixture(t, nil)
	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, t0+60))
	require.NoError(t, err)

	f.clock.Advance(61)
	st, err := f.reg.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, st)

	rec, err := f.reg.GetInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status, "expiry is never written")

	require.NoError(t, f.reg.CancelInvoice(f.ctx, merchantA, id))
	st, err = f.reg.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)
}

func TestMarkSettled(t *testing.T) {
	f := newFixture(t, nil)
	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)
	ref := common.HexToHash("0xabc")

	err = f.reg.MarkSettled(f.ctx, merchantA, id, ref)
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	require.NoError(t, f.reg.MarkSettled(f.ctx, settler, id, ref))
	rec, err := f.reg.GetInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, rec.Status)
	assert.Equal(t, ref, rec.SettlementTx)

	assert.ErrorIs(t, f.reg.MarkSettled(f.ctx, settler, id, ref), ErrInvalidState)
	assert.ErrorIs(t, f.reg.CancelInvoice(f.ctx, merchantA, id), ErrInvalidState)
	assert.ErrorIs(t, f.reg.MarkSettled(f.ctx, settler, common.HexToHash("0xdead"), ref), ErrNotFound)
}

func TestMarkSettled_Expired(t *testing.T) {
	f := newFixture(t, nil)
	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, t0+10))
	require.NoError(t, err)

	f.clock.Advance(11)
	assert.ErrorIs(t, f.reg.MarkSettled(f.ctx, settler, id, common.HexToHash("0x1")), ErrExpired)
}

func TestSetAuthorizedCaller_OwnerOnly(t *testing.T) {
	f := newFixture(t, nil)
	err := f.reg.SetAuthorizedCaller(f.ctx, merchantA, merchantA, true)
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	assert.False(t, f.reg.IsAuthorized(merchantA))

	require.NoError(t, f.reg.SetAuthorizedCaller(f.ctx, owner, settler, false))
	assert.False(t, f.reg.IsAuthorized(settler))

	require.NoError(t, f.reg.TransferOwnership(f.ctx, owner, merchantB))
	assert.Equal(t, merchantB, f.reg.Owner())
}

func TestGetStatus_Unknown(t *testing.T) {
	f := newFixture(t, nil)
	st, err := f.reg.GetStatus(common.HexToHash("0x99"))
	require.NoError(t, err)
	assert.Equal(t, StatusNone, st)

	_, err = f.reg.GetInvoice(common.HexToHash("0x99"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEffectiveStatus(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		now  uint64
		want Status
	}{
		{"nil", nil, 0, StatusNone},
		{"active no deadline", &Record{Status: StatusActive}, 1 << 40, StatusActive},
		{"active at deadline", &Record{Status: StatusActive, Deadline: 100}, 100, StatusActive},
		{"active past deadline", &Record{Status: StatusActive, Deadline: 100}, 101, StatusExpired},
		{"settled past deadline", &Record{Status: StatusSettled, Deadline: 100}, 101, StatusSettled},
		{"cancelled past deadline", &Record{Status: StatusCancelled, Deadline: 100}, 101, StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.rec, tt.now))
			if tt.rec != nil {
				assert.NotEqual(t, StatusExpired, tt.rec.Status)
			}
		})
	}
	assert.True(t, StatusSettled.Terminal())
	assert.False(t, StatusExpired.Terminal())
	assert.Equal(t, "expired", StatusExpired.String())
}

func TestListByMerchant(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 3; i++ {
		_, err := f.reg.CreateInvoice(f.ctx, merchantA, params(uint64(100+i), 0))
		require.NoError(t, err)
	}
	_, err := f.reg.CreateInvoice(f.ctx, merchantB, params(5, 0))
	require.NoError(t, err)

	recs, err := f.reg.ListByMerchant(merchantA)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, uint64(i), rec.Nonce)
		assert.Equal(t, uint64(100+i), rec.AmountOut.Uint64())
	}
}

func TestRegistry_BoltPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	kv, err := store.OpenBolt(path, Buckets()...)
	require.NoError(t, err)

	f := newFixture(t, kv)
	id, err := f.reg.CreateInvoice(f.ctx, merchantA, params(1000, 0))
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv, err = store.OpenBolt(path, Buckets()...)
	require.NoError(t, err)
	defer kv.Close()
	reg, err := NewRegistry(chain.NewEnv(chain.NewManualClock(t0)), kv, registryAddr, owner)
	require.NoError(t, err)

	rec, err := reg.GetInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rec.AmountOut.Uint64())
	assert.Equal(t, "order #1", rec.Memo)
	n, err := reg.MerchantNonce(merchantA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestRegistry_RevertLeavesNoTrace(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.env.Execute(f.ctx, chain.Msg{From: merchantA}, func(call *chain.Call) error {
		if _, err := f.reg.CreateInvoiceIn(call, params(10, 0)); err != nil {
			return err
		}
		// A second creation with zero amount fails and takes the first one with it.
		_, err := f.reg.CreateInvoiceIn(call, params(0, 0))
		return err
	})
	require.ErrorIs(t, err, ErrZeroAmount)

	n, err := f.reg.MerchantNonce(merchantA)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = f.reg.GetInvoice(DeriveID(merchantA, 0, refH1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParamsFromProfile(t *testing.T) {
	p := &profile.Profile{Receiver: merchantB, TokenOut: usdc}
	cp, err := ParamsFromProfile(p, uint256.NewInt(7), 0, refH1, "m")
	require.NoError(t, err)
	assert.Equal(t, merchantB, cp.Receiver)
	assert.Equal(t, usdc, cp.TokenOut)

	_, err = ParamsFromProfile(nil, uint256.NewInt(7), 0, refH1, "")
	assert.ErrorIs(t, err, ErrInvalidParams)
}
