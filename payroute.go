// Package payroute assembles an invoicing and settlement node: the invoice
// registry, the settlement router, token accounting, persistence and the
// payment-profile resolver, wired from one configuration.
package payroute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/config"
	"github.com/payroute/libpayroute-go/invoice"
	"github.com/payroute/libpayroute-go/metrics"
	"github.com/payroute/libpayroute-go/profile"
	"github.com/payroute/libpayroute-go/router"
	"github.com/payroute/libpayroute-go/store"
	"github.com/payroute/libpayroute-go/swap"
	"github.com/payroute/libpayroute-go/token"
	"github.com/rs/zerolog"
)

// DatabaseFile is the bbolt file created under the data directory.
const DatabaseFile = "payroute.db"

// Node is a running invoicing and settlement stack.
type Node struct {
	cfg      config.Config
	log      zerolog.Logger
	env      *chain.Env
	ledger   *token.Ledger
	wrapped  *token.WrappedNative
	adapter  swap.Adapter
	kv       store.KV
	closer   func() error
	registry *invoice.Registry
	router   *router.Router
	profiles profile.Resolver
}

// New validates cfg and builds a node from it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Node, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	o := &options{metrics: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(o)
	}

	n := &Node{cfg: cfg}
	if o.logger != nil {
		n.log = *o.logger
	} else {
		l, err := NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		if err != nil {
			return nil, err
		}
		n.log = l
	}
	n.log = n.log.With().Str("network", cfg.Network).Logger()

	n.env = chain.NewEnv(o.clock)
	n.env.Subscribe(n.logEvent)
	n.ledger = token.NewLedger()

	if addr := cfg.WrappedNativeAddress(); addr != (common.Address{}) {
		n.wrapped = token.NewWrappedNative(n.ledger, addr, token.Metadata{Symbol: "WETH", Decimals: 18})
	}

	switch {
	case o.adapter != nil:
		n.adapter = o.adapter
	case cfg.SwapAdapter != "":
		n.adapter = swap.NewRateAdapter(n.ledger, cfg.SwapAdapterAddress())
	}

	if o.kv != nil {
		n.kv = o.kv
		n.closer = func() error { return nil }
	} else {
		buckets := append(invoice.Buckets(), router.Buckets()...)
		db, err := store.OpenBolt(filepath.Join(cfg.DataDir, DatabaseFile), buckets...)
		if err != nil {
			return nil, err
		}
		n.kv = db
		n.closer = db.Close
	}

	var err error
	n.registry, err = invoice.NewRegistry(n.env, n.kv, cfg.Registry(), cfg.OwnerAddress(),
		invoice.WithLogger(n.log))
	if err != nil {
		return nil, errors.Join(err, n.Close())
	}

	ropts := []router.Option{
		router.WithRegistry(n.registry),
		router.WithFeeConfig(router.FeeConfig{Recipient: cfg.FeeRecipientAddress(), Bps: cfg.FeeBps}),
		router.WithLogger(n.log),
		router.WithMetrics(o.metrics),
	}
	if n.wrapped != nil {
		ropts = append(ropts, router.WithWrappedNative(n.wrapped))
	}
	if n.adapter != nil {
		ropts = append(ropts, router.WithSwapAdapter(n.adapter))
	}
	n.router, err = router.New(n.env, n.ledger, n.kv, cfg.Router(), cfg.OwnerAddress(), ropts...)
	if err != nil {
		return nil, errors.Join(err, n.Close())
	}

	// The settler allowlist lives in memory, so the router is authorized on every start.
	if err := n.registry.SetAuthorizedCaller(ctx, cfg.OwnerAddress(), cfg.Router(), true); err != nil {
		return nil, errors.Join(fmt.Errorf("payroute: authorize router: %w", err), n.Close())
	}

	n.profiles = o.resolver
	if n.profiles == nil {
		var dns profile.DNSResolver
		if cfg.DNSUpstream != "" {
			dns = profile.NewDNSSECResolver(cfg.DNSUpstream)
		}
		n.profiles = profile.NewTXTResolver(dns)
	}

	n.log.Info().
		Str("registry", cfg.Registry().Hex()).
		Str("router", cfg.Router().Hex()).
		Uint16("fee_bps", cfg.FeeBps).
		Bool("native", n.wrapped != nil).
		Bool("swap", n.adapter != nil).
		Msg("node started")
	return n, nil
}

// Close releases the database.
func (n *Node) Close() error {
	if n.closer == nil {
		return nil
	}
	err := n.closer()
	n.closer = nil
	return err
}

// Config returns the configuration the node was built from.
func (n *Node) Config() config.Config { return n.cfg }

// Env returns the execution environment.
func (n *Node) Env() *chain.Env { return n.env }

// Ledger returns the token ledger.
func (n *Node) Ledger() *token.Ledger { return n.ledger }

// WrappedNative returns the wrapped-native token, or nil when disabled.
func (n *Node) WrappedNative() *token.WrappedNative { return n.wrapped }

// SwapAdapter returns the swap adapter, or nil when swaps are disabled.
func (n *Node) SwapAdapter() swap.Adapter { return n.adapter }

// Registry returns the invoice registry.
func (n *Node) Registry() *invoice.Registry { return n.registry }

// Router returns the settlement router.
func (n *Node) Router() *router.Router { return n.router }

// Logger returns the node logger.
func (n *Node) Logger() zerolog.Logger { return n.log }

// CreateInvoiceFor resolves the payment profile published for name and
// creates an invoice paying its receiver in its token.
func (n *Node) CreateInvoiceFor(ctx context.Context, merchant common.Address, name string, amount *uint256.Int, deadline uint64, ref common.Hash, memo string) (common.Hash, error) {
	p, err := n.profiles.Resolve(ctx, name)
	if err != nil {
		return common.Hash{}, err
	}
	params, err := invoice.ParamsFromProfile(p, amount, deadline, ref, memo)
	if err != nil {
		return common.Hash{}, err
	}
	id, err := n.registry.CreateInvoice(ctx, merchant, params)
	if err != nil {
		return common.Hash{}, err
	}
	n.log.Debug().Str("name", p.Name).Str("id", id.Hex()).Msg("invoice created from profile")
	return id, nil
}

// Descriptor returns the settlement descriptor for a stored invoice.
func (n *Node) Descriptor(id common.Hash) (router.Descriptor, error) {
	rec, err := n.registry.GetInvoice(id)
	if err != nil {
		return router.Descriptor{}, err
	}
	return router.DescriptorFromRecord(rec), nil
}

// FormatAmount renders amount of tok using its registered decimals.
func (n *Node) FormatAmount(tok common.Address, amount *uint256.Int) (string, error) {
	meta, ok := n.ledger.Metadata(tok)
	if !ok {
		return "", errors.New("payroute: token not registered")
	}
	return meta.Format(amount), nil
}

func (n *Node) logEvent(l chain.Log) {
	n.log.Debug().
		Str("event", l.Event.EventName()).
		Str("address", l.Address.Hex()).
		Str("tx", l.TxHash.Hex()).
		Uint64("index", l.Index).
		Msg("event")
}
