package payroute

import (
	"github.com/payroute/libpayroute-go/chain"
	"github.com/payroute/libpayroute-go/metrics"
	"github.com/payroute/libpayroute-go/profile"
	"github.com/payroute/libpayroute-go/store"
	"github.com/payroute/libpayroute-go/swap"
	"github.com/rs/zerolog"
)

type options struct {
	logger   *zerolog.Logger
	metrics  metrics.Recorder
	clock    chain.Clock
	adapter  swap.Adapter
	resolver profile.Resolver
	kv       store.KV
}

// Option configures a Node.
type Option func(*options)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithMetrics sets the settlement metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithClock sets the block time source.
func WithClock(c chain.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSwapAdapter sets the router's swap adapter, overriding swap_adapter.
func WithSwapAdapter(a swap.Adapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}

// WithProfileResolver sets the resolver used by CreateInvoiceFor.
func WithProfileResolver(r profile.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithStore replaces the bbolt database under DataDir. The node does not
// close a store it did not open.
func WithStore(kv store.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}
