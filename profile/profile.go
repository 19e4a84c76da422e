// Package profile resolves a human-readable name to the payment profile a
// merchant publishes: where payments should land and in which token.
//
// Profiles are published as a TXT record at _payroute.{domain}:
//
//	payroute=receiver:0x1234...;token:0xabcd...
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	recordPrefix = "payroute="
	namePrefix   = "_payroute."
)

// Profile is the payout preference published for a name.
type Profile struct {
	Name     string
	Receiver common.Address
	TokenOut common.Address
}

// Resolver looks up the payment profile for a name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*Profile, error)
}

// TXTResolver resolves profiles from DNS TXT records.
type TXTResolver struct {
	dns DNSResolver
}

// Compile-time interface check.
var _ Resolver = (*TXTResolver)(nil)

// NewTXTResolver creates a resolver backed by dns. A nil dns uses DefaultDNSResolver.
func NewTXTResolver(dns DNSResolver) *TXTResolver {
	if dns == nil {
		dns = DefaultDNSResolver
	}
	return &TXTResolver{dns: dns}
}

// Resolve returns the profile published for name.
func (r *TXTResolver) Resolve(ctx context.Context, name string) (*Profile, error) {
	name = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(name)), ".")
	if name == "" || strings.ContainsAny(name, " /@") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	qname := namePrefix + name
	txts, err := r.dns.LookupTXT(ctx, qname)
	if err != nil {
		return nil, fmt.Errorf("%w: TXT lookup for %s: %w", ErrDNSLookupFailed, qname, err)
	}

	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if !strings.HasPrefix(txt, recordPrefix) {
			continue
		}
		p, err := ParseRecord(strings.TrimPrefix(txt, recordPrefix))
		if err != nil {
			return nil, err
		}
		p.Name = name
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProfile, qname)
}

// ParseRecord parses the body of a payroute= TXT record.
func ParseRecord(body string) (*Profile, error) {
	p := &Profile{}
	var haveReceiver, haveToken bool
	for _, field := range strings.Split(body, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidRecord, field)
		}
		value = strings.TrimSpace(value)
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("%w: %s is not an address", ErrInvalidRecord, key)
		}
		switch strings.TrimSpace(key) {
		case "receiver":
			p.Receiver = common.HexToAddress(value)
			haveReceiver = true
		case "token":
			p.TokenOut = common.HexToAddress(value)
			haveToken = true
		}
		// Unknown keys are ignored so publishers can extend the record.
	}
	if !haveReceiver || !haveToken {
		return nil, fmt.Errorf("%w: receiver and token are required", ErrInvalidRecord)
	}
	if p.Receiver == (common.Address{}) || p.TokenOut == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero address", ErrInvalidRecord)
	}
	return p, nil
}

// Format renders p as a TXT record value.
func (p *Profile) Format() string {
	return fmt.Sprintf("%sreceiver:%s;token:%s", recordPrefix, p.Receiver.Hex(), p.TokenOut.Hex())
}
