package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDNS struct {
	records map[string][]string
	err     error
	queried []string
}

func (m *mockDNS) LookupTXT(_ context.Context, name string) ([]string, error) {
	m.queried = append(m.queried, name)
	if m.err != nil {
		return nil, m.err
	}
	return m.records[name], nil
}

var (
	receiver = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdc     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestTXTResolver_Resolve(t *testing.T) {
	m := &mockDNS{records: map[string][]string{
		"_payroute.shop.example": {
			"v=spf1 -all",
			"payroute=receiver:" + receiver.Hex() + ";token:" + usdc.Hex(),
		},
	}}
	r := NewTXTResolver(m)

	p, err := r.Resolve(context.Background(), "Shop.Example.")
	require.NoError(t, err)
	assert.Equal(t, "shop.example", p.Name)
	assert.Equal(t, receiver, p.Receiver)
	assert.Equal(t, usdc, p.TokenOut)
	assert.Equal(t, []string{"_payroute.shop.example"}, m.queried)
}

func TestTXTResolver_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dns     *mockDNS
		query   string
		wantErr error
	}{
		{"empty name", &mockDNS{}, "  ", ErrInvalidName},
		{"bad chars", &mockDNS{}, "a b", ErrInvalidName},
		{"lookup failure", &mockDNS{err: errors.New("servfail")}, "x.example", ErrDNSLookupFailed},
		{"no record", &mockDNS{records: map[string][]string{"_payroute.x.example": {"other"}}}, "x.example", ErrNoProfile},
		{"malformed", &mockDNS{records: map[string][]string{"_payroute.x.example": {"payroute=receiver:nothex;token:0x01"}}}, "x.example", ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTXTResolver(tt.dns).Resolve(context.Background(), tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseRecord(t *testing.T) {
	p, err := ParseRecord(" receiver:" + receiver.Hex() + " ; token:" + usdc.Hex() + ";memo:" + receiver.Hex())
	require.NoError(t, err)
	assert.Equal(t, receiver, p.Receiver)
	assert.Equal(t, usdc, p.TokenOut)

	_, err = ParseRecord("receiver:" + receiver.Hex())
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ParseRecord("receiver" + receiver.Hex())
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ParseRecord("receiver:0x0000000000000000000000000000000000000000;token:" + usdc.Hex())
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestProfile_FormatRoundTrip(t *testing.T) {
	p := &Profile{Receiver: receiver, TokenOut: usdc}
	m := &mockDNS{records: map[string][]string{"_payroute.a.example": {p.Format()}}}
	got, err := NewTXTResolver(m).Resolve(context.Background(), "a.example")
	require.NoError(t, err)
	assert.Equal(t, p.Receiver, got.Receiver)
	assert.Equal(t, p.TokenOut, got.TokenOut)
}

func TestDNSSECResolver_Defaults(t *testing.T) {
	var _ DNSResolver = (*DNSSECResolver)(nil)
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
	assert.Equal(t, "1.1.1.1:53", NewDNSSECResolver("1.1.1.1:53").Upstream)
}

func TestParseTXTResponse(t *testing.T) {
	txt := func(parts ...string) dns.RR {
		return &dns.TXT{Hdr: dns.RR_Header{Name: "x.", Rrtype: dns.TypeTXT, Class: dns.ClassINET}, Txt: parts}
	}

	resp := new(dns.Msg)
	resp.AuthenticatedData = true
	resp.Answer = []dns.RR{txt("payroute=", "receiver:a;token:b")}
	got, err := parseTXTResponse("x", resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"payroute=receiver:a;token:b"}, got)

	resp.AuthenticatedData = false
	_, err = parseTXTResponse("x", resp)
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)

	resp = new(dns.Msg)
	resp.Rcode = dns.RcodeNameError
	_, err = parseTXTResponse("x", resp)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	resp = new(dns.Msg)
	resp.AuthenticatedData = true
	_, err = parseTXTResponse("x", resp)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestDNSSECResolver_LookupTXT_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, err := NewDNSSECResolver("").LookupTXT(context.Background(), "cloudflare.com")
	if err != nil {
		t.Skipf("skipping: upstream resolver unavailable or did not authenticate: %v", err)
	}
}
