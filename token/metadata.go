package token

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Metadata describes how a token is displayed.
type Metadata struct {
	Symbol   string
	Decimals int32
}

// FormatAmount renders amount base units as a decimal string in whole-token units.
func FormatAmount(amount *uint256.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount.ToBig(), -decimals).String()
}

// Format renders amount with the token's decimals and symbol, e.g. "12.5 USDC".
func (m Metadata) Format(amount *uint256.Int) string {
	s := FormatAmount(amount, m.Decimals)
	if m.Symbol == "" {
		return s
	}
	return s + " " + m.Symbol
}
