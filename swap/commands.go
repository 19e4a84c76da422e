package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Command bytes. Each command consumes one ABI-encoded input.
const (
	CommandExactIn  byte = 0x00
	CommandExactOut byte = 0x01
)

// ExactIn swaps all of AmountIn and requires at least AmountOutMin out.
type ExactIn struct {
	Recipient    common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *uint256.Int
	AmountOutMin *uint256.Int
}

// ExactOut buys exactly AmountOut and spends at most AmountInMax.
type ExactOut struct {
	Recipient   common.Address
	TokenIn     common.Address
	TokenOut    common.Address
	AmountOut   *uint256.Int
	AmountInMax *uint256.Int
}

// (address recipient, address tokenIn, address tokenOut, uint256, uint256)
var swapArgs = abi.Arguments{
	{Type: mustABIType("address")},
	{Type: mustABIType("address")},
	{Type: mustABIType("address")},
	{Type: mustABIType("uint256")},
	{Type: mustABIType("uint256")},
}

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// EncodeExactIn ABI-encodes the input of a CommandExactIn.
func EncodeExactIn(p ExactIn) ([]byte, error) {
	return pack(p.Recipient, p.TokenIn, p.TokenOut, p.AmountIn, p.AmountOutMin)
}

// DecodeExactIn parses the input of a CommandExactIn.
func DecodeExactIn(data []byte) (ExactIn, error) {
	r, in, out, a, b, err := unpack(data)
	if err != nil {
		return ExactIn{}, err
	}
	return ExactIn{Recipient: r, TokenIn: in, TokenOut: out, AmountIn: a, AmountOutMin: b}, nil
}

// EncodeExactOut ABI-encodes the input of a CommandExactOut.
func EncodeExactOut(p ExactOut) ([]byte, error) {
	return pack(p.Recipient, p.TokenIn, p.TokenOut, p.AmountOut, p.AmountInMax)
}

// DecodeExactOut parses the input of a CommandExactOut.
func DecodeExactOut(data []byte) (ExactOut, error) {
	r, in, out, a, b, err := unpack(data)
	if err != nil {
		return ExactOut{}, err
	}
	return ExactOut{Recipient: r, TokenIn: in, TokenOut: out, AmountOut: a, AmountInMax: b}, nil
}

// ValidateCommands checks that commands and inputs pair up one to one, every
// command is known and every input decodes.
func ValidateCommands(commands []byte, inputs [][]byte) error {
	if len(commands) == 0 {
		return fmt.Errorf("%w: no commands", ErrMalformedRoute)
	}
	if len(commands) != len(inputs) {
		return fmt.Errorf("%w: %d commands, %d inputs", ErrMalformedRoute, len(commands), len(inputs))
	}
	for i, cmd := range commands {
		var err error
		switch cmd {
		case CommandExactIn:
			_, err = DecodeExactIn(inputs[i])
		case CommandExactOut:
			_, err = DecodeExactOut(inputs[i])
		default:
			err = fmt.Errorf("%w: 0x%02x", ErrUnknownCommand, cmd)
		}
		if err != nil {
			return fmt.Errorf("%w: command %d: %w", ErrMalformedRoute, i, err)
		}
	}
	return nil
}

func pack(recipient, tokenIn, tokenOut common.Address, a, b *uint256.Int) ([]byte, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrMalformedRoute)
	}
	return swapArgs.Pack(recipient, tokenIn, tokenOut, a.ToBig(), b.ToBig())
}

func unpack(data []byte) (recipient, tokenIn, tokenOut common.Address, a, b *uint256.Int, err error) {
	vals, err := swapArgs.Unpack(data)
	if err != nil {
		return recipient, tokenIn, tokenOut, nil, nil, fmt.Errorf("%w: %w", ErrMalformedRoute, err)
	}
	if len(vals) != len(swapArgs) {
		return recipient, tokenIn, tokenOut, nil, nil, fmt.Errorf("%w: %d values", ErrMalformedRoute, len(vals))
	}
	var ok bool
	if recipient, ok = vals[0].(common.Address); !ok {
		return recipient, tokenIn, tokenOut, nil, nil, fmt.Errorf("%w: recipient", ErrMalformedRoute)
	}
	if tokenIn, ok = vals[1].(common.Address); !ok {
		return recipient, tokenIn, tokenOut, nil, nil, fmt.Errorf("%w: tokenIn", ErrMalformedRoute)
	}
	if tokenOut, ok = vals[2].(common.Address); !ok {
		return recipient, tokenIn, tokenOut, nil, nil, fmt.Errorf("%w: tokenOut", ErrMalformedRoute)
	}
	if a, err = toUint256(vals[3]); err != nil {
		return recipient, tokenIn, tokenOut, nil, nil, err
	}
	if b, err = toUint256(vals[4]); err != nil {
		return recipient, tokenIn, tokenOut, nil, nil, err
	}
	return recipient, tokenIn, tokenOut, a, b, nil
}

func toUint256(v interface{}) (*uint256.Int, error) {
	bi, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: amount is %T", ErrMalformedRoute, v)
	}
	u, overflow := uint256.FromBig(bi)
	if overflow {
		return nil, fmt.Errorf("%w: amount", ErrOverflow)
	}
	return u, nil
}
