package invoice

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/payroute/libpayroute-go/profile"
)

// ParamsFromProfile builds creation parameters whose receiver and token come
// from a resolved payment profile.
func ParamsFromProfile(p *profile.Profile, amount *uint256.Int, deadline uint64, ref common.Hash, memo string) (CreateParams, error) {
	if p == nil {
		return CreateParams{}, fmt.Errorf("%w: nil profile", ErrInvalidParams)
	}
	return CreateParams{
		Receiver:  p.Receiver,
		TokenOut:  p.TokenOut,
		AmountOut: amount,
		Deadline:  deadline,
		Ref:       ref,
		Memo:      memo,
	}, nil
}
