package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
)

const (
	// TypeSwapAndDonation is emitted when a swap and its paired donation settle.
	TypeSwapAndDonation = "surplus.swap_and_donation"
	// TypeDonation is emitted when a donation without a swap settles.
	TypeDonation = "surplus.donation"
)

// SwapAndDonation records a settled swap together with the fee-adjusted
// donation made to the same pool.
type SwapAndDonation struct {
	Pool         common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
	NetDonations types.TokenAmounts
	ProtocolFees types.TokenAmounts
	UserData     []byte
}

func (SwapAndDonation) EventType() string { return TypeSwapAndDonation }

func (e SwapAndDonation) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapAndDonation,
		Attributes: map[string]string{
			"pool":         e.Pool.Hex(),
			"tokenIn":      e.TokenIn.Hex(),
			"tokenOut":     e.TokenOut.Hex(),
			"amountIn":     amountString(e.AmountIn),
			"amountOut":    amountString(e.AmountOut),
			"netDonations": e.NetDonations.String(),
			"protocolFees": e.ProtocolFees.String(),
			"userData":     hexutil.Encode(e.UserData),
		},
	}
}

// Donation records a settled donation that carried no swap.
type Donation struct {
	Pool         common.Address
	NetDonations types.TokenAmounts
	ProtocolFees types.TokenAmounts
	UserData     []byte
}

func (Donation) EventType() string { return TypeDonation }

func (e Donation) Event() *types.Event {
	return &types.Event{
		Type: TypeDonation,
		Attributes: map[string]string{
			"pool":         e.Pool.Hex(),
			"netDonations": e.NetDonations.String(),
			"protocolFees": e.ProtocolFees.String(),
			"userData":     hexutil.Encode(e.UserData),
		},
	}
}
