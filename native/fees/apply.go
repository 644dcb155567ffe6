package fees

import (
	"errors"

	"github.com/holiman/uint256"

	"surplusrouter/core/types"
)

// One is the 18-decimal fixed-point representation of 100%.
var One = uint256.NewInt(1_000_000_000_000_000_000)

// DefaultMaxProtocolFeePercentage is the ceiling used when a deployment does
// not configure one (50%).
var DefaultMaxProtocolFeePercentage = uint256.NewInt(500_000_000_000_000_000)

// ErrPercentageAboveOne is returned when a fee fraction exceeds 100%.
var ErrPercentageAboveOne = errors.New("fees: percentage above 100%")

// ProtocolFee returns ceil(amount * pct / One). Rounding always favours the
// fee recipient. pct must not exceed One, which keeps the fee <= amount.
func ProtocolFee(amount, pct *uint256.Int) (*uint256.Int, error) {
	if amount == nil || pct == nil || amount.IsZero() || pct.IsZero() {
		return new(uint256.Int), nil
	}
	if pct.Gt(One) {
		return nil, ErrPercentageAboveOne
	}
	// The product is computed at 512 bits, so pct <= One cannot overflow the
	// quotient.
	fee, _ := new(uint256.Int).MulDivOverflow(amount, pct, One)
	if !new(uint256.Int).MulMod(amount, pct, One).IsZero() {
		fee.AddUint64(fee, 1)
	}
	return fee, nil
}

// ApplyInput captures the donation amount and the fee fraction in effect for
// the operation.
type ApplyInput struct {
	Gross      *uint256.Int
	Percentage *uint256.Int
}

// ApplyResult splits the gross amount into the protocol fee and the net
// amount that reaches the pool. Net + Fee always equals Gross.
type ApplyResult struct {
	Fee *uint256.Int
	Net *uint256.Int
}

// Apply evaluates the protocol fee for a single amount.
func Apply(input ApplyInput) (ApplyResult, error) {
	gross := new(uint256.Int)
	if input.Gross != nil {
		gross.Set(input.Gross)
	}
	fee, err := ProtocolFee(gross, input.Percentage)
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Fee: fee, Net: new(uint256.Int).Sub(gross, fee)}, nil
}

// Split applies the fee to every entry of the donation vector and returns the
// per-token fees and net donations in the same order.
func Split(amounts types.TokenAmounts, pct *uint256.Int) (fees types.TokenAmounts, net types.TokenAmounts, err error) {
	fees = make(types.TokenAmounts, len(amounts))
	net = make(types.TokenAmounts, len(amounts))
	for i := range amounts {
		result, err := Apply(ApplyInput{Gross: amounts.At(i), Percentage: pct})
		if err != nil {
			return nil, nil, err
		}
		fees[i] = result.Fee
		net[i] = result.Net
	}
	return fees, net, nil
}
