package vault

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Curve prices swaps for a pool. ComputeSwap returns the amount out for
// ExactIn and the amount in for ExactOut, given the current balances of the
// two tokens involved.
type Curve interface {
	ComputeSwap(kind SwapKind, amountGiven, balanceIn, balanceOut *uint256.Int) (*uint256.Int, error)
}

// LinearCurve prices every swap at 1:1, bounded by the outgoing balance.
type LinearCurve struct{}

func (LinearCurve) ComputeSwap(kind SwapKind, amountGiven, _, balanceOut *uint256.Int) (*uint256.Int, error) {
	if kind != ExactIn && kind != ExactOut {
		return nil, unknownKind(kind)
	}
	if amountGiven.Gt(balanceOut) {
		return nil, ErrInsufficientLiquidity
	}
	return new(uint256.Int).Set(amountGiven), nil
}

const feeDenominatorBps = 10_000

// ConstantProductCurve is the x*y=k curve with a swap fee charged on the
// input side, e.g. FeeBps=30 for 0.3%.
type ConstantProductCurve struct {
	FeeBps uint64
}

func (c ConstantProductCurve) ComputeSwap(kind SwapKind, amountGiven, balanceIn, balanceOut *uint256.Int) (*uint256.Int, error) {
	if c.FeeBps >= feeDenominatorBps {
		return nil, fmt.Errorf("%w: fee %d bps not below %d", ErrInvalidCurve, c.FeeBps, feeDenominatorBps)
	}
	if balanceIn.IsZero() || balanceOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	feeMul := big.NewInt(int64(feeDenominatorBps - c.FeeBps))
	feeDen := big.NewInt(feeDenominatorBps)
	given := amountGiven.ToBig()
	rIn := balanceIn.ToBig()
	rOut := balanceOut.ToBig()

	var result *big.Int
	switch kind {
	case ExactIn:
		// out = in*feeMul*rOut / (rIn*feeDen + in*feeMul)
		t1 := new(big.Int).Mul(given, feeMul)
		t2 := new(big.Int).Mul(rIn, feeDen)
		t2.Add(t2, t1)
		result = t1.Mul(t1, rOut)
		result.Div(result, t2)
	case ExactOut:
		if given.Cmp(rOut) >= 0 {
			return nil, ErrInsufficientLiquidity
		}
		// in = rIn*out*feeDen / ((rOut-out)*feeMul) + 1
		num := new(big.Int).Mul(rIn, given)
		num.Mul(num, feeDen)
		den := new(big.Int).Sub(rOut, given)
		den.Mul(den, feeMul)
		result = num.Div(num, den)
		result.Add(result, big.NewInt(1))
	default:
		return nil, unknownKind(kind)
	}
	out, overflow := uint256.FromBig(result)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

func unknownKind(kind SwapKind) error {
	return fmt.Errorf("vault: unknown swap kind %d", kind)
}
