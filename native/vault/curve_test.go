package vault

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestLinearCurve(t *testing.T) {
	out, err := LinearCurve{}.ComputeSwap(ExactIn, uint256.NewInt(10), uint256.NewInt(5), uint256.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, uint64(10), out.Uint64())

	_, err = LinearCurve{}.ComputeSwap(ExactOut, uint256.NewInt(11), uint256.NewInt(5), uint256.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestConstantProductExactInMatchesReference(t *testing.T) {
	rIn := uint256.NewInt(1_000_000)
	rOut := uint256.NewInt(1_000_000)
	amountIn := uint256.NewInt(1_000)

	out, err := ConstantProductCurve{FeeBps: 30}.ComputeSwap(ExactIn, amountIn, rIn, rOut)
	require.NoError(t, err)

	withFee := new(big.Int).Mul(amountIn.ToBig(), big.NewInt(9_970))
	numerator := new(big.Int).Mul(withFee, rOut.ToBig())
	denominator := new(big.Int).Mul(rIn.ToBig(), big.NewInt(10_000))
	denominator.Add(denominator, withFee)
	expected := new(big.Int).Div(numerator, denominator)
	require.Equal(t, 0, expected.Cmp(out.ToBig()))
	require.Equal(t, uint64(996), out.Uint64())
}

func TestConstantProductExactOutCoversRequestedOutput(t *testing.T) {
	curve := ConstantProductCurve{FeeBps: 30}
	rIn := uint256.NewInt(1_000_000)
	rOut := uint256.NewInt(1_000_000)

	in, err := curve.ComputeSwap(ExactOut, uint256.NewInt(996), rIn, rOut)
	require.NoError(t, err)
	out, err := curve.ComputeSwap(ExactIn, in, rIn, rOut)
	require.NoError(t, err)
	require.False(t, out.Lt(uint256.NewInt(996)))

	_, err = curve.ComputeSwap(ExactOut, rOut, rIn, rOut)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	_, err = curve.ComputeSwap(ExactIn, uint256.NewInt(1), new(uint256.Int), rOut)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestCurveRejectsInvalidConfiguration(t *testing.T) {
	given, balance := uint256.NewInt(10), uint256.NewInt(1_000)

	_, err := ConstantProductCurve{FeeBps: feeDenominatorBps}.ComputeSwap(ExactIn, given, balance, balance)
	require.ErrorIs(t, err, ErrInvalidCurve)
	require.NotErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = ConstantProductCurve{FeeBps: 30}.ComputeSwap(SwapKind(7), given, balance, balance)
	require.ErrorContains(t, err, "unknown swap kind 7")
	require.NotErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = LinearCurve{}.ComputeSwap(SwapKind(7), given, balance, balance)
	require.ErrorContains(t, err, "unknown swap kind 7")
}
