package fees

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"surplusrouter/core/types"
)

func ceilReference(amount, pct *uint256.Int) *big.Int {
	product := new(big.Int).Mul(amount.ToBig(), pct.ToBig())
	one := One.ToBig()
	q, r := new(big.Int).QuoRem(product, one, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func TestProtocolFeeRoundsUp(t *testing.T) {
	onePercent := uint256.NewInt(10_000_000_000_000_000)

	fee, err := ProtocolFee(uint256.NewInt(100), onePercent)
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee.Uint64())

	// 1% of 150 is 1.5, rounded toward the fee recipient.
	fee, err = ProtocolFee(uint256.NewInt(150), onePercent)
	require.NoError(t, err)
	require.Equal(t, uint64(2), fee.Uint64())

	// Any non-zero product yields at least one unit of fee.
	fee, err = ProtocolFee(uint256.NewInt(1), uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee.Uint64())
}

func TestProtocolFeeZeroInputs(t *testing.T) {
	fee, err := ProtocolFee(new(uint256.Int), One)
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	fee, err = ProtocolFee(uint256.NewInt(100), new(uint256.Int))
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	fee, err = ProtocolFee(nil, nil)
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}

func TestProtocolFeeRejectsPercentageAboveOne(t *testing.T) {
	_, err := ProtocolFee(uint256.NewInt(1), new(uint256.Int).AddUint64(One, 1))
	require.ErrorIs(t, err, ErrPercentageAboveOne)
}

func TestProtocolFeeMatchesCeilingAcrossRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	maxAmount := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	for i := 0; i < 2000; i++ {
		pct := new(uint256.Int).SetUint64(rng.Uint64() % (One.Uint64() + 1))
		amount := new(uint256.Int).SetUint64(rng.Uint64())
		if i%4 == 0 {
			amount.Mul(amount, uint256.NewInt(rng.Uint64()|1))
			if amount.Gt(maxAmount) {
				amount.Rsh(amount, 1)
			}
		}
		result, err := Apply(ApplyInput{Gross: amount, Percentage: pct})
		require.NoError(t, err)
		require.Equal(t, 0, ceilReference(amount, pct).Cmp(result.Fee.ToBig()), "amount=%s pct=%s", amount, pct)
		require.False(t, result.Fee.Gt(amount))
		sum := new(uint256.Int).Add(result.Net, result.Fee)
		require.True(t, sum.Eq(amount))
	}
}

func TestProtocolFeeAtBounds(t *testing.T) {
	amount := new(uint256.Int).SetAllOne()
	result, err := Apply(ApplyInput{Gross: amount, Percentage: One})
	require.NoError(t, err)
	require.True(t, result.Fee.Eq(amount))
	require.True(t, result.Net.IsZero())

	result, err = Apply(ApplyInput{Gross: amount, Percentage: new(uint256.Int)})
	require.NoError(t, err)
	require.True(t, result.Fee.IsZero())
	require.True(t, result.Net.Eq(amount))
}

func TestSplitPreservesOrder(t *testing.T) {
	onePercent := uint256.NewInt(10_000_000_000_000_000)
	fees, net, err := Split(types.AmountsFromUint64(100, 0, 250), onePercent)
	require.NoError(t, err)
	require.Equal(t, "1,0,3", fees.String())
	require.Equal(t, "99,0,247", net.String())
}

func TestSplitPropagatesPercentageError(t *testing.T) {
	_, _, err := Split(types.AmountsFromUint64(1), new(uint256.Int).AddUint64(One, 1))
	require.ErrorIs(t, err, ErrPercentageAboveOne)
}
