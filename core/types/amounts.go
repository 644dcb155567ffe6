package types

import (
	"strings"

	"github.com/holiman/uint256"
)

// TokenAmounts is an ordered amount vector, one entry per pool token in the
// pool's canonical token order.
type TokenAmounts []*uint256.Int

// NewTokenAmounts returns a zero-filled vector of length n.
func NewTokenAmounts(n int) TokenAmounts {
	out := make(TokenAmounts, n)
	for i := range out {
		out[i] = new(uint256.Int)
	}
	return out
}

// AmountsFromUint64 builds a vector from plain integers, mostly for tests and
// genesis seeding.
func AmountsFromUint64(values ...uint64) TokenAmounts {
	out := make(TokenAmounts, len(values))
	for i, v := range values {
		out[i] = uint256.NewInt(v)
	}
	return out
}

// At returns the amount at index i, treating nil entries as zero. The
// returned value is a copy.
func (a TokenAmounts) At(i int) *uint256.Int {
	if i < 0 || i >= len(a) || a[i] == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a[i])
}

// Clone returns a deep copy with nil entries normalised to zero.
func (a TokenAmounts) Clone() TokenAmounts {
	if a == nil {
		return nil
	}
	out := make(TokenAmounts, len(a))
	for i := range a {
		out[i] = a.At(i)
	}
	return out
}

// IsZero reports whether every entry is zero.
func (a TokenAmounts) IsZero() bool {
	for _, v := range a {
		if v != nil && !v.IsZero() {
			return false
		}
	}
	return true
}

// String renders the vector as a comma separated list of decimals, the form
// used in event attributes.
func (a TokenAmounts) String() string {
	parts := make([]string, len(a))
	for i := range a {
		parts[i] = a.At(i).Dec()
	}
	return strings.Join(parts, ",")
}
