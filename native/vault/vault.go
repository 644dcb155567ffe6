// Package vault defines the settlement boundary the surplus engine drives and
// ships an in-memory reference implementation of it.
//
// A unit of work starts with Unlock. Inside the callback the caller accrues
// debts (tokens it owes the vault: swap inputs, donations, tokens sent out)
// and credits (tokens the vault owes it: swap outputs, settled transfers).
// Unlock only succeeds when every per-token delta nets to zero.
package vault

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
)

// SwapKind selects which side of a swap the caller fixes.
type SwapKind uint8

const (
	// ExactIn fixes the amount paid in; the pool computes the amount out.
	ExactIn SwapKind = iota
	// ExactOut fixes the amount received; the pool computes the amount in.
	ExactOut
)

func (k SwapKind) String() string {
	switch k {
	case ExactIn:
		return "exact_in"
	case ExactOut:
		return "exact_out"
	default:
		return "unknown"
	}
}

// SwapRequest describes a single-pool swap. Limit is the minimum amount out
// for ExactIn and the maximum amount in for ExactOut.
type SwapRequest struct {
	Pool        ethcommon.Address
	TokenIn     ethcommon.Address
	TokenOut    ethcommon.Address
	Kind        SwapKind
	AmountGiven *uint256.Int
	Limit       *uint256.Int
}

// Vault is the external settlement system consumed by the surplus engine.
type Vault interface {
	// PoolTokens returns the pool's registered tokens in canonical order.
	PoolTokens(pool ethcommon.Address) ([]ethcommon.Address, error)
	// MinimumTradeAmount returns the smallest swap amount the pool accepts.
	MinimumTradeAmount(pool ethcommon.Address) (*uint256.Int, error)
	// Unlock runs fn as one atomic unit of work. Any error from fn, or a
	// non-zero delta left once fn returns, rolls back every effect.
	Unlock(ctx context.Context, fn func(ctx context.Context, s Session) error) error
}

// Session is the set of operations available while the vault is unlocked.
type Session interface {
	Swap(ctx context.Context, req SwapRequest) (amountIn, amountOut *uint256.Int, err error)
	// Donate adds amounts to the pool balances without minting shares.
	Donate(ctx context.Context, pool ethcommon.Address, amounts types.TokenAmounts) error
	// Settle credits tokens transferred to the vault since the last settlement,
	// capped at hint, and returns the credited amount.
	Settle(ctx context.Context, token ethcommon.Address, hint *uint256.Int) (*uint256.Int, error)
	// SendTo pays amount of token out of the vault.
	SendTo(ctx context.Context, token, to ethcommon.Address, amount *uint256.Int) error
}
