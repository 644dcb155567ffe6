package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrPoolNotRegistered     = errors.New("vault: pool not registered")
	ErrPoolAlreadyRegistered = errors.New("vault: pool already registered")
	ErrInvalidPoolTokens     = errors.New("vault: pool requires at least two distinct non-zero tokens")
	ErrTokenNotRegistered    = errors.New("vault: token not registered with pool")
	ErrAmountsLength         = errors.New("vault: amounts length does not match pool tokens")
	ErrAmountGivenZero       = errors.New("vault: amount given is zero")
	ErrTradeAmountTooSmall   = errors.New("vault: trade amount too small")
	ErrSwapLimit             = errors.New("vault: swap limit exceeded")
	ErrInsufficientLiquidity = errors.New("vault: insufficient pool liquidity")
	ErrBalanceNotSettled     = errors.New("vault: balance not settled")
	ErrVaultLocked           = errors.New("vault: session used outside of an unlocked unit")
	ErrAmountOverflow        = errors.New("vault: amount overflow")
	ErrInvalidCurve          = errors.New("vault: invalid curve configuration")
)

// SwapLimitError reports the computed amount that violated the caller's limit.
type SwapLimitError struct {
	Kind   SwapKind
	Amount *uint256.Int
	Limit  *uint256.Int
}

func (e *SwapLimitError) Error() string {
	if e.Kind == ExactOut {
		return fmt.Sprintf("%s: amount in %s above max %s", ErrSwapLimit, e.Amount.Dec(), e.Limit.Dec())
	}
	return fmt.Sprintf("%s: amount out %s below min %s", ErrSwapLimit, e.Amount.Dec(), e.Limit.Dec())
}

// Is lets errors.Is match the sentinel.
func (e *SwapLimitError) Is(target error) bool { return target == ErrSwapLimit }
