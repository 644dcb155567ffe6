package surplus

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/native/vault"
)

var (
	errNilStore  = errors.New("surplus: store not configured")
	errNilVault  = errors.New("surplus: vault not configured")
	errNilTokens = errors.New("surplus: token transferrer not configured")

	// errUnitSkipped reports a vault that returned success without running
	// the unit of work.
	errUnitSkipped = fmt.Errorf("%w: vault skipped the unit of work", vault.ErrBalanceNotSettled)

	ErrSwapDeadline                    = errors.New("surplus: swap deadline exceeded")
	ErrAmountsLength                   = errors.New("surplus: amounts length does not match pool tokens")
	ErrProtocolFeePercentageAboveLimit = errors.New("surplus: protocol fee percentage above limit")
	ErrInvalidFeeSweeper               = errors.New("surplus: invalid fee sweeper")
	ErrInvalidFeeAccount               = errors.New("surplus: invalid fee account")
	ErrInsufficientFunds               = errors.New("surplus: insufficient funds")
	ErrCeilingMismatch                 = errors.New("surplus: stored fee ceiling differs from deployment")
	ErrFeeOverflow                     = errors.New("surplus: collected fee overflow")
	ErrMaxAmountInRequired             = errors.New("surplus: max amount in required")
)

// InsufficientFundsError reports a transfer hint below the amount the
// operation requires for token.
type InsufficientFundsError struct {
	Token    ethcommon.Address
	Provided *uint256.Int
	Required *uint256.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: token %s provided %s required %s", ErrInsufficientFunds, e.Token.Hex(), e.Provided.Dec(), e.Required.Dec())
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// ProtocolFeePercentageAboveLimitError reports a requested percentage above
// the immutable ceiling.
type ProtocolFeePercentageAboveLimitError struct {
	Percentage *uint256.Int
	Max        *uint256.Int
}

func (e *ProtocolFeePercentageAboveLimitError) Error() string {
	return fmt.Sprintf("%s: %s > %s", ErrProtocolFeePercentageAboveLimit, e.Percentage.Dec(), e.Max.Dec())
}

func (e *ProtocolFeePercentageAboveLimitError) Is(target error) bool {
	return target == ErrProtocolFeePercentageAboveLimit
}
