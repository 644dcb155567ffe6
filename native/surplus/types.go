package surplus

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
	"surplusrouter/native/vault"
)

// Action identifiers checked against the Authorizer before any state change.
const (
	ActionSwapExactIn              = "surplus.swapExactInAndDonateSurplus"
	ActionSwapExactOut             = "surplus.swapExactOutAndDonateSurplus"
	ActionDonate                   = "surplus.donate"
	ActionSetProtocolFeePercentage = "surplus.setProtocolFeePercentage"
	ActionSetFeeSweeper            = "surplus.setFeeSweeper"
)

// SwapExactInParams describes an exact-input swap paired with a donation.
// DonationAmounts and TransferHints are in the pool's canonical token order.
// A nil MinAmountOut accepts any output.
type SwapExactInParams struct {
	Pool            ethcommon.Address
	TokenIn         ethcommon.Address
	TokenOut        ethcommon.Address
	ExactAmountIn   *uint256.Int
	MinAmountOut    *uint256.Int
	Deadline        time.Time
	DonationAmounts types.TokenAmounts
	TransferHints   types.TokenAmounts
	UserData        []byte
}

// SwapExactOutParams describes an exact-output swap paired with a donation.
// MaxAmountIn is required.
type SwapExactOutParams struct {
	Pool            ethcommon.Address
	TokenIn         ethcommon.Address
	TokenOut        ethcommon.Address
	MaxAmountIn     *uint256.Int
	ExactAmountOut  *uint256.Int
	Deadline        time.Time
	DonationAmounts types.TokenAmounts
	TransferHints   types.TokenAmounts
	UserData        []byte
}

// DonateParams describes a donation without a swap. The caller must have
// moved exactly DonationAmounts into the vault beforehand.
type DonateParams struct {
	Pool            ethcommon.Address
	DonationAmounts types.TokenAmounts
	UserData        []byte
}

// SwapDonateResult reports the settled amounts of a swap-and-donate call.
type SwapDonateResult struct {
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
	NetDonations types.TokenAmounts
	ProtocolFees types.TokenAmounts
	// Refunds holds what was sent back to the caller per pool token: the
	// swap output plus any hint surplus.
	Refunds types.TokenAmounts
}

// DonateResult reports the settled amounts of a donation.
type DonateResult struct {
	NetDonations types.TokenAmounts
	ProtocolFees types.TokenAmounts
}

// TokenTransferrer moves token balances between holders. Used to pay
// withdrawn fees out of the engine's fee account.
type TokenTransferrer interface {
	Transfer(token, from, to ethcommon.Address, amount *uint256.Int) error
}

// swapPlan is the normalised form both swap entry points reduce to.
type swapPlan struct {
	action          string
	pool            ethcommon.Address
	tokenIn         ethcommon.Address
	tokenOut        ethcommon.Address
	kind            vault.SwapKind
	amountGiven     *uint256.Int
	limit           *uint256.Int
	deadline        time.Time
	donationAmounts types.TokenAmounts
	transferHints   types.TokenAmounts
	userData        []byte
}
