package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
)

const (
	// TypeProtocolFeePercentageChanged marks an update of the donation fee.
	TypeProtocolFeePercentageChanged = "surplus.protocol_fee_percentage_changed"
	// TypeFeeSweeperChanged marks an update of the fee recipient.
	TypeFeeSweeperChanged = "surplus.fee_sweeper_changed"
	// TypeProtocolFeesWithdrawn marks a sweep of collected fees for one token.
	TypeProtocolFeesWithdrawn = "surplus.protocol_fees_withdrawn"
)

// ProtocolFeePercentageChanged carries the new 18-decimal fee fraction.
type ProtocolFeePercentageChanged struct {
	Percentage *uint256.Int
}

func (ProtocolFeePercentageChanged) EventType() string { return TypeProtocolFeePercentageChanged }

func (e ProtocolFeePercentageChanged) Event() *types.Event {
	return &types.Event{
		Type:       TypeProtocolFeePercentageChanged,
		Attributes: map[string]string{"percentage": amountString(e.Percentage)},
	}
}

// FeeSweeperChanged carries the newly configured sweeper.
type FeeSweeperChanged struct {
	Sweeper common.Address
}

func (FeeSweeperChanged) EventType() string { return TypeFeeSweeperChanged }

func (e FeeSweeperChanged) Event() *types.Event {
	return &types.Event{
		Type:       TypeFeeSweeperChanged,
		Attributes: map[string]string{"sweeper": e.Sweeper.Hex()},
	}
}

// ProtocolFeesWithdrawn is emitted on every withdrawal, including those that
// move a zero amount.
type ProtocolFeesWithdrawn struct {
	Token     common.Address
	Recipient common.Address
	Amount    *uint256.Int
}

func (ProtocolFeesWithdrawn) EventType() string { return TypeProtocolFeesWithdrawn }

func (e ProtocolFeesWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeProtocolFeesWithdrawn,
		Attributes: map[string]string{
			"token":     e.Token.Hex(),
			"recipient": e.Recipient.Hex(),
			"amount":    amountString(e.Amount),
		},
	}
}
