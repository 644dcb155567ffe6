package surplus

import (
	"context"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
	"surplusrouter/native/vault"
)

// flow is the declared movement of one pool token within a unit of work.
// required is what the caller must have funded; owed is what the vault owes
// back before any hint surplus. hint is nil on the unhinted donate path.
type flow struct {
	token    ethcommon.Address
	required *uint256.Int
	owed     *uint256.Int
	hint     *uint256.Int
	fee      *uint256.Int
}

// settlement drives the declare, settle, validate protocol against a vault
// session. The session is untrusted: every credit it reports is checked
// against the declared amount rather than assumed.
type settlement struct {
	session    vault.Session
	caller     ethcommon.Address
	feeAccount ethcommon.Address
	flows      []flow
}

func newSettlement(session vault.Session, caller, feeAccount ethcommon.Address) *settlement {
	return &settlement{session: session, caller: caller, feeAccount: feeAccount}
}

// declareHinted records one flow per pool token and rejects any hint below
// the required inflow.
func (s *settlement) declareHinted(tokens []ethcommon.Address, hints, required, owed, protocolFees types.TokenAmounts) error {
	flows := make([]flow, len(tokens))
	for i, token := range tokens {
		hint := hints.At(i)
		need := required.At(i)
		if hint.Lt(need) {
			return &InsufficientFundsError{Token: token, Provided: hint, Required: need}
		}
		flows[i] = flow{token: token, required: need, owed: owed.At(i), hint: hint, fee: protocolFees.At(i)}
	}
	s.flows = flows
	return nil
}

// declareExact records one unhinted flow per pool token; the caller is
// assumed to have funded exactly the required amount.
func (s *settlement) declareExact(tokens []ethcommon.Address, required, protocolFees types.TokenAmounts) {
	flows := make([]flow, len(tokens))
	for i, token := range tokens {
		flows[i] = flow{token: token, required: required.At(i), owed: new(uint256.Int), fee: protocolFees.At(i)}
	}
	s.flows = flows
}

// settle claims every declared inflow, pays protocol fees into the fee
// account and returns the per-token refunds paid to the caller. A vault that
// credits less than was claimed fails the unit with ErrBalanceNotSettled.
func (s *settlement) settle(ctx context.Context) (types.TokenAmounts, error) {
	for _, f := range s.flows {
		claim := f.required
		if f.hint != nil {
			claim = f.hint
		}
		if claim.IsZero() {
			continue
		}
		credit, err := s.session.Settle(ctx, f.token, claim)
		if err != nil {
			return nil, err
		}
		if credit == nil || credit.Lt(claim) {
			if f.hint == nil {
				return nil, vault.ErrBalanceNotSettled
			}
			return nil, fmt.Errorf("%w: token %s credited %s of hinted %s", vault.ErrBalanceNotSettled, f.token.Hex(), amountOrZero(credit).Dec(), claim.Dec())
		}
	}
	for _, f := range s.flows {
		if err := s.session.SendTo(ctx, f.token, s.feeAccount, f.fee); err != nil {
			return nil, fmt.Errorf("pay protocol fee: %w", err)
		}
	}
	refunds := types.NewTokenAmounts(len(s.flows))
	for i, f := range s.flows {
		refund := new(uint256.Int).Set(f.owed)
		if f.hint != nil {
			if _, overflow := refund.AddOverflow(refund, new(uint256.Int).Sub(f.hint, f.required)); overflow {
				return nil, vault.ErrAmountOverflow
			}
		}
		if err := s.session.SendTo(ctx, f.token, s.caller, refund); err != nil {
			return nil, fmt.Errorf("refund caller: %w", err)
		}
		refunds[i] = refund
	}
	return refunds, nil
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
