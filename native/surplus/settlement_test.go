package surplus

import (
	"context"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"surplusrouter/core/types"
	"surplusrouter/native/vault"
)

// recordingSession is an untrusted vault session that credits whatever
// credits says, regardless of the claim.
type recordingSession struct {
	credits map[ethcommon.Address]uint64
	sent    map[ethcommon.Address]map[ethcommon.Address]uint64
}

func newRecordingSession(credits map[ethcommon.Address]uint64) *recordingSession {
	return &recordingSession{credits: credits, sent: make(map[ethcommon.Address]map[ethcommon.Address]uint64)}
}

func (s *recordingSession) Swap(context.Context, vault.SwapRequest) (*uint256.Int, *uint256.Int, error) {
	return nil, nil, nil
}

func (s *recordingSession) Donate(context.Context, ethcommon.Address, types.TokenAmounts) error {
	return nil
}

func (s *recordingSession) Settle(_ context.Context, token ethcommon.Address, hint *uint256.Int) (*uint256.Int, error) {
	return uint256.NewInt(s.credits[token]), nil
}

func (s *recordingSession) SendTo(_ context.Context, token, to ethcommon.Address, amount *uint256.Int) error {
	if s.sent[to] == nil {
		s.sent[to] = make(map[ethcommon.Address]uint64)
	}
	s.sent[to][token] += amount.Uint64()
	return nil
}

func TestSettlementRevalidatesReportedCredit(t *testing.T) {
	tokens := []ethcommon.Address{dai, usdc}
	// The session reports less than was hinted for usdc.
	session := newRecordingSession(map[ethcommon.Address]uint64{dai: 200, usdc: 99})
	st := newSettlement(session, solver, feeAccount)
	require.NoError(t, st.declareHinted(tokens,
		types.AmountsFromUint64(200, 100),
		types.AmountsFromUint64(200, 100),
		types.AmountsFromUint64(0, 100),
		types.AmountsFromUint64(1, 1)))
	_, err := st.settle(context.Background())
	require.ErrorIs(t, err, vault.ErrBalanceNotSettled)
}

func TestSettlementPaysFeesAndRefunds(t *testing.T) {
	tokens := []ethcommon.Address{dai, usdc}
	session := newRecordingSession(map[ethcommon.Address]uint64{dai: 260, usdc: 100})
	st := newSettlement(session, solver, feeAccount)
	require.NoError(t, st.declareHinted(tokens,
		types.AmountsFromUint64(260, 100),
		types.AmountsFromUint64(200, 100),
		types.AmountsFromUint64(0, 100),
		types.AmountsFromUint64(1, 1)))
	refunds, err := st.settle(context.Background())
	require.NoError(t, err)
	require.Equal(t, "60,100", refunds.String())
	require.Equal(t, uint64(1), session.sent[feeAccount][dai])
	require.Equal(t, uint64(1), session.sent[feeAccount][usdc])
	require.Equal(t, uint64(60), session.sent[solver][dai])
	require.Equal(t, uint64(100), session.sent[solver][usdc])
}

func TestSettlementRejectsShortHint(t *testing.T) {
	st := newSettlement(newRecordingSession(nil), solver, feeAccount)
	err := st.declareHinted([]ethcommon.Address{dai, usdc},
		types.AmountsFromUint64(200, 99),
		types.AmountsFromUint64(200, 100),
		types.NewTokenAmounts(2),
		types.NewTokenAmounts(2))
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, usdc, insufficient.Token)
	require.Equal(t, uint64(99), insufficient.Provided.Uint64())
	require.Equal(t, uint64(100), insufficient.Required.Uint64())
}

func TestUnhintedSettlementReportsNoDetail(t *testing.T) {
	session := newRecordingSession(map[ethcommon.Address]uint64{dai: 50, usdc: 100})
	st := newSettlement(session, solver, feeAccount)
	st.declareExact([]ethcommon.Address{dai, usdc}, types.AmountsFromUint64(100, 100), types.AmountsFromUint64(1, 1))
	_, err := st.settle(context.Background())
	require.Equal(t, vault.ErrBalanceNotSettled, err)
	require.Empty(t, session.sent)
}
