// Package surplus executes swaps paired with fee-adjusted pool donations as
// one atomic unit of work against a vault, and keeps the persistent ledger of
// protocol fees skimmed from those donations.
package surplus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"surplusrouter/core/events"
	"surplusrouter/core/types"
	nativecommon "surplusrouter/native/common"
	"surplusrouter/native/fees"
	"surplusrouter/native/vault"
	"surplusrouter/observability"
	"surplusrouter/observability/logging"
)

// Engine coordinates swap-and-donate settlement. State-changing operations
// are serialized; getters may run concurrently with each other.
type Engine struct {
	mu sync.RWMutex

	store      *Store
	vault      vault.Vault
	gate       nativecommon.Authorizer
	tokens     TokenTransferrer
	feeAccount ethcommon.Address

	emitter events.Emitter
	nowFn   func() time.Time
	logger  *slog.Logger
	metrics *observability.SurplusMetrics
	tracer  trace.Tracer
}

// NewEngine wires the engine to its store and collaborators. Protocol fees
// are paid out of the vault into feeAccount and withdrawn from there through
// tokens.
func NewEngine(store *Store, v vault.Vault, gate nativecommon.Authorizer, tokens TokenTransferrer, feeAccount ethcommon.Address) (*Engine, error) {
	if store == nil {
		return nil, errNilStore
	}
	if v == nil {
		return nil, errNilVault
	}
	if tokens == nil {
		return nil, errNilTokens
	}
	if feeAccount == (ethcommon.Address{}) {
		return nil, ErrInvalidFeeAccount
	}
	return &Engine{
		store:      store,
		vault:      v,
		gate:       gate,
		tokens:     tokens,
		feeAccount: feeAccount,
		emitter:    events.NoopEmitter{},
		nowFn:      time.Now,
		logger:     slog.Default(),
		metrics:    observability.Surplus(),
		tracer:     otel.Tracer("native/surplus"),
	}, nil
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for deadline checks.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = clock
}

// SetLogger overrides the structured logger. Passing nil restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// FeeAccount returns the address protocol fees are held under until withdrawn.
func (e *Engine) FeeAccount() ethcommon.Address { return e.feeAccount }

// ProtocolFeePercentage returns the fee fraction applied to donations.
func (e *Engine) ProtocolFeePercentage() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Config().ProtocolFeePercentage
}

// MaxProtocolFeePercentage returns the immutable ceiling.
func (e *Engine) MaxProtocolFeePercentage() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Config().MaxProtocolFeePercentage
}

// FeeSweeper returns the current recipient of withdrawn fees.
func (e *Engine) FeeSweeper() ethcommon.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Config().FeeSweeper
}

// CollectedProtocolFees returns the unwithdrawn fees recorded for token.
func (e *Engine) CollectedProtocolFees(token ethcommon.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.CollectedFees(token)
}

// QuoteDonation previews the fee split the current percentage would apply to
// amounts.
func (e *Engine) QuoteDonation(amounts types.TokenAmounts) (protocolFees, net types.TokenAmounts, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fees.Split(amounts, e.store.Config().ProtocolFeePercentage)
}

// SwapExactInAndDonateSurplus swaps exactly ExactAmountIn of TokenIn and
// donates the fee-adjusted DonationAmounts to the same pool in one unit.
func (e *Engine) SwapExactInAndDonateSurplus(ctx context.Context, caller ethcommon.Address, p SwapExactInParams) (*SwapDonateResult, error) {
	return e.swapAndDonate(ctx, caller, swapPlan{
		action:          ActionSwapExactIn,
		pool:            p.Pool,
		tokenIn:         p.TokenIn,
		tokenOut:        p.TokenOut,
		kind:            vault.ExactIn,
		amountGiven:     p.ExactAmountIn,
		limit:           p.MinAmountOut,
		deadline:        p.Deadline,
		donationAmounts: p.DonationAmounts,
		transferHints:   p.TransferHints,
		userData:        p.UserData,
	})
}

// SwapExactOutAndDonateSurplus buys exactly ExactAmountOut of TokenOut and
// donates the fee-adjusted DonationAmounts to the same pool in one unit.
func (e *Engine) SwapExactOutAndDonateSurplus(ctx context.Context, caller ethcommon.Address, p SwapExactOutParams) (*SwapDonateResult, error) {
	return e.swapAndDonate(ctx, caller, swapPlan{
		action:          ActionSwapExactOut,
		pool:            p.Pool,
		tokenIn:         p.TokenIn,
		tokenOut:        p.TokenOut,
		kind:            vault.ExactOut,
		amountGiven:     p.ExactAmountOut,
		limit:           p.MaxAmountIn,
		deadline:        p.Deadline,
		donationAmounts: p.DonationAmounts,
		transferHints:   p.TransferHints,
		userData:        p.UserData,
	})
}

func (e *Engine) swapAndDonate(ctx context.Context, caller ethcommon.Address, plan swapPlan) (*SwapDonateResult, error) {
	op := "swap_" + plan.kind.String() + "_and_donate"
	ctx, span := e.tracer.Start(ctx, "surplus."+op,
		trace.WithAttributes(
			attribute.String("surplus.pool", plan.pool.Hex()),
			attribute.String("surplus.token_in", plan.tokenIn.Hex()),
			attribute.String("surplus.token_out", plan.tokenOut.Hex()),
		))
	defer span.End()
	start := time.Now()
	opID := uuid.NewString()

	result, err := e.executeSwap(ctx, caller, plan)
	e.observe(span, op, start, err)
	if err != nil {
		e.logger.Warn("surplus: swap and donate rejected",
			"op_id", opID,
			"operation", op,
			"caller", caller.Hex(),
			"pool", plan.pool.Hex(),
			"error", err)
		return nil, err
	}
	e.logger.Info("surplus: swap and donate settled",
		"op_id", opID,
		"operation", op,
		"caller", caller.Hex(),
		"pool", plan.pool.Hex(),
		"amount_in", result.AmountIn.Dec(),
		"amount_out", result.AmountOut.Dec(),
		"protocol_fees", result.ProtocolFees.String(),
		logging.MaskField("user_data", hexutil.Encode(plan.userData)))
	return result, nil
}

func (e *Engine) executeSwap(ctx context.Context, caller ethcommon.Address, plan swapPlan) (*SwapDonateResult, error) {
	var tokens []ethcommon.Address
	result, err := func() (*SwapDonateResult, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		var err error
		tokens, err = e.checkSwap(caller, plan)
		if err != nil {
			return nil, err
		}
		return e.settleSwap(ctx, caller, plan, tokens)
	}()
	if err != nil {
		return nil, err
	}

	e.recordFees(tokens, result.ProtocolFees)
	e.emit(events.SwapAndDonation{
		Pool:         plan.pool,
		TokenIn:      plan.tokenIn,
		TokenOut:     plan.tokenOut,
		AmountIn:     result.AmountIn,
		AmountOut:    result.AmountOut,
		NetDonations: result.NetDonations,
		ProtocolFees: result.ProtocolFees,
		UserData:     append([]byte(nil), plan.userData...),
	})
	return result, nil
}

// checkSwap validates plan against the pool before the vault is unlocked and
// returns the pool's tokens.
func (e *Engine) checkSwap(caller ethcommon.Address, plan swapPlan) ([]ethcommon.Address, error) {
	if err := nativecommon.Authorize(e.gate, caller, plan.action); err != nil {
		return nil, err
	}
	if e.nowFn().After(plan.deadline) {
		return nil, ErrSwapDeadline
	}
	if plan.amountGiven == nil || plan.amountGiven.IsZero() {
		return nil, vault.ErrAmountGivenZero
	}
	if plan.kind == vault.ExactOut && plan.limit == nil {
		return nil, ErrMaxAmountInRequired
	}
	minTrade, err := e.vault.MinimumTradeAmount(plan.pool)
	if err != nil {
		return nil, err
	}
	if plan.amountGiven.Lt(minTrade) {
		return nil, vault.ErrTradeAmountTooSmall
	}
	tokens, err := e.vault.PoolTokens(plan.pool)
	if err != nil {
		return nil, err
	}
	if len(plan.donationAmounts) != len(tokens) || len(plan.transferHints) != len(tokens) {
		return nil, ErrAmountsLength
	}
	inIdx, outIdx := indexOf(tokens, plan.tokenIn), indexOf(tokens, plan.tokenOut)
	if inIdx < 0 || outIdx < 0 || inIdx == outIdx {
		return nil, vault.ErrTokenNotRegistered
	}
	return tokens, nil
}

func (e *Engine) settleSwap(ctx context.Context, caller ethcommon.Address, plan swapPlan, tokens []ethcommon.Address) (*SwapDonateResult, error) {
	inIdx, outIdx := indexOf(tokens, plan.tokenIn), indexOf(tokens, plan.tokenOut)
	protocolFees, net, err := fees.Split(plan.donationAmounts, e.store.Config().ProtocolFeePercentage)
	if err != nil {
		return nil, err
	}

	jr := e.store.begin()
	var result *SwapDonateResult
	err = e.vault.Unlock(ctx, func(ctx context.Context, s vault.Session) error {
		if err := s.Donate(ctx, plan.pool, net); err != nil {
			return err
		}
		amountIn, amountOut, err := s.Swap(ctx, vault.SwapRequest{
			Pool:        plan.pool,
			TokenIn:     plan.tokenIn,
			TokenOut:    plan.tokenOut,
			Kind:        plan.kind,
			AmountGiven: plan.amountGiven,
			Limit:       plan.limit,
		})
		if err != nil {
			return err
		}
		if err := checkSwapAmounts(plan, amountIn, amountOut); err != nil {
			return err
		}

		required := plan.donationAmounts.Clone()
		if _, overflow := required[inIdx].AddOverflow(required[inIdx], amountIn); overflow {
			return vault.ErrAmountOverflow
		}
		owed := types.NewTokenAmounts(len(tokens))
		owed[outIdx].Set(amountOut)

		st := newSettlement(s, caller, e.feeAccount)
		if err := st.declareHinted(tokens, plan.transferHints, required, owed, protocolFees); err != nil {
			return err
		}
		refunds, err := st.settle(ctx)
		if err != nil {
			return err
		}
		if err := creditFees(jr, tokens, protocolFees); err != nil {
			return err
		}
		if err := jr.commit(); err != nil {
			return err
		}
		result = &SwapDonateResult{
			AmountIn:     new(uint256.Int).Set(amountIn),
			AmountOut:    new(uint256.Int).Set(amountOut),
			NetDonations: net,
			ProtocolFees: protocolFees,
			Refunds:      refunds,
		}
		return nil
	})
	if err == nil && result == nil {
		err = errUnitSkipped
	}
	if err != nil {
		return nil, e.abort(jr, err)
	}
	return result, nil
}

// checkSwapAmounts re-checks the amounts a session reported against the
// request that produced them.
func checkSwapAmounts(plan swapPlan, amountIn, amountOut *uint256.Int) error {
	if amountIn == nil || amountOut == nil {
		return fmt.Errorf("%w: swap reported no amounts", vault.ErrBalanceNotSettled)
	}
	switch plan.kind {
	case vault.ExactIn:
		if !amountIn.Eq(plan.amountGiven) {
			return fmt.Errorf("%w: swap consumed %s, requested %s", vault.ErrBalanceNotSettled, amountIn.Dec(), plan.amountGiven.Dec())
		}
		limit := new(uint256.Int).Set(amountOrZero(plan.limit))
		if amountOut.Lt(limit) {
			return &vault.SwapLimitError{Kind: vault.ExactIn, Amount: new(uint256.Int).Set(amountOut), Limit: limit}
		}
	case vault.ExactOut:
		if !amountOut.Eq(plan.amountGiven) {
			return fmt.Errorf("%w: swap returned %s, requested %s", vault.ErrBalanceNotSettled, amountOut.Dec(), plan.amountGiven.Dec())
		}
		if plan.limit != nil && amountIn.Gt(plan.limit) {
			return &vault.SwapLimitError{Kind: vault.ExactOut, Amount: new(uint256.Int).Set(amountIn), Limit: new(uint256.Int).Set(plan.limit)}
		}
	default:
		return fmt.Errorf("surplus: unknown swap kind %d", plan.kind)
	}
	return nil
}

// Donate adds the fee-adjusted DonationAmounts to the pool. The caller must
// have moved exactly DonationAmounts into the vault; any excess is kept by
// the vault and not refunded.
func (e *Engine) Donate(ctx context.Context, caller ethcommon.Address, p DonateParams) (*DonateResult, error) {
	const op = "donate"
	ctx, span := e.tracer.Start(ctx, "surplus."+op,
		trace.WithAttributes(attribute.String("surplus.pool", p.Pool.Hex())))
	defer span.End()
	start := time.Now()
	opID := uuid.NewString()

	result, err := e.executeDonate(ctx, caller, p)
	e.observe(span, op, start, err)
	if err != nil {
		e.logger.Warn("surplus: donation rejected",
			"op_id", opID,
			"caller", caller.Hex(),
			"pool", p.Pool.Hex(),
			"error", err)
		return nil, err
	}
	e.logger.Info("surplus: donation settled",
		"op_id", opID,
		"caller", caller.Hex(),
		"pool", p.Pool.Hex(),
		"net_donations", result.NetDonations.String(),
		"protocol_fees", result.ProtocolFees.String(),
		logging.MaskField("user_data", hexutil.Encode(p.UserData)))
	return result, nil
}

func (e *Engine) executeDonate(ctx context.Context, caller ethcommon.Address, p DonateParams) (*DonateResult, error) {
	var tokens []ethcommon.Address
	result, err := func() (*DonateResult, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := nativecommon.Authorize(e.gate, caller, ActionDonate); err != nil {
			return nil, err
		}
		var err error
		tokens, err = e.vault.PoolTokens(p.Pool)
		if err != nil {
			return nil, err
		}
		if len(p.DonationAmounts) != len(tokens) {
			return nil, ErrAmountsLength
		}
		return e.settleDonation(ctx, caller, p, tokens)
	}()
	if err != nil {
		return nil, err
	}

	e.recordFees(tokens, result.ProtocolFees)
	e.emit(events.Donation{
		Pool:         p.Pool,
		NetDonations: result.NetDonations,
		ProtocolFees: result.ProtocolFees,
		UserData:     append([]byte(nil), p.UserData...),
	})
	return result, nil
}

func (e *Engine) settleDonation(ctx context.Context, caller ethcommon.Address, p DonateParams, tokens []ethcommon.Address) (*DonateResult, error) {
	protocolFees, net, err := fees.Split(p.DonationAmounts, e.store.Config().ProtocolFeePercentage)
	if err != nil {
		return nil, err
	}

	jr := e.store.begin()
	settled := false
	err = e.vault.Unlock(ctx, func(ctx context.Context, s vault.Session) error {
		if err := s.Donate(ctx, p.Pool, net); err != nil {
			return err
		}
		st := newSettlement(s, caller, e.feeAccount)
		st.declareExact(tokens, p.DonationAmounts.Clone(), protocolFees)
		if _, err := st.settle(ctx); err != nil {
			return err
		}
		if err := creditFees(jr, tokens, protocolFees); err != nil {
			return err
		}
		if err := jr.commit(); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err == nil && !settled {
		err = errUnitSkipped
	}
	if err != nil {
		return nil, e.abort(jr, err)
	}
	return &DonateResult{NetDonations: net, ProtocolFees: protocolFees}, nil
}

// SetProtocolFeePercentage updates the fee fraction applied to donations.
// A nil pct is treated as zero.
func (e *Engine) SetProtocolFeePercentage(ctx context.Context, caller ethcommon.Address, pct *uint256.Int) error {
	const op = "set_protocol_fee_percentage"
	_, span := e.tracer.Start(ctx, "surplus."+op)
	defer span.End()
	start := time.Now()

	e.mu.Lock()
	err := func() error {
		if err := nativecommon.Authorize(e.gate, caller, ActionSetProtocolFeePercentage); err != nil {
			return err
		}
		next := new(uint256.Int)
		if pct != nil {
			next.Set(pct)
		}
		cfg := e.store.Config()
		if next.Gt(cfg.MaxProtocolFeePercentage) {
			return &ProtocolFeePercentageAboveLimitError{Percentage: next, Max: cfg.MaxProtocolFeePercentage}
		}
		cfg.ProtocolFeePercentage = next
		jr := e.store.begin()
		jr.setConfig(cfg)
		return jr.commit()
	}()
	e.mu.Unlock()

	e.observe(span, op, start, err)
	if err != nil {
		return err
	}
	applied := new(uint256.Int)
	if pct != nil {
		applied.Set(pct)
	}
	e.logger.Info("surplus: protocol fee percentage updated",
		"caller", caller.Hex(),
		"percentage", fees.FormatPercentage(applied))
	e.emit(events.ProtocolFeePercentageChanged{Percentage: applied})
	return nil
}

// SetFeeSweeper updates the recipient of withdrawn fees.
func (e *Engine) SetFeeSweeper(ctx context.Context, caller, sweeper ethcommon.Address) error {
	const op = "set_fee_sweeper"
	_, span := e.tracer.Start(ctx, "surplus."+op)
	defer span.End()
	start := time.Now()

	e.mu.Lock()
	err := func() error {
		if err := nativecommon.Authorize(e.gate, caller, ActionSetFeeSweeper); err != nil {
			return err
		}
		if sweeper == (ethcommon.Address{}) {
			return ErrInvalidFeeSweeper
		}
		cfg := e.store.Config()
		cfg.FeeSweeper = sweeper
		jr := e.store.begin()
		jr.setConfig(cfg)
		return jr.commit()
	}()
	e.mu.Unlock()

	e.observe(span, op, start, err)
	if err != nil {
		return err
	}
	e.logger.Info("surplus: fee sweeper updated", "caller", caller.Hex(), "sweeper", sweeper.Hex())
	e.emit(events.FeeSweeperChanged{Sweeper: sweeper})
	return nil
}

// WithdrawCollectedProtocolFees pays every collected fee for token to the
// current sweeper and resets the ledger entry. Anyone may call it; the event
// is emitted even when nothing was collected.
func (e *Engine) WithdrawCollectedProtocolFees(ctx context.Context, token ethcommon.Address) (*uint256.Int, error) {
	const op = "withdraw_protocol_fees"
	_, span := e.tracer.Start(ctx, "surplus."+op,
		trace.WithAttributes(attribute.String("surplus.token", token.Hex())))
	defer span.End()
	start := time.Now()

	e.mu.Lock()
	sweeper := e.store.Config().FeeSweeper
	amount, err := func() (*uint256.Int, error) {
		jr := e.store.begin()
		amount, err := jr.resetFee(token)
		if err != nil {
			return nil, err
		}
		if err := jr.commit(); err != nil {
			return nil, err
		}
		if amount.IsZero() {
			return amount, nil
		}
		if err := e.tokens.Transfer(token, e.feeAccount, sweeper, amount); err != nil {
			return nil, e.abort(jr, err)
		}
		return amount, nil
	}()
	e.mu.Unlock()

	e.observe(span, op, start, err)
	if err != nil {
		return nil, err
	}
	e.logger.Info("surplus: protocol fees withdrawn",
		"token", token.Hex(),
		"sweeper", sweeper.Hex(),
		"amount", amount.Dec())
	e.emit(events.ProtocolFeesWithdrawn{Token: token, Recipient: sweeper, Amount: new(uint256.Int).Set(amount)})
	return amount, nil
}

func creditFees(jr *journal, tokens []ethcommon.Address, protocolFees types.TokenAmounts) error {
	for i, token := range tokens {
		fee := protocolFees.At(i)
		if fee.IsZero() {
			continue
		}
		if err := jr.creditFee(token, fee); err != nil {
			return err
		}
	}
	return nil
}

// abort undoes a committed journal after the enclosing unit failed.
func (e *Engine) abort(jr *journal, cause error) error {
	if err := jr.rollback(); err != nil {
		e.logger.Error("surplus: fee ledger rollback failed", "error", err, "reason", cause)
		return errors.Join(cause, err)
	}
	return cause
}

func (e *Engine) recordFees(tokens []ethcommon.Address, protocolFees types.TokenAmounts) {
	for i, token := range tokens {
		e.metrics.RecordFeeCollected(token.Hex(), protocolFees.At(i))
	}
}

func (e *Engine) observe(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, op)
	}
	e.metrics.Observe(op, time.Since(start), err)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
	observability.Events().RecordEvent(evt.EventType())
}

func indexOf(tokens []ethcommon.Address, token ethcommon.Address) int {
	for i, t := range tokens {
		if t == token {
			return i
		}
	}
	return -1
}
