package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"surplusrouter/core/types"
	"surplusrouter/native/bank"
)

type poolState struct {
	tokens   []ethcommon.Address
	index    map[ethcommon.Address]int
	balances types.TokenAmounts
	curve    Curve
	minTrade *uint256.Int
}

func (p *poolState) clone() *poolState {
	return &poolState{
		tokens:   p.tokens,
		index:    p.index,
		balances: p.balances.Clone(),
		curve:    p.curve,
		minTrade: p.minTrade,
	}
}

// Engine is the in-memory reference Vault. Token custody is delegated to a
// bank ledger under the engine's own address; reserves track how much of each
// token the vault has already accounted for, so Settle can measure what a
// caller transferred in since.
//
// Units of work are serialized. The callback passed to Unlock must not call
// Unlock again.
type Engine struct {
	unit sync.Mutex

	mu       sync.RWMutex
	address  ethcommon.Address
	bank     *bank.Ledger
	pools    map[ethcommon.Address]*poolState
	reserves map[ethcommon.Address]*uint256.Int
}

// NewEngine constructs a vault holding custody under address in ledger.
func NewEngine(address ethcommon.Address, ledger *bank.Ledger) *Engine {
	return &Engine{
		address:  address,
		bank:     ledger,
		pools:    make(map[ethcommon.Address]*poolState),
		reserves: make(map[ethcommon.Address]*uint256.Int),
	}
}

// Address returns the custody address of the vault.
func (e *Engine) Address() ethcommon.Address { return e.address }

// RegisterPool adds a pool with its canonical token order, pricing curve and
// minimum trade amount.
func (e *Engine) RegisterPool(pool ethcommon.Address, tokens []ethcommon.Address, curve Curve, minTrade *uint256.Int) error {
	if pool == (ethcommon.Address{}) || curve == nil {
		return fmt.Errorf("vault: pool address and curve required")
	}
	if len(tokens) < 2 {
		return ErrInvalidPoolTokens
	}
	index := make(map[ethcommon.Address]int, len(tokens))
	for i, token := range tokens {
		if token == (ethcommon.Address{}) {
			return ErrInvalidPoolTokens
		}
		if _, dup := index[token]; dup {
			return ErrInvalidPoolTokens
		}
		index[token] = i
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.pools[pool]; exists {
		return ErrPoolAlreadyRegistered
	}
	floor := new(uint256.Int)
	if minTrade != nil {
		floor.Set(minTrade)
	}
	e.pools[pool] = &poolState{
		tokens:   append([]ethcommon.Address(nil), tokens...),
		index:    index,
		balances: types.NewTokenAmounts(len(tokens)),
		curve:    curve,
		minTrade: floor,
	}
	return nil
}

// InitializePool seeds pool liquidity by transferring amounts from the
// funder into vault custody.
func (e *Engine) InitializePool(ctx context.Context, funder, pool ethcommon.Address, amounts types.TokenAmounts) error {
	return e.Unlock(ctx, func(ctx context.Context, s Session) error {
		tokens, err := e.PoolTokens(pool)
		if err != nil {
			return err
		}
		if len(amounts) != len(tokens) {
			return ErrAmountsLength
		}
		sess, ok := s.(*session)
		if !ok {
			return ErrVaultLocked
		}
		for i, token := range tokens {
			if err := sess.transfer(token, funder, e.address, amounts.At(i)); err != nil {
				return err
			}
		}
		if err := s.Donate(ctx, pool, amounts); err != nil {
			return err
		}
		for i, token := range tokens {
			if _, err := s.Settle(ctx, token, amounts.At(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PoolTokens implements Vault.
func (e *Engine) PoolTokens(pool ethcommon.Address) ([]ethcommon.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pools[pool]
	if !ok {
		return nil, ErrPoolNotRegistered
	}
	return append([]ethcommon.Address(nil), p.tokens...), nil
}

// PoolBalances returns a copy of the pool's balances in canonical order.
func (e *Engine) PoolBalances(pool ethcommon.Address) (types.TokenAmounts, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pools[pool]
	if !ok {
		return nil, ErrPoolNotRegistered
	}
	return p.balances.Clone(), nil
}

// MinimumTradeAmount implements Vault.
func (e *Engine) MinimumTradeAmount(pool ethcommon.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pools[pool]
	if !ok {
		return nil, ErrPoolNotRegistered
	}
	return new(uint256.Int).Set(p.minTrade), nil
}

// Reserves returns the amount of token the vault has accounted for.
func (e *Engine) Reserves(token ethcommon.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.reserves[token]; ok {
		return new(uint256.Int).Set(r)
	}
	return new(uint256.Int)
}

type vaultSnapshot struct {
	pools    map[ethcommon.Address]*poolState
	reserves map[ethcommon.Address]*uint256.Int
}

func (e *Engine) snapshot() vaultSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := vaultSnapshot{
		pools:    make(map[ethcommon.Address]*poolState, len(e.pools)),
		reserves: make(map[ethcommon.Address]*uint256.Int, len(e.reserves)),
	}
	for addr, p := range e.pools {
		snap.pools[addr] = p.clone()
	}
	for token, r := range e.reserves {
		snap.reserves[token] = new(uint256.Int).Set(r)
	}
	return snap
}

// restore rolls the vault back to snap and reverses the bank transfers the
// unit made, newest first. Balances the unit did not move are left alone.
func (e *Engine) restore(snap vaultSnapshot, s *session) error {
	var errs []error
	for i := len(s.transfers) - 1; i >= 0; i-- {
		t := s.transfers[i]
		if err := e.bank.Transfer(t.token, t.to, t.from, t.amount); err != nil {
			errs = append(errs, fmt.Errorf("vault: reverse %s transfer %s -> %s: %w", t.token.Hex(), t.from.Hex(), t.to.Hex(), err))
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools = snap.pools
	e.reserves = snap.reserves
	return errors.Join(errs...)
}

// Unlock implements Vault.
func (e *Engine) Unlock(ctx context.Context, fn func(ctx context.Context, s Session) error) (err error) {
	if fn == nil {
		return fmt.Errorf("vault: unlock callback required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.unit.Lock()
	defer e.unit.Unlock()

	snap := e.snapshot()
	s := &session{engine: e, deltas: make(map[ethcommon.Address]*big.Int)}
	defer func() {
		s.closed = true
		if r := recover(); r != nil {
			_ = e.restore(snap, s)
			panic(r)
		}
		if err != nil {
			if rerr := e.restore(snap, s); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	if err = fn(ctx, s); err != nil {
		return err
	}
	for _, delta := range s.deltas {
		if delta.Sign() != 0 {
			return ErrBalanceNotSettled
		}
	}
	return nil
}

type bankTransfer struct {
	token, from, to ethcommon.Address
	amount          *uint256.Int
}

// session accrues signed per-token deltas; positive means the caller owes
// the vault.
type session struct {
	engine    *Engine
	deltas    map[ethcommon.Address]*big.Int
	transfers []bankTransfer
	closed    bool
}

// transfer moves tokens in the bank and records the move so a failed unit
// can reverse it.
func (s *session) transfer(token, from, to ethcommon.Address, amount *uint256.Int) error {
	if err := s.engine.bank.Transfer(token, from, to, amount); err != nil {
		return err
	}
	if amount != nil && !amount.IsZero() {
		s.transfers = append(s.transfers, bankTransfer{token: token, from: from, to: to, amount: new(uint256.Int).Set(amount)})
	}
	return nil
}

func (s *session) accrue(token ethcommon.Address, amount *uint256.Int, debt bool) {
	delta, ok := s.deltas[token]
	if !ok {
		delta = new(big.Int)
		s.deltas[token] = delta
	}
	if debt {
		delta.Add(delta, amount.ToBig())
	} else {
		delta.Sub(delta, amount.ToBig())
	}
}

func (s *session) Swap(_ context.Context, req SwapRequest) (*uint256.Int, *uint256.Int, error) {
	if s.closed {
		return nil, nil, ErrVaultLocked
	}
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pools[req.Pool]
	if !ok {
		return nil, nil, ErrPoolNotRegistered
	}
	inIdx, okIn := p.index[req.TokenIn]
	outIdx, okOut := p.index[req.TokenOut]
	if !okIn || !okOut || inIdx == outIdx {
		return nil, nil, ErrTokenNotRegistered
	}
	if req.AmountGiven == nil || req.AmountGiven.IsZero() {
		return nil, nil, ErrAmountGivenZero
	}
	if req.AmountGiven.Lt(p.minTrade) {
		return nil, nil, ErrTradeAmountTooSmall
	}
	calculated, err := p.curve.ComputeSwap(req.Kind, req.AmountGiven, p.balances[inIdx], p.balances[outIdx])
	if err != nil {
		return nil, nil, err
	}
	limit := new(uint256.Int)
	if req.Limit != nil {
		limit.Set(req.Limit)
	}
	var amountIn, amountOut *uint256.Int
	switch req.Kind {
	case ExactIn:
		amountIn, amountOut = new(uint256.Int).Set(req.AmountGiven), calculated
		if amountOut.Lt(limit) {
			return nil, nil, &SwapLimitError{Kind: ExactIn, Amount: amountOut, Limit: limit}
		}
	case ExactOut:
		amountIn, amountOut = calculated, new(uint256.Int).Set(req.AmountGiven)
		if req.Limit != nil && amountIn.Gt(limit) {
			return nil, nil, &SwapLimitError{Kind: ExactOut, Amount: amountIn, Limit: limit}
		}
	default:
		return nil, nil, unknownKind(req.Kind)
	}
	if amountOut.IsZero() {
		return nil, nil, ErrTradeAmountTooSmall
	}
	if amountOut.Gt(p.balances[outIdx]) {
		return nil, nil, ErrInsufficientLiquidity
	}
	nextIn, overflow := new(uint256.Int).AddOverflow(p.balances[inIdx], amountIn)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	p.balances[inIdx] = nextIn
	p.balances[outIdx] = new(uint256.Int).Sub(p.balances[outIdx], amountOut)
	s.accrue(req.TokenIn, amountIn, true)
	s.accrue(req.TokenOut, amountOut, false)
	return new(uint256.Int).Set(amountIn), new(uint256.Int).Set(amountOut), nil
}

func (s *session) Donate(_ context.Context, pool ethcommon.Address, amounts types.TokenAmounts) error {
	if s.closed {
		return ErrVaultLocked
	}
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pools[pool]
	if !ok {
		return ErrPoolNotRegistered
	}
	if len(amounts) != len(p.tokens) {
		return ErrAmountsLength
	}
	next := p.balances.Clone()
	for i := range p.tokens {
		sum, overflow := new(uint256.Int).AddOverflow(next[i], amounts.At(i))
		if overflow {
			return ErrAmountOverflow
		}
		next[i] = sum
	}
	p.balances = next
	for i, token := range p.tokens {
		s.accrue(token, amounts.At(i), true)
	}
	return nil
}

func (s *session) Settle(_ context.Context, token ethcommon.Address, hint *uint256.Int) (*uint256.Int, error) {
	if s.closed {
		return nil, ErrVaultLocked
	}
	e := s.engine
	current := e.bank.BalanceOf(token, e.address)

	e.mu.Lock()
	defer e.mu.Unlock()
	before := new(uint256.Int)
	if r, ok := e.reserves[token]; ok {
		before.Set(r)
	}
	paid := new(uint256.Int)
	if current.Gt(before) {
		paid.Sub(current, before)
	}
	e.reserves[token] = current
	credit := paid
	if hint == nil {
		credit = new(uint256.Int)
	} else if hint.Lt(paid) {
		// Tokens beyond the hint stay in reserves without being credited.
		credit = new(uint256.Int).Set(hint)
	}
	s.accrue(token, credit, false)
	return new(uint256.Int).Set(credit), nil
}

func (s *session) SendTo(_ context.Context, token, to ethcommon.Address, amount *uint256.Int) error {
	if s.closed {
		return ErrVaultLocked
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	e := s.engine
	reserve := e.Reserves(token)
	if reserve.Lt(amount) {
		return ErrInsufficientLiquidity
	}
	if err := s.transfer(token, e.address, to, amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reserves[token] = reserve.Sub(reserve, amount)
	s.accrue(token, amount, true)
	return nil
}
