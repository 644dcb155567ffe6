package bank

import (
	"errors"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when the sender holds less than the
	// transfer amount.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would exceed 2^256-1.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
	// ErrZeroAddress is returned when a transfer or mint targets the zero address.
	ErrZeroAddress = errors.New("bank: zero address")
)

// Ledger tracks fungible token balances per holder. Transfers either apply in
// full or leave both balances untouched. It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[ethcommon.Address]map[ethcommon.Address]*uint256.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int)}
}

// BalanceOf returns a copy of holder's balance of token.
func (l *Ledger) BalanceOf(token, holder ethcommon.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[token][holder]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// Mint credits amount of token to holder. It exists for genesis seeding and
// tests; production deployments fund accounts through transfers.
func (l *Ledger) Mint(token, to ethcommon.Address, amount *uint256.Int) error {
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(token, to), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	l.setLocked(token, to, next)
	return nil
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token, from, to ethcommon.Address, amount *uint256.Int) error {
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balanceLocked(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: token %s holder %s has %s, needs %s", ErrInsufficientBalance, token.Hex(), from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(token, to), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	l.setLocked(token, from, new(uint256.Int).Sub(fromBal, amount))
	l.setLocked(token, to, toBal)
	return nil
}

func (l *Ledger) balanceLocked(token, holder ethcommon.Address) *uint256.Int {
	if bal, ok := l.balances[token][holder]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

func (l *Ledger) setLocked(token, holder ethcommon.Address, amount *uint256.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[ethcommon.Address]*uint256.Int)
		l.balances[token] = holders
	}
	if amount.IsZero() {
		delete(holders, holder)
		return
	}
	holders[holder] = amount
}
