package common

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// AnyAction grants a caller every action when passed to AllowList.Grant.
const AnyAction = "*"

// AllowList is an in-memory Authorizer keyed by action identifier. It is safe
// for concurrent use.
type AllowList struct {
	mu     sync.RWMutex
	grants map[string]map[ethcommon.Address]struct{}
}

// NewAllowList returns an empty allow list that denies everything.
func NewAllowList() *AllowList {
	return &AllowList{grants: make(map[string]map[ethcommon.Address]struct{})}
}

// Grant allows caller to perform each of the supplied actions.
func (l *AllowList) Grant(caller ethcommon.Address, actions ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, action := range actions {
		set, ok := l.grants[action]
		if !ok {
			set = make(map[ethcommon.Address]struct{})
			l.grants[action] = set
		}
		set[caller] = struct{}{}
	}
}

// Revoke removes the supplied actions from caller. Revoking an action that was
// never granted is a no-op.
func (l *AllowList) Revoke(caller ethcommon.Address, actions ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, action := range actions {
		if set, ok := l.grants[action]; ok {
			delete(set, caller)
		}
	}
}

// IsAuthorized implements Authorizer.
func (l *AllowList) IsAuthorized(caller ethcommon.Address, action string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.grants[AnyAction][caller]; ok {
		return true
	}
	_, ok := l.grants[action][caller]
	return ok
}
