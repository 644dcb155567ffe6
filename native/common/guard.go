package common

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrSenderNotAllowed = errors.New("sender not allowed")

// Authorizer is the capability check consulted before every state-changing
// entry point. Implementations decide per caller and action identifier.
type Authorizer interface {
	IsAuthorized(caller ethcommon.Address, action string) bool
}

// Authorize fails closed: a nil authorizer or an empty action denies the call.
func Authorize(a Authorizer, caller ethcommon.Address, action string) error {
	if a == nil || action == "" {
		return ErrSenderNotAllowed
	}
	if !a.IsAuthorized(caller, action) {
		return ErrSenderNotAllowed
	}
	return nil
}
