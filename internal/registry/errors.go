// internal/registry/errors.go
package registry

import (
	"errors"
	"strings"
)

// Error kinds. A *RevertError always unwraps to exactly one of these.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrAlreadyActive       = errors.New("license already active")
	ErrNotPayable          = errors.New("not payable")
	ErrReverted            = errors.New("reverted")
)

// ErrInsufficientFunds is raised before execution when the sender cannot cover
// the value attached to a call. It is not a revert.
var ErrInsufficientFunds = errors.New("insufficient funds for transfer")

// Revert reasons produced by the registry.
const (
	ReasonWorkNotFound     = "Work does not exist"
	ReasonLicenseNotFound  = "License does not exist"
	ReasonOnlyCreator      = "Only creator can create licenses"
	ReasonNotOwner         = "Ownable: caller is not the owner"
	ReasonInsufficientPaid = "Insufficient payment"
	ReasonAlreadyActive    = "License already purchased"
	ReasonNotPayable       = "Function is not payable"
)

// RevertError is a failed state transition with a human readable reason.
type RevertError struct {
	Reason string
	kind   error
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.kind
}

func revert(kind error, reason string) *RevertError {
	return &RevertError{Reason: reason, kind: kind}
}

// RevertFromReason rebuilds a RevertError from a reason string reported by a
// remote ledger. Unknown reasons unwrap to ErrReverted.
func RevertFromReason(reason string) *RevertError {
	reason = strings.TrimSpace(reason)
	switch {
	case reason == ReasonWorkNotFound, reason == ReasonLicenseNotFound,
		strings.Contains(reason, "does not exist"):
		return revert(ErrNotFound, reason)
	case reason == ReasonOnlyCreator, reason == ReasonNotOwner,
		strings.HasPrefix(reason, "Ownable:"), strings.HasPrefix(reason, "Only "):
		return revert(ErrUnauthorized, reason)
	case reason == ReasonInsufficientPaid:
		return revert(ErrInsufficientPayment, reason)
	case reason == ReasonAlreadyActive, strings.Contains(reason, "already"):
		return revert(ErrAlreadyActive, reason)
	default:
		return revert(ErrReverted, reason)
	}
}

// ReasonOf returns the revert reason carried by err, if any.
func ReasonOf(err error) (string, bool) {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
