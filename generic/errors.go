/*
errors.go - Error types for the ledger primitives

PURPOSE:
  Sentinel errors for errors.Is() checks and structured errors that carry
  the numbers behind a failure. Domain packages wrap these with context.

USAGE:
    if errors.Is(err, generic.ErrInsufficientBalance) {
        var ibe *generic.InsufficientBalanceError
        errors.As(err, &ibe) // ibe.Available, ibe.Requested
    }

SEE ALSO:
  - ledger.go: Returns these errors
  - leave/errors.go: Domain errors for the request lifecycle
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. Retried writes hit this and can ignore it.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	AccountID AccountID
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s: available %v, requested %v",
		e.EntityID, e.AccountID, e.Available.Value, e.Requested.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Shortfall is how much more balance the debit would have needed.
func (e *InsufficientBalanceError) Shortfall() Amount {
	return e.Requested.Sub(e.Available)
}
