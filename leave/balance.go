package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCE LEDGER - Leave day balances over the append-only ledger
// =============================================================================

// BalanceLedger moves day balances for one unit of work. Build it from the
// StoreTx the caller is already in so the balance check and the append are
// isolated from concurrent approvals and accrual runs.
type BalanceLedger struct {
	ledger generic.Ledger
	now    generic.TimePoint
	actor  string
}

func NewBalanceLedger(store generic.Store, today generic.TimePoint, actor string) *BalanceLedger {
	return &BalanceLedger{ledger: generic.NewLedger(store), now: today, actor: actor}
}

func (b *BalanceLedger) Balance(ctx context.Context, employeeID, leaveTypeID string) (decimal.Decimal, error) {
	bal, err := b.ledger.Balance(ctx, generic.EntityID(employeeID), generic.AccountID(leaveTypeID), generic.UnitDays)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load balance %s/%s: %w", employeeID, leaveTypeID, err)
	}
	return bal.Value, nil
}

// Debit charges an approved request. It fails with a
// *generic.InsufficientBalanceError when the balance is short, and with
// generic.ErrDuplicateIdempotencyKey when the request was already debited.
func (b *BalanceLedger) Debit(ctx context.Context, employeeID, leaveTypeID string, amount decimal.Decimal, requestID string) error {
	current, err := b.Balance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return err
	}
	if current.LessThan(amount) {
		return &generic.InsufficientBalanceError{
			EntityID:  generic.EntityID(employeeID),
			AccountID: generic.AccountID(leaveTypeID),
			Available: days(current),
			Requested: days(amount),
		}
	}
	return b.append(ctx, generic.Transaction{
		EntityID:       generic.EntityID(employeeID),
		AccountID:      generic.AccountID(leaveTypeID),
		Delta:          days(amount.Neg()),
		Type:           generic.TxConsumption,
		ReferenceID:    requestID,
		Reason:         "leave approved",
		IdempotencyKey: "debit-" + requestID,
	})
}

// Credit reimburses days to a request's balance.
func (b *BalanceLedger) Credit(ctx context.Context, employeeID, leaveTypeID string, amount decimal.Decimal, requestID, reason string) error {
	return b.append(ctx, generic.Transaction{
		EntityID:       generic.EntityID(employeeID),
		AccountID:      generic.AccountID(leaveTypeID),
		Delta:          days(amount),
		Type:           generic.TxReversal,
		ReferenceID:    requestID,
		Reason:         reason,
		IdempotencyKey: "credit-" + requestID,
	})
}

// Accrue adds one period's accrual. Each (employee, type, period) is applied
// at most once; a repeat returns applied=false.
func (b *BalanceLedger) Accrue(ctx context.Context, employeeID, leaveTypeID string, amount decimal.Decimal, period generic.Period) (bool, error) {
	err := b.append(ctx, generic.Transaction{
		EntityID:       generic.EntityID(employeeID),
		AccountID:      generic.AccountID(leaveTypeID),
		Delta:          days(amount),
		Type:           generic.TxGrant,
		Reason:         "monthly accrual " + period.Key(),
		IdempotencyKey: fmt.Sprintf("accrue-%s-%s-%s", employeeID, leaveTypeID, period.Key()),
	})
	return applied(err)
}

// ResetYearly sets the balance to newValue by appending the difference.
// Each (employee, type, year) is reset at most once.
func (b *BalanceLedger) ResetYearly(ctx context.Context, employeeID, leaveTypeID string, newValue decimal.Decimal, year generic.Period) (bool, error) {
	current, err := b.Balance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return false, err
	}
	err = b.append(ctx, generic.Transaction{
		EntityID:       generic.EntityID(employeeID),
		AccountID:      generic.AccountID(leaveTypeID),
		Delta:          days(newValue.Sub(current)),
		Type:           generic.TxReconciliation,
		Reason:         "yearly reset " + year.Key(),
		IdempotencyKey: fmt.Sprintf("reset-%s-%s-%s", employeeID, leaveTypeID, year.Key()),
		Metadata:       map[string]string{"previous": current.String(), "new": newValue.String()},
	})
	return applied(err)
}

// Provision records an opening balance, which also makes the account visible
// to Balances and to the accrual job. Re-provisioning returns applied=false.
func (b *BalanceLedger) Provision(ctx context.Context, employeeID, leaveTypeID string, opening decimal.Decimal) (bool, error) {
	err := b.append(ctx, generic.Transaction{
		EntityID:       generic.EntityID(employeeID),
		AccountID:      generic.AccountID(leaveTypeID),
		Delta:          days(opening),
		Type:           generic.TxAdjustment,
		Reason:         "opening balance",
		IdempotencyKey: fmt.Sprintf("provision-%s-%s", employeeID, leaveTypeID),
	})
	return applied(err)
}

func (b *BalanceLedger) append(ctx context.Context, tx generic.Transaction) error {
	tx.ID = generic.TransactionID(uuid.NewString())
	tx.EffectiveAt = b.now
	tx.CreatedAt = b.now
	tx.CreatedBy = b.actor
	return b.ledger.Append(ctx, tx)
}

func applied(err error) (bool, error) {
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return false, nil
	}
	return err == nil, err
}

func days(v decimal.Decimal) generic.Amount {
	return generic.NewAmountFromDecimal(v, generic.UnitDays)
}
