/*
Package generic provides the ledger primitives the leave engine is built on.

PURPOSE:
  Domain-agnostic types for tracking a quantity that is granted, consumed and
  reset over time. The leave package uses them for day balances, but nothing
  here knows about requests, approvers or leave types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (e.g., 2.5 days)
  - Transaction: An immutable ledger entry recording a balance change
  - EntityID / AccountID: Who holds the balance, and which balance it is

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only offset
  2. Precision: Uses decimal.Decimal so half days never drift
  3. Type Safety: Distinct ID types prevent mixing entity and account IDs

USAGE:
  tx := generic.Transaction{
      EntityID:  "emp-123",
      AccountID: "annual",
      Delta:     generic.NewAmount(1.5, generic.UnitDays),
      Type:      generic.TxGrant,
  }

SEE ALSO:
  - ledger.go: Balance derivation from transactions
  - store.go: Transaction persistence interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// MustParseDecimal parses s, returning zero when s is not a number.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type AccountID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a balance
// =============================================================================

type TransactionType string

const (
	TxGrant          TransactionType = "grant"          // Periodic accrual
	TxConsumption    TransactionType = "consumption"    // Approved request
	TxReconciliation TransactionType = "reconciliation" // Period-end reset
	TxAdjustment     TransactionType = "adjustment"     // Opening balance or manual correction
	TxReversal       TransactionType = "reversal"       // Reimbursement of a consumption
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	AccountID      AccountID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy string
	CreatedAt TimePoint
}
