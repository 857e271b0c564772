/*
ledger.go - Append-only transaction log

PURPOSE:
  The ledger is the only source of truth for balances. Every opening
  balance, accrual, debit, reimbursement and yearly reset is a transaction,
  and a balance is the sum of the deltas. There is no stored balance column
  to drift out of sync.

INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: A key is written at most once.

EXAMPLE FLOW:
  1. Opening balance:      TxAdjustment   +10
  2. March accrual:        TxGrant        +1.5
  3. Request approved:     TxConsumption  -3
  4. Cancelled early:      TxReversal     +3
  5. Year end, no carry:   TxReconciliation  (brings balance to 1.5)

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/balance.go: Leave-specific debit/credit/accrue/reset
*/
package generic

import "context"

// Ledger reads and writes transactions for one unit of work.
type Ledger interface {
	Append(ctx context.Context, tx Transaction) error
	Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// Balance is the sum of every delta for entity+account.
	Balance(ctx context.Context, entityID EntityID, accountID AccountID, unit Unit) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, accountID)
}

func (l *DefaultLedger) Balance(ctx context.Context, entityID EntityID, accountID AccountID, unit Unit) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, accountID)
	if err != nil {
		return Amount{}, err
	}
	return sum(txs, unit), nil
}

func sum(txs []Transaction, unit Unit) Amount {
	balance := NewAmount(0, unit)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance
}
