/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  The boundary between balance logic and the database. Implementations
  keep append-only semantics: there is no Update and no Delete.

IDEMPOTENCY:
  A transaction may carry an idempotency key. Writing a key twice is
  rejected, which is what makes accrual re-runs and retried approvals safe.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - store/memory: In-memory, for tests and local runs

Both expose the ledger inside their unit of work (leave.StoreTx), so a
balance check and the append that depends on it commit together.
*/
package generic

import "context"

// Store handles persistence of transactions.
// Corrections are made with offsetting transactions, never edits.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the key exists.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions for entity+account, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// Exists checks if an idempotency key has been written.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
