package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles store transactions.
// Repositories pick up the transaction from the context, so every read issued
// inside fn sees the same view of the store.
type TransactionManager interface {
	// ExecTx executes a function within a read-write transaction
	ExecTx(ctx context.Context, fn TxFn) error

	// ReadTx executes a function within a consistent read-only view
	ReadTx(ctx context.Context, fn TxFn) error
}
