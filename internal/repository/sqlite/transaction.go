package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"msgtree/internal/domain"
	"msgtree/internal/domain/repositories"
)

// TransactionManager implements repositories.TransactionManager on database/sql
type TransactionManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *sql.DB, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{db: db, logger: logger}
}

// ExecTx executes fn within a transaction
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.run(ctx, fn)
}

// ReadTx executes fn within a transaction. SQLite gives every transaction a
// consistent view of the database from its first read, so no options are needed.
func (tm *TransactionManager) ReadTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.run(ctx, fn)
}

func (tm *TransactionManager) run(ctx context.Context, fn repositories.TxFn) error {
	if GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("commit transaction", err)
	}
	return nil
}
