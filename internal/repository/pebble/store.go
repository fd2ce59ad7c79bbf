// Package pebble implements the message store on an embedded Pebble key-value database.
// Messages are JSON values; secondary indexes are empty-valued keys ordered by
// (created_date, id) so every query is a bounded range scan.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"msgtree/internal/domain"
	"msgtree/internal/domain/repositories"
)

// reader is implemented by *pebble.DB, *pebble.Snapshot and indexed *pebble.Batch
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type txContextKey string

const txKey txContextKey = "pebble_tx"

// txState is the view a transaction runs against; batch is nil for read transactions
type txState struct {
	r     reader
	batch *pebble.Batch
}

// Options configures Open
type Options struct {
	// InMemory keeps the database in memory (tests, ephemeral runs)
	InMemory bool
	// DisableWAL trades durability for write throughput
	DisableWAL bool
}

// Store owns the pebble handle and hands out the repository and transaction manager
type Store struct {
	db     *pebble.DB
	logger *slog.Logger
	// writeMu serializes write transactions so read-check-write sequences stay atomic
	writeMu sync.Mutex

	messages repositories.MessageRepository
	txs      repositories.TransactionManager
}

// Open opens or creates the database at path
func Open(path string, opts Options, logger *slog.Logger) (*Store, error) {
	pebbleOpts := &pebble.Options{DisableWAL: opts.DisableWAL}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble db %q: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	s.messages = &PebbleMessageRepository{store: s, logger: logger}
	s.txs = &TransactionManager{store: s}
	return s, nil
}

func (s *Store) Messages() repositories.MessageRepository       { return s.messages }
func (s *Store) Transactions() repositories.TransactionManager { return s.txs }

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// readerFor returns the transaction view in ctx, or the live database
func (s *Store) readerFor(ctx context.Context) reader {
	if st, ok := ctx.Value(txKey).(*txState); ok {
		return st.r
	}
	return s.db
}

// TransactionManager implements repositories.TransactionManager with snapshots and indexed batches
type TransactionManager struct {
	store *Store
}

// ReadTx runs fn against a point-in-time snapshot
func (tm *TransactionManager) ReadTx(ctx context.Context, fn repositories.TxFn) error {
	if _, ok := ctx.Value(txKey).(*txState); ok {
		return fn(ctx)
	}

	snap := tm.store.db.NewSnapshot()
	defer snap.Close()

	return fn(context.WithValue(ctx, txKey, &txState{r: snap}))
}

// ExecTx runs fn against an indexed batch that is committed atomically when fn succeeds.
// Reads inside fn observe the batch's own writes.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if st, ok := ctx.Value(txKey).(*txState); ok {
		if st.batch == nil {
			return fmt.Errorf("write inside read transaction: %w", domain.ErrValidation)
		}
		return fn(ctx)
	}

	tm.store.writeMu.Lock()
	defer tm.store.writeMu.Unlock()

	batch := tm.store.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(context.WithValue(ctx, txKey, &txState{r: batch, batch: batch})); err != nil {
		return err
	}

	if batch.Empty() {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		tm.store.logger.Error("pebble_apply_batch_failed", "error", err)
		return domain.NewStoreError("commit batch", err)
	}
	return nil
}

// storeErr wraps a pebble failure, passing context errors through
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewStoreError(op, err)
}
