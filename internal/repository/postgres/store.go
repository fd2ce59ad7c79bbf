package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"msgtree/internal/domain/repositories"
)

// Store bundles the pgx pool with the message repository and transaction manager
type Store struct {
	pool     *pgxpool.Pool
	messages repositories.MessageRepository
	txs      repositories.TransactionManager
}

// Open connects to PostgreSQL and builds the repositories for the given table prefix
func Open(ctx context.Context, databaseURL, tablePrefix string, logger *slog.Logger) (*Store, error) {
	pool, err := CreateConnectionPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	cfg := &RepositoryConfig{
		Pool:   pool,
		Tables: NewTableNames(tablePrefix),
		Logger: logger,
	}

	return &Store{
		pool:     pool,
		messages: NewMessageRepository(cfg),
		txs:      NewTransactionManager(pool, logger),
	}, nil
}

func (s *Store) Messages() repositories.MessageRepository       { return s.messages }
func (s *Store) Transactions() repositories.TransactionManager { return s.txs }

// Close releases the pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
