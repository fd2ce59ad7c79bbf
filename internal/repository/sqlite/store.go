package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"msgtree/internal/domain/repositories"
)

// Store bundles the database handle with the message repository and transaction manager
type Store struct {
	db       *sql.DB
	messages repositories.MessageRepository
	txs      repositories.TransactionManager
}

// Open opens (creating if needed) the database file at path
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:       db,
		messages: NewMessageRepository(&RepositoryConfig{DB: db, Logger: logger}),
		txs:      NewTransactionManager(db, logger),
	}, nil
}

func (s *Store) Messages() repositories.MessageRepository       { return s.messages }
func (s *Store) Transactions() repositories.TransactionManager { return s.txs }

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
