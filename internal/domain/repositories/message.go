package repositories

import (
	"context"

	"github.com/google/uuid"

	"msgtree/internal/domain/models"
)

// MessageReader defines the query primitives of the message store.
// All reads exclude soft-deleted messages unless includeDeleted (or the filter) asks otherwise.
type MessageReader interface {
	// GetMessage retrieves a message by ID
	// Returns domain.ErrNotFound if absent (or deleted and includeDeleted is false)
	GetMessage(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Message, error)

	// GetChildren retrieves the direct replies to a message, ordered by (created_date, id)
	GetChildren(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]models.Message, error)

	// GetTreeMessages retrieves every message of a tree in one query, ordered by (created_date, id)
	GetTreeMessages(ctx context.Context, treeID uuid.UUID, filter models.TreeFilter) ([]models.Message, error)

	// QueryMessages runs a filtered, ordered, limited scan over the (created_date, id) index
	QueryMessages(ctx context.Context, q *models.MessageQuery) ([]models.Message, error)
}

// MessageWriter defines the write operations the engine relies on.
// Message creation exists for seeding and tests; ranking and workflow logic live elsewhere.
type MessageWriter interface {
	// CreateUser stores an author identity
	CreateUser(ctx context.Context, user *models.User) error

	// CreateMessage stores a message exactly as given (tree id and depth are set by the caller)
	CreateMessage(ctx context.Context, msg *models.Message) error

	// MarkDeleted sets the deleted flag on the given messages.
	// Messages already deleted are left untouched; returns how many rows changed.
	MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// SchemaManager creates the store layout (tables and load-bearing indexes)
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// MessageRepository is the full message store
type MessageRepository interface {
	MessageReader
	MessageWriter
	SchemaManager
}

// Store bundles a message repository with its transaction manager and lifecycle
type Store interface {
	Messages() MessageRepository
	Transactions() TransactionManager
	Close() error
}
