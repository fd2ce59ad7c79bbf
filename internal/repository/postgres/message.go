package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/repositories"
	"msgtree/internal/repository/sqlquery"
)

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// scanner defines the interface for row scanning (implemented by both pgx.Row and pgx.Rows)
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMessageRow scans a row selected with sqlquery.MessageColumns
func scanMessageRow(row scanner) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.ParentID,
		&msg.MessageTreeID,
		&msg.UserID,
		&msg.APIClientID,
		&msg.FrontendMessageID,
		&msg.Role,
		&msg.Text,
		&msg.Lang,
		&msg.Depth,
		&msg.ReviewCount,
		&msg.Reviewed,
		&msg.Deleted,
		&msg.Synthetic,
		&msg.ModelName,
		&msg.CreatedDate,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// collectMessages drains rows into a slice (never nil)
func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// GetMessage retrieves a message by ID
func (r *PostgresMessageRepository) GetMessage(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND ($2 OR deleted = FALSE)
	`, sqlquery.MessageColumns, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	msg, err := scanMessageRow(executor.QueryRow(ctx, query, id, includeDeleted))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil, storeErr("get message", err)
	}

	return msg, nil
}

// GetChildren retrieves the direct replies to a message
func (r *PostgresMessageRepository) GetChildren(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE parent_id = $1 AND ($2 OR deleted = FALSE)
		%s
	`, sqlquery.MessageColumns, r.tables.Messages, sqlquery.OrderBy(false))

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, parentID, includeDeleted)
	if err != nil {
		return nil, storeErr("get children", err)
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, storeErr("get children", err)
	}
	return messages, nil
}

// GetTreeMessages loads a whole tree through the message_tree_id index
func (r *PostgresMessageRepository) GetTreeMessages(ctx context.Context, treeID uuid.UUID, filter models.TreeFilter) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE message_tree_id = $1
		  AND ($2 OR deleted = FALSE)
		  AND (NOT $3 OR reviewed = TRUE)
		%s
	`, sqlquery.MessageColumns, r.tables.Messages, sqlquery.OrderBy(false))

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, treeID, filter.IncludeDeleted, filter.ReviewedOnly)
	if err != nil {
		return nil, storeErr("get tree messages", err)
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, storeErr("get tree messages", err)
	}
	return messages, nil
}

// QueryMessages runs a filtered scan over the (created_date, id) index
func (r *PostgresMessageRepository) QueryMessages(ctx context.Context, q *models.MessageQuery) ([]models.Message, error) {
	b := sqlquery.New(sqlquery.Postgres)
	b.ApplyMessageQuery(q, r.tables.Users)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		%s
		LIMIT %s
	`, sqlquery.MessageColumns, r.tables.Messages, b.WhereClause(), sqlquery.OrderBy(q.Desc), b.Arg(q.Limit))

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, storeErr("query messages", err)
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, storeErr("query messages", err)
	}
	return messages, nil
}

// CreateUser stores an author identity
func (r *PostgresMessageRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, username, auth_method, display_name, created_date)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, user.ID, user.Username, user.AuthMethod, user.DisplayName, user.CreatedDate)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("user %s/%s already exists: %w", user.AuthMethod, user.Username, domain.ErrValidation)
		}
		return storeErr("create user", err)
	}
	return nil
}

// CreateMessage stores a message
func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, r.tables.Messages, sqlquery.MessageColumns)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		msg.ID,
		msg.ParentID,
		msg.MessageTreeID,
		msg.UserID,
		msg.APIClientID,
		msg.FrontendMessageID,
		msg.Role,
		msg.Text,
		msg.Lang,
		msg.Depth,
		msg.ReviewCount,
		msg.Reviewed,
		msg.Deleted,
		msg.Synthetic,
		msg.ModelName,
		msg.CreatedDate,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("parent or user of message %s: %w", msg.ID, domain.ErrNotFound)
		}
		if IsPgDuplicateError(err) {
			return fmt.Errorf("message %s already exists: %w", msg.ID, domain.ErrValidation)
		}
		return storeErr("create message", err)
	}
	return nil
}

// MarkDeleted flags messages as deleted; rows already deleted are not touched
func (r *PostgresMessageRepository) MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted = TRUE
		WHERE id = ANY($1::uuid[]) AND deleted = FALSE
	`, r.tables.Messages)

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, idStrings)
	if err != nil {
		return 0, storeErr("mark messages deleted", err)
	}

	return result.RowsAffected(), nil
}
