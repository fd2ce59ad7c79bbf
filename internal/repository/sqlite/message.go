package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/repositories"
	"msgtree/internal/repository/sqlquery"
)

const (
	usersTable    = "users"
	messagesTable = "messages"
)

// SQLiteMessageRepository implements the MessageRepository interface using SQLite
type SQLiteMessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMessageRepository creates a new SQLiteMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &SQLiteMessageRepository{
		db:     config.DB,
		logger: config.Logger,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessageRow(row scanner) (*models.Message, error) {
	var (
		msg     models.Message
		created int64
	)
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
		&created,
	)
	if err != nil {
		return nil, err
	}
	msg.CreatedDate = time.Unix(0, created).UTC()
	return &msg, nil
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
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

func (r *SQLiteMessageRepository) query(ctx context.Context, op, query string, args ...any) ([]models.Message, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return messages, nil
}

// GetMessage retrieves a message by ID
func (r *SQLiteMessageRepository) GetMessage(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = ? AND (? OR deleted = FALSE)
	`, sqlquery.MessageColumns, messagesTable)

	msg, err := scanMessageRow(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, includeDeleted))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil, storeErr("get message", err)
	}
	return msg, nil
}

// GetChildren retrieves the direct replies to a message
func (r *SQLiteMessageRepository) GetChildren(ctx context.Context, parentID uuid.UUID, includeDeleted bool) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE parent_id = ? AND (? OR deleted = FALSE)
		%s
	`, sqlquery.MessageColumns, messagesTable, sqlquery.OrderBy(false))

	return r.query(ctx, "get children", query, parentID, includeDeleted)
}

// GetTreeMessages loads a whole tree through the message_tree_id index
func (r *SQLiteMessageRepository) GetTreeMessages(ctx context.Context, treeID uuid.UUID, filter models.TreeFilter) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE message_tree_id = ?
		  AND (? OR deleted = FALSE)
		  AND (NOT ? OR reviewed = TRUE)
		%s
	`, sqlquery.MessageColumns, messagesTable, sqlquery.OrderBy(false))

	return r.query(ctx, "get tree messages", query, treeID, filter.IncludeDeleted, filter.ReviewedOnly)
}

// QueryMessages runs a filtered scan over the (created_date, id) index
func (r *SQLiteMessageRepository) QueryMessages(ctx context.Context, q *models.MessageQuery) ([]models.Message, error) {
	b := sqlquery.New(sqlquery.SQLite)
	b.ApplyMessageQuery(q, usersTable)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		%s
		LIMIT %s
	`, sqlquery.MessageColumns, messagesTable, b.WhereClause(), sqlquery.OrderBy(q.Desc), b.Arg(q.Limit))

	return r.query(ctx, "query messages", query, b.Args()...)
}

// CreateUser stores an author identity
func (r *SQLiteMessageRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, username, auth_method, display_name, created_date)
		VALUES (?, ?, ?, ?, ?)
	`, usersTable)

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		user.ID, user.Username, user.AuthMethod, user.DisplayName, models.ClampUnixNano(user.CreatedDate))
	if err != nil {
		if isUniqueError(err) {
			return fmt.Errorf("user %s/%s already exists: %w", user.AuthMethod, user.Username, domain.ErrValidation)
		}
		return storeErr("create user", err)
	}
	return nil
}

// CreateMessage stores a message
func (r *SQLiteMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, messagesTable, sqlquery.MessageColumns)

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
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
		models.ClampUnixNano(msg.CreatedDate),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("parent or user of message %s: %w", msg.ID, domain.ErrNotFound)
		}
		if isUniqueError(err) {
			return fmt.Errorf("message %s already exists: %w", msg.ID, domain.ErrValidation)
		}
		return storeErr("create message", err)
	}
	return nil
}

// MarkDeleted flags messages as deleted; rows already deleted are not touched
func (r *SQLiteMessageRepository) MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted = TRUE
		WHERE id IN (%s) AND deleted = FALSE
	`, messagesTable, strings.Join(placeholders, ", "))

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr("mark messages deleted", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("mark messages deleted", err)
	}
	return affected, nil
}
