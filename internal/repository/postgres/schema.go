package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the users and messages tables and their indexes if they don't exist.
// The (created_date, id), message_tree_id and parent_id indexes back the pagination
// and tree queries.
func (r *PostgresMessageRepository) EnsureSchema(ctx context.Context) error {
	prefix := r.tables.Prefix
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + r.tables.Users + ` (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			auth_method TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(username, auth_method)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + r.tables.Messages + ` (
			id UUID PRIMARY KEY,
			parent_id UUID REFERENCES ` + r.tables.Messages + `(id),
			message_tree_id UUID NOT NULL,
			user_id UUID REFERENCES ` + r.tables.Users + `(id),
			api_client_id UUID NOT NULL,
			frontend_message_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			synthetic BOOLEAN NOT NULL DEFAULT FALSE,
			model_name TEXT,
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_created_id ON ` + r.tables.Messages + `(created_date, id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_tree ON ` + r.tables.Messages + `(message_tree_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_parent ON ` + r.tables.Messages + `(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_user ON ` + r.tables.Messages + `(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + prefix + `messages_api_client ON ` + r.tables.Messages + `(api_client_id)`,
	}

	executor := GetExecutor(ctx, r.pool)
	for _, stmt := range statements {
		if _, err := executor.Exec(ctx, stmt); err != nil {
			return storeErr(fmt.Sprintf("ensure schema (%s)", r.tables.Messages), err)
		}
	}

	r.logger.Debug("schema ready", "users", r.tables.Users, "messages", r.tables.Messages)
	return nil
}

// DropSchema removes the tables created by EnsureSchema
func (r *PostgresMessageRepository) DropSchema(ctx context.Context) error {
	executor := GetExecutor(ctx, r.pool)
	for _, table := range []string{r.tables.Messages, r.tables.Users} {
		if _, err := executor.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return storeErr("drop "+table, err)
		}
	}
	return nil
}
