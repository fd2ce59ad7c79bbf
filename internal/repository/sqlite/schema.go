package sqlite

import (
	"context"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + usersTable + ` (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		auth_method TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_date INTEGER NOT NULL,
		UNIQUE(username, auth_method)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + messagesTable + ` (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES ` + messagesTable + `(id),
		message_tree_id TEXT NOT NULL,
		user_id TEXT REFERENCES ` + usersTable + `(id),
		api_client_id TEXT NOT NULL,
		frontend_message_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		lang TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		reviewed INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		synthetic INTEGER NOT NULL DEFAULT 0,
		model_name TEXT,
		created_date INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created_id ON ` + messagesTable + `(created_date, id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_tree ON ` + messagesTable + `(message_tree_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_parent ON ` + messagesTable + `(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_user ON ` + messagesTable + `(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_api_client ON ` + messagesTable + `(api_client_id)`,
}

// EnsureSchema creates the users and messages tables and their indexes if they don't exist
func (r *SQLiteMessageRepository) EnsureSchema(ctx context.Context) error {
	executor := GetExecutor(ctx, r.db)
	for _, stmt := range schemaStatements {
		if _, err := executor.ExecContext(ctx, stmt); err != nil {
			return storeErr("ensure schema", err)
		}
	}
	r.logger.Debug("schema ready", "driver", "sqlite")
	return nil
}
