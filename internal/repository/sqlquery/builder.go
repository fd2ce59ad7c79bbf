// Package sqlquery builds the WHERE/ORDER BY clauses shared by the SQL message stores.
package sqlquery

import (
	"fmt"
	"strings"
	"time"

	"msgtree/internal/domain/models"
)

// MessageColumns is the column list every message SELECT returns, in scan order
const MessageColumns = `id, parent_id, message_tree_id, user_id, api_client_id, frontend_message_id,
	role, text, lang, depth, review_count, reviewed, deleted, synthetic, model_name, created_date`

// Dialect captures the differences between the SQL stores
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder func(n int) string
	// TimeArg converts a timestamp to the stored representation
	TimeArg func(t time.Time) any
}

// Postgres uses $n parameters and native timestamps
var Postgres = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	TimeArg:     func(t time.Time) any { return t },
}

// SQLite uses ? parameters and stores timestamps as unix nanoseconds.
// Bounds outside the int64 range saturate.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	TimeArg:     func(t time.Time) any { return models.ClampUnixNano(t) },
}

// Builder accumulates AND-ed conditions and their arguments
type Builder struct {
	dialect Dialect
	conds   []string
	args    []any
}

// New creates an empty builder for the dialect
func New(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Arg binds v and returns its placeholder
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// TimeArg binds a timestamp in the dialect's representation
func (b *Builder) TimeArg(t time.Time) string {
	return b.Arg(b.dialect.TimeArg(t))
}

// Where adds a condition
func (b *Builder) Where(cond string) {
	b.conds = append(b.conds, cond)
}

// WhereClause renders "WHERE ..." or an empty string
func (b *Builder) WhereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, " AND ")
}

// Args returns the bound arguments in placeholder order
func (b *Builder) Args() []any {
	return b.args
}

// ApplyMessageQuery adds the predicates of q.
// Cursor bounds are strict on the id component and inclusive for timestamp-only cursors.
func (b *Builder) ApplyMessageQuery(q *models.MessageQuery, usersTable string) {
	if !q.IncludeDeleted {
		b.Where("deleted = FALSE")
	}
	if q.OnlyRoots {
		b.Where("parent_id IS NULL")
	}
	if q.UserID != nil {
		b.Where("user_id = " + b.Arg(*q.UserID))
	}
	if q.Username != "" || q.AuthMethod != "" {
		b.Where(fmt.Sprintf("user_id IN (SELECT id FROM %s WHERE username = %s AND auth_method = %s)",
			usersTable, b.Arg(q.Username), b.Arg(q.AuthMethod)))
	}
	if q.APIClientID != nil {
		b.Where("api_client_id = " + b.Arg(*q.APIClientID))
	}
	if q.After != nil {
		if q.After.ID != nil {
			b.Where(fmt.Sprintf("(created_date > %s OR (created_date = %s AND id > %s))",
				b.TimeArg(q.After.Time), b.TimeArg(q.After.Time), b.Arg(*q.After.ID)))
		} else {
			b.Where("created_date >= " + b.TimeArg(q.After.Time))
		}
	}
	if q.Before != nil {
		if q.Before.ID != nil {
			b.Where(fmt.Sprintf("(created_date < %s OR (created_date = %s AND id < %s))",
				b.TimeArg(q.Before.Time), b.TimeArg(q.Before.Time), b.Arg(*q.Before.ID)))
		} else {
			b.Where("created_date <= " + b.TimeArg(q.Before.Time))
		}
	}
}

// OrderBy returns the (created_date, id) ordering clause
func OrderBy(desc bool) string {
	if desc {
		return "ORDER BY created_date DESC, id DESC"
	}
	return "ORDER BY created_date ASC, id ASC"
}
