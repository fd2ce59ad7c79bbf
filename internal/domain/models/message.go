package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RolePrompter  = "prompter"
	RoleAssistant = "assistant"
)

// Message is a single node in a message tree.
// Trees are stored flat: ParentID links a reply to the message it answers and
// MessageTreeID names the root of the tree (a root's MessageTreeID is its own ID).
type Message struct {
	ID                uuid.UUID  `json:"id"`
	ParentID          *uuid.UUID `json:"parent_id"`
	MessageTreeID     uuid.UUID  `json:"message_tree_id"`
	UserID            *uuid.UUID `json:"user_id,omitempty"`
	APIClientID       uuid.UUID  `json:"api_client_id"`
	FrontendMessageID string     `json:"frontend_message_id,omitempty"`
	Role              string     `json:"role"`
	Text              string     `json:"text"`
	Lang              string     `json:"lang,omitempty"`
	Depth             int        `json:"depth"`
	ReviewCount       int        `json:"review_count"`
	Reviewed          bool       `json:"reviewed"`
	Deleted           bool       `json:"deleted"`
	Synthetic         bool       `json:"synthetic"`
	ModelName         *string    `json:"model_name,omitempty"`
	CreatedDate       time.Time  `json:"created_date"`
}

// IsRoot reports whether the message starts a tree
func (m *Message) IsRoot() bool {
	return m.ParentID == nil
}

// Cursor returns the pagination position of the message
func (m *Message) Cursor() Cursor {
	id := m.ID
	return Cursor{ID: &id, Time: m.CreatedDate}
}

// Before reports whether m sorts before other in (created_date, id) order
func (m *Message) Before(other *Message) bool {
	if !m.CreatedDate.Equal(other.CreatedDate) {
		return m.CreatedDate.Before(other.CreatedDate)
	}
	return CompareIDs(m.ID, other.ID) < 0
}

// CompareIDs orders UUIDs bytewise, matching the ordering used by every store
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// User is the author identity a message can be attributed to
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	AuthMethod  string    `json:"auth_method"`
	DisplayName string    `json:"display_name"`
	CreatedDate time.Time `json:"created_date"`
}

// TreeFilter restricts the rows loaded for a message tree
type TreeFilter struct {
	ReviewedOnly   bool
	IncludeDeleted bool
}

// MessageQuery is the general predicate/sort/limit query used by listing and pagination.
// After and Before are exclusive on the id component and inclusive when the cursor
// carries only a timestamp.
type MessageQuery struct {
	UserID         *uuid.UUID
	Username       string
	AuthMethod     string
	APIClientID    *uuid.UUID
	OnlyRoots      bool
	IncludeDeleted bool
	Desc           bool
	Limit          int
	After          *Cursor
	Before         *Cursor
}

// Conversation is the ordered path from a tree root down to a message
type Conversation struct {
	Messages []Message `json:"messages"`
}

// MessageTree is a set of messages belonging to one (sub)tree, identified by its top message
type MessageTree struct {
	ID       uuid.UUID `json:"id"`
	Messages []Message `json:"messages"`
}

// MessagePage is one page of a cursor-paginated message listing
type MessagePage struct {
	Prev    *string   `json:"prev,omitempty"`
	Next    *string   `json:"next,omitempty"`
	SortKey string    `json:"sort_key"`
	Order   string    `json:"order"`
	Items   []Message `json:"items"`
}
