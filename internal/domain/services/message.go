package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain/models"
)

// MessageService is the message tree query engine.
// Read operations run inside one read transaction each; no partial results are returned on error.
type MessageService interface {
	// ListMessages returns messages matching the filters within an inclusive date window
	// Untrusted callers only see messages of their own API client
	ListMessages(ctx context.Context, caller models.Caller, req *ListMessagesRequest) ([]models.Message, error)

	// ListMessagesPage returns one cursor-delimited page
	// gt/lt cursors are strict on the id component and inclusive when timestamp-only
	ListMessagesPage(ctx context.Context, caller models.Caller, req *MessagePageRequest) (*models.MessagePage, error)

	// GetMessage retrieves a single message
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)

	// GetConversation returns the path from the tree root down to the message
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// GetTree returns every visible message of the message's tree, optionally only reviewed ones
	GetTree(ctx context.Context, id uuid.UUID, reviewedOnly bool) (*models.MessageTree, error)

	// GetChildren returns the direct replies to a message
	GetChildren(ctx context.Context, id uuid.UUID) ([]models.Message, error)

	// GetDescendants returns the message followed by its subtree in breadth-first order
	GetDescendants(ctx context.Context, id uuid.UUID) (*models.MessageTree, error)

	// GetLongestConversation returns the root-to-leaf path of the deepest leaf in the message's tree
	GetLongestConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// GetNodeWithMostChildren returns the message with the most replies in the tree,
	// followed by those replies
	GetNodeWithMostChildren(ctx context.Context, id uuid.UUID) (*models.MessageTree, error)

	// DeleteMessage soft-deletes a message (and its subtree under the subtree cascade policy)
	// Requires an elevated caller; deleting an already-deleted message is a no-op
	DeleteMessage(ctx context.Context, caller models.Caller, id uuid.UUID) error
}

// MessageFilters are the predicates shared by listing and pagination
type MessageFilters struct {
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Username       string     `json:"username,omitempty"`    // Requires AuthMethod
	AuthMethod     string     `json:"auth_method,omitempty"` // Requires Username
	APIClientID    *uuid.UUID `json:"api_client_id,omitempty"`
	OnlyRoots      bool       `json:"only_roots,omitempty"`
	IncludeDeleted bool       `json:"include_deleted,omitempty"`
}

// ListMessagesRequest represents a date-windowed listing
type ListMessagesRequest struct {
	MessageFilters
	StartDate *time.Time `json:"start_date,omitempty"` // Inclusive
	EndDate   *time.Time `json:"end_date,omitempty"`   // Inclusive
	Desc      bool       `json:"desc"`                 // Newest first (handler default: true)
	MaxCount  int        `json:"max_count"`            // 1..config.MaxPageSize
}

// MessagePageRequest represents a cursor pagination request
type MessagePageRequest struct {
	MessageFilters
	GT       string `json:"gt,omitempty"` // "<id>$<timestamp>" or "<timestamp>"
	LT       string `json:"lt,omitempty"`
	Desc     bool   `json:"desc"`
	MaxCount int    `json:"max_count"` // 1..config.MaxPageSize
}
