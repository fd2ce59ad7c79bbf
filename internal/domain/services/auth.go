package services

import (
	"github.com/google/uuid"

	"msgtree/internal/domain/models"
)

// CallerAuthorizer decides what a resolved caller may do.
// Services call the authorizer before touching the store.
type CallerAuthorizer interface {
	// ScopeFilters narrows listing filters to what the caller may see.
	// Returns domain.ErrForbidden when the filters ask for more than that.
	ScopeFilters(caller models.Caller, f MessageFilters) (MessageFilters, error)

	// CanDelete checks the caller may soft-delete the message
	CanDelete(caller models.Caller, messageID uuid.UUID) error
}
