package auth

import (
	"fmt"

	"github.com/google/uuid"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/services"
)

// TrustAuthorizer implements CallerAuthorizer from the caller's trust level.
// Elevated callers see every API client and may delete; default callers only
// list their own client's messages and never delete.
type TrustAuthorizer struct{}

// NewTrustAuthorizer creates a new trust-based authorizer
func NewTrustAuthorizer() *TrustAuthorizer {
	return &TrustAuthorizer{}
}

// ScopeFilters pins untrusted listings to the caller's own API client
func (a *TrustAuthorizer) ScopeFilters(caller models.Caller, f services.MessageFilters) (services.MessageFilters, error) {
	if caller.IsTrusted() {
		return f, nil
	}
	if f.APIClientID != nil && *f.APIClientID != caller.APIClientID {
		return f, fmt.Errorf("api client %s may not list messages of client %s: %w",
			caller.APIClientID, f.APIClientID, domain.ErrForbidden)
	}
	own := caller.APIClientID
	f.APIClientID = &own
	return f, nil
}

// CanDelete requires elevated trust
func (a *TrustAuthorizer) CanDelete(caller models.Caller, messageID uuid.UUID) error {
	if !caller.IsTrusted() {
		return fmt.Errorf("api client %s may not delete message %s: %w", caller.APIClientID, messageID, domain.ErrForbidden)
	}
	return nil
}
