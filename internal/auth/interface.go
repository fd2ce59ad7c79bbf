package auth

import "msgtree/internal/domain/models"

// JWTVerifier defines the interface for API client token verification.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.ClientClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}

// CallerResolver maps a static API key to the caller it belongs to
type CallerResolver interface {
	Lookup(apiKey string) (models.Caller, bool)
}
