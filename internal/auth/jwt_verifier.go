package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
)

// ClientJWTVerifier implements JWTVerifier against a JWKS endpoint.
type ClientJWTVerifier struct {
	keyFunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from the JWKS endpoint.
// keyfunc v3 caches the keys and refreshes them based on HTTP cache headers.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return NewJWTVerifierWithKeyfunc(jwks.Keyfunc, logger), nil
}

// NewJWTVerifierWithKeyfunc creates a verifier with a fixed key lookup
func NewJWTVerifierWithKeyfunc(kf jwt.Keyfunc, logger *slog.Logger) JWTVerifier {
	return &ClientJWTVerifier{keyFunc: kf, logger: logger}
}

// VerifyToken validates a JWT token and extracts the API client claims.
func (v *ClientJWTVerifier) VerifyToken(tokenString string) (*models.ClientClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ClientClaims{}, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}), // Prevent algorithm confusion attacks
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token parse failed", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}

	if !token.Valid {
		v.logger.Debug("token is invalid after parsing")
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.ClientClaims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.APIClientID == "" {
		v.logger.Debug("token missing api_client_id claim", "subject", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op; keyfunc v3 manages its own refresh resources.
func (v *ClientJWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
