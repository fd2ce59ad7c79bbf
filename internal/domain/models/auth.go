package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TrustLevel is the capability granted to a resolved caller
type TrustLevel int

const (
	// TrustDefault callers read messages; listings are scoped to their own API client
	TrustDefault TrustLevel = iota
	// TrustElevated callers may read across clients and soft-delete messages
	TrustElevated
)

func (t TrustLevel) String() string {
	if t == TrustElevated {
		return "elevated"
	}
	return "default"
}

// Caller is the already-resolved identity a request runs as
type Caller struct {
	APIClientID uuid.UUID
	Name        string
	Trust       TrustLevel
}

// IsTrusted reports whether the caller holds elevated trust
func (c Caller) IsTrusted() bool {
	return c.Trust == TrustElevated
}

// ClientClaims represents the JWT claims an API client token carries.
type ClientClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	APIClientID          string `json:"api_client_id"`
	ClientName           string `json:"client_name"`
	Trusted              bool   `json:"trusted"`
}

// Caller converts verified claims to a Caller
func (c *ClientClaims) Caller() (Caller, error) {
	id, err := uuid.Parse(c.APIClientID)
	if err != nil {
		return Caller{}, err
	}
	trust := TrustDefault
	if c.Trusted {
		trust = TrustElevated
	}
	name := c.ClientName
	if name == "" {
		name = c.Subject
	}
	return Caller{APIClientID: id, Name: name, Trust: trust}, nil
}
