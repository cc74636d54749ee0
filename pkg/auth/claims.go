package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims is the JWT payload for API access tokens.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// AccessTokenPayload carries the data minted into an access token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	JTI    string
}
