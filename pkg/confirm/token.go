// Package confirm signs and verifies the short-lived token carried through the
// checkout redirect round trip. The token is the only state that crosses the
// user's browser and is treated as untrusted input until its signature checks out.
package confirm

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
)

const audience = "billing-confirmation"

var signingMethod = jwt.SigningMethodHS256

// Claims binds a checkout attempt to the subscription row it created.
type Claims struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// Sign issues a confirmation token for the subscription/user pair.
func Sign(cfg config.JWTConfig, now time.Time, ttl time.Duration, subscriptionID, userID uuid.UUID) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if subscriptionID == uuid.Nil || userID == uuid.Nil {
		return "", fmt.Errorf("subscription id and user id are required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	claims := Claims{
		SubscriptionID: subscriptionID,
		UserID:         userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing confirmation token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, and audience. Callers must not distinguish
// failure modes to the end user.
func Verify(cfg config.JWTConfig, tokenString string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, err
	}
	if claims.SubscriptionID == uuid.Nil || claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("confirmation token missing identifiers")
	}
	return claims, nil
}
