package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "docvia-test",
	ExpirationMinutes: 15,
}

func TestMintAndParseAccessToken(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseAccessToken(testJWTConfig, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseAccessToken(testJWTConfig, token); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	other := testJWTConfig
	other.Issuer = "someone-else"

	token, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseAccessToken(testJWTConfig, token); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestMintValidation(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatalf("expected missing user id error")
	}
}
