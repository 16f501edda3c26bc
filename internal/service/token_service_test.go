package service

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenService() *TokenService {
	return NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestTokenService_GenerateParseAccess(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.GenerateAccessToken("u1")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "u1" || claims.TokenType != "access" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt == nil {
		t.Fatalf("expected iat claim")
	}
}

func TestTokenService_GenerateParseRefresh(t *testing.T) {
	svc := newTestTokenService()

	token, jti, err := svc.GenerateRefreshToken("u1")
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}
	if jti == "" {
		t.Fatalf("expected jti")
	}
	claims, err := svc.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.UserID != "u1" || claims.ID != jti {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_RejectsCrossClassTokens(t *testing.T) {
	svc := newTestTokenService()

	access, err := svc.GenerateAccessToken("u1")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	refresh, _, err := svc.GenerateRefreshToken("u1")
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}

	// Cada clase firma con un secreto distinto: el token cruzado ni siquiera
	// valida firma.
	if _, err := svc.ParseRefreshToken(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for access token in refresh parse, got %v", err)
	}
	if _, err := svc.ParseAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh token in access parse, got %v", err)
	}
}

func TestTokenService_RejectsSameSecretWrongClass(t *testing.T) {
	svc := NewTokenService("shared-secret", "shared-secret", 15*time.Minute, time.Hour)

	access, err := svc.GenerateAccessToken("u1")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	if _, err := svc.ParseRefreshToken(access); !errors.Is(err, ErrTokenWrongClass) {
		t.Fatalf("expected ErrTokenWrongClass, got %v", err)
	}
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour)
	token, err := svc.GeneratePurposeToken("user@example.com", PurposeMagicLink, -time.Minute)
	if err != nil {
		t.Fatalf("generate purpose: %v", err)
	}
	if _, err := svc.ParsePurposeToken(token, PurposeMagicLink); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenService_PurposeMismatch(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.GeneratePurposeToken("user@example.com", PurposeMagicLink, 15*time.Minute)
	if err != nil {
		t.Fatalf("generate purpose: %v", err)
	}

	claims, err := svc.ParsePurposeToken(token, PurposeMagicLink)
	if err != nil {
		t.Fatalf("parse purpose: %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := svc.ParsePurposeToken(token, "password-reset"); !errors.Is(err, ErrTokenWrongPurpose) {
		t.Fatalf("expected ErrTokenWrongPurpose, got %v", err)
	}
}

func TestTokenService_RejectsEmptySecret(t *testing.T) {
	svc := NewTokenService("", "", 15*time.Minute, time.Hour)
	if _, err := svc.GenerateAccessToken("u1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on empty secret, got %v", err)
	}
}

func TestTokenService_RejectsForgedSignature(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService("other-secret", "other-secret", 15*time.Minute, time.Hour)

	token, err := other.GenerateAccessToken("u1")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for forged token, got %v", err)
	}
}
