package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService emite y valida tokens JWT firmados por clase.
// Cada clase (access / refresh) usa un secreto distinto: una clave filtrada
// de una clase no sirve para falsificar la otra.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// PurposeClaims son los claims de tokens de propósito único (magic link y similares).
type PurposeClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	// PurposeMagicLink identifica tokens emitidos para login por enlace mágico.
	PurposeMagicLink = "magic-link"
)

var (
	ErrTokenInvalid      = errors.New("token invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenWrongClass   = errors.New("token wrong class")
	ErrTokenWrongPurpose = errors.New("token wrong purpose")
)

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "auth-hub",
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) GenerateAccessToken(userID string) (string, error) {
	if len(s.accessSecret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

// GenerateRefreshToken emite un refresh token y devuelve también su jti,
// que es la clave bajo la cual el token se indexa en el Secret Store.
func (s *TokenService) GenerateRefreshToken(userID string) (string, string, error) {
	if len(s.refreshSecret) == 0 || strings.TrimSpace(userID) == "" {
		return "", "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	jti := uuid.NewString()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.refreshSecret)
	return signed, jti, err
}

func (s *TokenService) ParseAccessToken(tokenString string) (Claims, error) {
	claims, err := s.parseToken(tokenString, s.accessSecret)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, ErrTokenWrongClass
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) ParseRefreshToken(tokenString string) (Claims, error) {
	claims, err := s.parseToken(tokenString, s.refreshSecret)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return Claims{}, ErrTokenWrongClass
	}
	if !s.isValidClaims(claims) || claims.ID == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// GeneratePurposeToken emite un token firmado atado a un propósito concreto.
func (s *TokenService) GeneratePurposeToken(email, purpose string, ttl time.Duration) (string, error) {
	if len(s.accessSecret) == 0 || strings.TrimSpace(email) == "" || strings.TrimSpace(purpose) == "" {
		return "", ErrTokenInvalid
	}
	now := time.Now().UTC()
	claims := PurposeClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.accessSecret)
}

// ParsePurposeToken valida firma, expiración y propósito. Un token de otro
// propósito se rechaza aunque la firma sea válida.
func (s *TokenService) ParsePurposeToken(tokenString, expectedPurpose string) (PurposeClaims, error) {
	if len(s.accessSecret) == 0 || strings.TrimSpace(tokenString) == "" {
		return PurposeClaims{}, ErrTokenInvalid
	}
	var claims PurposeClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.accessSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return PurposeClaims{}, ErrTokenExpired
		}
		return PurposeClaims{}, ErrTokenInvalid
	}
	if claims.Issuer != s.issuer || strings.TrimSpace(claims.Email) == "" {
		return PurposeClaims{}, ErrTokenInvalid
	}
	if claims.Purpose != expectedPurpose {
		return PurposeClaims{}, ErrTokenWrongPurpose
	}
	return claims, nil
}

func (s *TokenService) parseToken(tokenString string, secret []byte) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	if claims.IssuedAt == nil {
		return false
	}
	return claims.Issuer == s.issuer
}
