// Package auth verifies the bearer tokens that carry the actor context for
// engine operations. Token issuance belongs to the identity service; the
// Issue helper exists for operational tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token fails verification
var ErrInvalidToken = errors.New("invalid token")

// Claims is the actor context carried in a bearer token
type Claims struct {
	UserID   string `json:"uid"`
	UserName string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 bearer tokens
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a token service
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Issue signs a token for the given actor
func (s *TokenService) Issue(userID, userName, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		UserName: userName,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its actor claims
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing actor claims", ErrInvalidToken)
	}
	return claims, nil
}
