package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const AdminTokenTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAdminToken signs an HS256 token for the admin console.
func GenerateAdminToken(secret string, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("JWT secret is not configured")
	}

	expiresAt := now.Add(AdminTokenTTL)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAdminToken parses and verifies a token issued by GenerateAdminToken.
func ValidateAdminToken(secret, tokenString string) (*AdminClaims, error) {
	if secret == "" || tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != "admin" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
