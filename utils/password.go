package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashAdminKey returns the bcrypt hash stored in ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckAdminKey compares a candidate key against a bcrypt hash, or against a
// plain secret when no hash is configured.
func CheckAdminKey(candidate, hash, plain string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
	}
	if plain != "" {
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(plain)) == 1
	}
	return false
}
