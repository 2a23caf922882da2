package net

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the admin key on privileged requests.
const AdminKeyHeader = "X-Admin-Key"

var ErrUnauthorized = errors.New("unauthorized")

// HashKey returns the bcrypt hash to store as admin.reset_key_hash.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// AdminGuard checks admin keys against a bcrypt hash. A zero guard (no
// hash configured) admits every request.
type AdminGuard struct {
	hash []byte
}

func NewAdminGuard(hash string) (AdminGuard, error) {
	if hash == "" {
		return AdminGuard{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return AdminGuard{}, fmt.Errorf("admin key hash: %w", err)
	}
	return AdminGuard{hash: []byte(hash)}, nil
}

func (g AdminGuard) Enabled() bool { return len(g.hash) > 0 }

// Check returns ErrUnauthorized unless key matches.
func (g AdminGuard) Check(key string) error {
	if !g.Enabled() {
		return nil
	}
	if key == "" {
		return ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(key)) != nil {
		return ErrUnauthorized
	}
	return nil
}
