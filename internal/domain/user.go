package domain

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

// Grant is the identity handed to the session layer after a successful login.
type Grant struct {
	UserID   int64
	Username string
}

// NormalizeEmail trims and lower-cases an email so it can be used as the
// uniqueness and lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
