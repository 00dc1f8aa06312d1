package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is a server-held login session. Only the fingerprint of the
// client token is stored.
type Session struct {
	ID        ulid.ULID
	TokenHash string
	UserID    int64
	Username  string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the session is no longer valid at t.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
