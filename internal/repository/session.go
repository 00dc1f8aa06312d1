package repository

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"account-portal/internal/domain"
)

// SessionRepository persists server-side login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	// GetByTokenHash returns ErrNotFound when no session carries the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id ulid.ULID) error
	// DeleteExpired removes sessions that expired at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
