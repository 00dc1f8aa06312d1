package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"account-portal/internal/domain"
	"account-portal/internal/repository"
)

// SessionRepository stores sessions with unix-second timestamps so expiry
// comparisons happen on integers.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, token_hash, user_id, username, user_agent, ip_address, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID.String(),
		session.TokenHash,
		session.UserID,
		session.Username,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt.Unix(),
		session.CreatedAt.Unix(),
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, token_hash, user_id, username, user_agent, ip_address, expires_at, created_at
FROM sessions
WHERE token_hash = ?`,
		tokenHash,
	)

	var (
		session   domain.Session
		id        string
		expiresAt int64
		createdAt int64
	)
	if err := row.Scan(
		&id,
		&session.TokenHash,
		&session.UserID,
		&session.Username,
		&session.UserAgent,
		&session.IPAddress,
		&expiresAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrap(repository.ErrNotFound)
		}
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session by token hash").Wrap(err)
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "parse session id").With("id", id).Wrap(err)
	}
	session.ID = parsed
	session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String()); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").With("operation", "rows affected").Wrap(err)
	}
	return n, nil
}
