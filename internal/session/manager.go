package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"account-portal/internal/auth"
	"account-portal/internal/domain"
	"account-portal/internal/repository"
)

// ClientInfo is recorded alongside a new session.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Manager moves request states between anonymous and authenticated and
// keeps the server-side session records in step.
type Manager struct {
	store repository.SessionRepository
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store repository.SessionRepository, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// TTL is the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Resume loads the state for a client token. An empty, unknown or expired
// token yields an anonymous state. The returned state is never nil.
func (m *Manager) Resume(ctx context.Context, token string) (*State, error) {
	state := Anonymous()
	if token == "" {
		return state, nil
	}

	sess, err := m.store.GetByTokenHash(ctx, auth.FingerprintSessionToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return state, nil
		}
		return state, fmt.Errorf("load session: %w", err)
	}

	if sess.ExpiredAt(m.now()) {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return state, fmt.Errorf("delete expired session: %w", err)
		}
		return state, nil
	}

	state.authenticate(sess.ID, Identity{UserID: sess.UserID, Username: sess.Username})
	return state, nil
}

// Establish logs the grant in on state and returns the token for the
// client cookie. A session already held by state is discarded first.
func (m *Manager) Establish(ctx context.Context, state *State, grant domain.Grant, client ClientInfo) (string, error) {
	if state == nil {
		return "", errors.New("establish session: nil state")
	}
	if state.Authenticated() {
		if err := m.store.Delete(ctx, state.sessionID); err != nil {
			return "", fmt.Errorf("rotate session: %w", err)
		}
		state.reset()
	}

	token, fingerprint, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	sess := &domain.Session{
		ID:        ulid.Make(),
		TokenHash: fingerprint,
		UserID:    grant.UserID,
		Username:  grant.Username,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	state.authenticate(sess.ID, Identity{UserID: grant.UserID, Username: grant.Username})
	return token, nil
}

// Clear logs state out. The state is anonymous afterwards even when the
// stored session could not be deleted.
func (m *Manager) Clear(ctx context.Context, state *State) error {
	if !state.Authenticated() {
		return nil
	}
	id := state.sessionID
	state.reset()
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes every session past its expiry.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}
