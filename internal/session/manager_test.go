package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-portal/internal/auth"
	"account-portal/internal/domain"
	"account-portal/internal/repository/memory"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func setupManager(t *testing.T) (*Manager, *memory.SessionRepository, *fakeClock) {
	t.Helper()
	store := memory.NewSessionRepository()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, time.Hour)
	m.now = clock.Now
	return m, store, clock
}

var alice = domain.Grant{UserID: 7, Username: "alice"}

func TestState_Anonymous(t *testing.T) {
	var zero State
	for _, s := range []*State{nil, &zero, Anonymous()} {
		assert.False(t, s.Authenticated())
		_, ok := s.Identity()
		assert.False(t, ok)
		_, err := s.RequireAuthenticated()
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}
}

func TestManager_EstablishAndResume(t *testing.T) {
	ctx := context.Background()
	m, store, _ := setupManager(t)

	state := Anonymous()
	token, err := m.Establish(ctx, state, alice, ClientInfo{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, token, auth.SessionTokenBytes*2)

	id, err := state.RequireAuthenticated()
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 7, Username: "alice"}, id)

	stored, err := store.GetByTokenHash(ctx, auth.FingerprintSessionToken(token))
	require.NoError(t, err)
	assert.Equal(t, "test", stored.UserAgent)
	assert.NotEqual(t, token, stored.TokenHash)

	resumed, err := m.Resume(ctx, token)
	require.NoError(t, err)
	got, ok := resumed.Identity()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestManager_ResumeAnonymous(t *testing.T) {
	ctx := context.Background()
	m, _, _ := setupManager(t)

	for _, token := range []string{"", "not-a-real-token"} {
		state, err := m.Resume(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.False(t, state.Authenticated())
	}
}

func TestManager_ResumeExpired(t *testing.T) {
	ctx := context.Background()
	m, store, clock := setupManager(t)

	token, err := m.Establish(ctx, Anonymous(), alice, ClientInfo{})
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour)
	state, err := m.Resume(ctx, token)
	require.NoError(t, err)
	assert.False(t, state.Authenticated())
	assert.Equal(t, 0, store.Len(), "expired session is deleted on access")
}

func TestManager_EstablishRotates(t *testing.T) {
	ctx := context.Background()
	m, store, _ := setupManager(t)

	state := Anonymous()
	first, err := m.Establish(ctx, state, alice, ClientInfo{})
	require.NoError(t, err)
	second, err := m.Establish(ctx, state, domain.Grant{UserID: 8, Username: "bob"}, ClientInfo{})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, store.Len())

	old, err := m.Resume(ctx, first)
	require.NoError(t, err)
	assert.False(t, old.Authenticated())

	id, err := state.RequireAuthenticated()
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
}

func TestManager_Clear(t *testing.T) {
	ctx := context.Background()
	m, store, _ := setupManager(t)

	state := Anonymous()
	token, err := m.Establish(ctx, state, alice, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx, state))
	assert.False(t, state.Authenticated())
	assert.Equal(t, 0, store.Len())

	resumed, err := m.Resume(ctx, token)
	require.NoError(t, err)
	assert.False(t, resumed.Authenticated())

	// clearing an anonymous state is fine
	require.NoError(t, m.Clear(ctx, state))
	require.NoError(t, m.Clear(ctx, nil))
}

func TestManager_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	m, store, clock := setupManager(t)

	_, err := m.Establish(ctx, Anonymous(), alice, ClientInfo{})
	require.NoError(t, err)
	clock.t = clock.t.Add(30 * time.Minute)
	_, err = m.Establish(ctx, Anonymous(), alice, ClientInfo{})
	require.NoError(t, err)

	clock.t = clock.t.Add(45 * time.Minute)
	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.Len())
}

type failingStore struct {
	*memory.SessionRepository
	err error
}

func (f failingStore) GetByTokenHash(context.Context, string) (*domain.Session, error) {
	return nil, f.err
}

func (f failingStore) Delete(context.Context, ulid.ULID) error { return f.err }

func TestManager_StorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	m := NewManager(failingStore{SessionRepository: memory.NewSessionRepository(), err: boom}, time.Hour)

	state, err := m.Resume(ctx, "some-token")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, state)
	assert.False(t, state.Authenticated())

	state = Anonymous()
	_, err = m.Establish(ctx, state, alice, ClientInfo{})
	require.NoError(t, err)

	err = m.Clear(ctx, state)
	assert.ErrorIs(t, err, boom)
	assert.False(t, state.Authenticated(), "state is anonymous even when delete fails")
}
