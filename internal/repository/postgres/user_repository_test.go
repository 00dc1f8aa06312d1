package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-portal/internal/domain"
	"account-portal/internal/repository"
)

var userColumns = []string{"id", "username", "email", "phone", "password_hash", "created_at"}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name         string
		setupMock    func(mock pgxmock.PgxPoolIface)
		wantID       int64
		wantConflict bool
		wantErr      bool
	}{
		{
			name: "inserts and returns id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "alice@example.com", "", "hash", pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
			},
			wantID: 7,
		},
		{
			name: "unique violation becomes conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "alice@example.com", "", "hash", pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_users_email"})
			},
			wantErr:      true,
			wantConflict: true,
		},
		{
			name: "other errors are not conflicts",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "alice@example.com", "", "hash", pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			user := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
			id, err := NewUserRepository(mock).Create(context.Background(), user)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantConflict, repository.IsConflict(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
				assert.Equal(t, tt.wantID, user.ID)
				assert.False(t, user.CreatedAt.IsZero())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, username, email, phone, password_hash, created_at\s+FROM users`).
			WithArgs("alice@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(int64(3), "alice", "alice@example.com", "555", "hash", created))

		user, err := NewUserRepository(mock).FindByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, &domain.User{
			ID:           3,
			Username:     "alice",
			Email:        "alice@example.com",
			Phone:        "555",
			PasswordHash: "hash",
			CreatedAt:    created,
		}, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users`).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns))

		_, err = NewUserRepository(mock).FindByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users`).
			WithArgs("alice@example.com").
			WillReturnError(errors.New("connection reset"))

		_, err = NewUserRepository(mock).FindByEmail(context.Background(), "alice@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgres://u:p@db:5432/app"))
	assert.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgresql://u:p@db:5432/app"))
	assert.Equal(t, "pgx5://db/app", migrateURL("pgx5://db/app"))
}
