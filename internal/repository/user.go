package repository

import (
	"context"

	"account-portal/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	// FindByEmail looks a user up by normalized email. Returns ErrNotFound
	// when no user matches.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts the user and assigns its ID. A duplicate email is
	// rejected by the store with a *ConflictError.
	Create(ctx context.Context, user *domain.User) (int64, error)
}
