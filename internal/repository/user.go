package repository

import (
	"context"

	"roomhub/internal/domain"
)

// UserRepository stores and retrieves user accounts.
type UserRepository interface {
	// FindByID returns the user with the given id, or ErrUserNotFound.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByEmail returns the user with the given email, or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Save creates or updates a user.
	Save(ctx context.Context, user *domain.User) error
}
