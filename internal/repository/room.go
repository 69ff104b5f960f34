package repository

import (
	"context"

	"roomhub/internal/domain"
)

// RoomRepository stores and retrieves rooms and their participant sets.
type RoomRepository interface {
	// FindByID returns the room with the given durable id, or ErrRoomNotFound.
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByToken returns the room with the given public token, or
	// ErrRoomNotFound.
	FindByToken(ctx context.Context, token string) (*domain.Room, error)

	// Save creates or updates a room.
	Save(ctx context.Context, room *domain.Room) error

	// Delete removes the room record itself. Cascading cleanup of dependent
	// records is the caller's responsibility.
	Delete(ctx context.Context, id uint) error

	// CountByOwner returns how many rooms a user owns.
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)

	// ListByOwner returns the rooms a user owns, newest first.
	ListByOwner(ctx context.Context, ownerID uint) ([]domain.Room, error)

	// ListEnrolled returns the private rooms a user is enrolled in, with the
	// owner's name joined.
	ListEnrolled(ctx context.Context, userID uint) ([]domain.Room, error)

	// AddParticipant enrolls a user into a room's participant set.
	AddParticipant(ctx context.Context, roomID, userID uint) error

	// TokenExists reports whether a room token is already taken.
	TokenExists(ctx context.Context, token string) (bool, error)
}
