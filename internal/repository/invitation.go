package repository

import (
	"context"

	"roomhub/internal/domain"
)

// InvitationRepository stores room invitations.
type InvitationRepository interface {
	// InsertBatch persists a batch of invitations as one insert.
	InsertBatch(ctx context.Context, invs []domain.RoomInvitation) error

	// FindPendingByID returns a pending invitation addressed to the user,
	// with the room attached, or ErrInvitationNotFound.
	FindPendingByID(ctx context.Context, id, userID uint) (*domain.RoomInvitation, error)

	// Save updates an invitation (enrollment decision).
	Save(ctx context.Context, inv *domain.RoomInvitation) error

	// ListPendingByUser returns a user's pending invitations with the room
	// record attached.
	ListPendingByUser(ctx context.Context, userID uint) ([]domain.RoomInvitation, error)

	// DeleteByRoom removes every invitation referencing a room.
	DeleteByRoom(ctx context.Context, roomID uint) error
}
