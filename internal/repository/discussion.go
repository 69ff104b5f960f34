package repository

import (
	"context"

	"roomhub/internal/domain"
)

// DiscussionRepository stores the durable side of room discussions: one
// lazily created thread per room and its persisted messages.
type DiscussionRepository interface {
	// FindThreadByRoomID returns the room's thread, or ErrThreadNotFound.
	FindThreadByRoomID(ctx context.Context, roomID uint) (*domain.DiscussionThread, error)

	// FindOrCreateThread returns the room's thread, creating it if absent.
	// Idempotent per room: an existing thread is reused, never duplicated.
	FindOrCreateThread(ctx context.Context, roomID uint, roomToken string) (*domain.DiscussionThread, error)

	// InsertMessages persists a batch of messages as one insert.
	InsertMessages(ctx context.Context, msgs []domain.DiscussionMessage) error

	// ListMessagesByThread returns every message of a thread in insertion
	// order, oldest first, with the sender's display name joined.
	ListMessagesByThread(ctx context.Context, threadID uint) ([]domain.DiscussionMessage, error)

	// DeleteByRoom removes the room's thread and all its messages.
	DeleteByRoom(ctx context.Context, roomID uint) error
}
