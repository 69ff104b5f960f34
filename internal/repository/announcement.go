package repository

import (
	"context"
	"time"

	"roomhub/internal/domain"
)

// AnnouncementRepository stores announcements and their comments.
type AnnouncementRepository interface {
	// Insert persists a new announcement.
	Insert(ctx context.Context, a *domain.Announcement) error

	// FindByID returns an announcement, or ErrAnnouncementNotFound.
	FindByID(ctx context.Context, id uint) (*domain.Announcement, error)

	// ListPostedByRoom returns the room's posted announcements oldest first,
	// with author names and comments (comment sender names joined).
	ListPostedByRoom(ctx context.Context, roomID uint) ([]domain.Announcement, error)

	// ListDue returns unposted announcements whose schedule instant is at or
	// before now.
	ListDue(ctx context.Context, now time.Time) ([]domain.Announcement, error)

	// MarkPosted flips an announcement to posted. Returns false if it was
	// already posted, so posting happens exactly once.
	MarkPosted(ctx context.Context, id uint) (bool, error)

	// InsertComment persists a comment on a posted announcement.
	InsertComment(ctx context.Context, c *domain.AnnouncementComment) error

	// DeleteByRoom removes the room's announcements and their comments.
	DeleteByRoom(ctx context.Context, roomID uint) error
}
