package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// AnnouncementPage is one page of a room's posted announcements, selected
// from the most recent backward but chronological within the page.
type AnnouncementPage struct {
	HasMoreMessages bool                        `json:"hasMoreMessages"`
	Data            []domain.CachedAnnouncement `json:"data"`
}

// CreateAnnouncementInput carries the caller-supplied announcement fields.
type CreateAnnouncementInput struct {
	Title       string
	Description string
	Attachment  string
	AuthorID    uint
	AuthorName  string
	ScheduledAt *time.Time
}

// AnnouncementService manages announcements. Unlike discussion messages they
// are persisted synchronously at creation; only the cache copy is
// write-behind, so they never pass through the flush ledger.
type AnnouncementService struct {
	rooms         repository.RoomRepository
	announcements repository.AnnouncementRepository
	store         cache.Store
	notifier      Notifier
}

// NewAnnouncementService creates an AnnouncementService. notifier may be nil.
func NewAnnouncementService(rooms repository.RoomRepository, announcements repository.AnnouncementRepository, store cache.Store, notifier Notifier) *AnnouncementService {
	if rooms == nil || announcements == nil || store == nil {
		panic("dependencies cannot be nil for AnnouncementService")
	}
	return &AnnouncementService{rooms: rooms, announcements: announcements, store: store, notifier: orNop(notifier)}
}

// Create persists a new announcement. Without a schedule it is posted
// immediately and its cache copy appended to the room's ranked key; with a
// schedule it stays unposted until the scheduled instant.
func (s *AnnouncementService) Create(ctx context.Context, roomToken string, in CreateAnnouncementInput) (*domain.Announcement, error) {
	if roomToken == "" || in.Title == "" {
		return nil, ErrValidation
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_token": roomToken, "author_id": in.AuthorID})

	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("announcement: room lookup failed")
		return nil, ErrInternalServer
	}

	a := &domain.Announcement{
		RoomID:      room.ID,
		AuthorID:    in.AuthorID,
		Title:       in.Title,
		Description: in.Description,
		Attachment:  in.Attachment,
		ScheduledAt: in.ScheduledAt,
		Posted:      in.ScheduledAt == nil,
		AuthorName:  in.AuthorName,
	}
	if err := s.announcements.Insert(ctx, a); err != nil {
		logCtx.WithError(err).Error("announcement: insert failed")
		return nil, ErrInternalServer
	}

	if a.Posted {
		if err := s.appendCached(ctx, roomToken, a); err != nil {
			// Soft failure: the durable record exists, readers back-fill.
			logCtx.WithError(err).Warn("announcement: cache append failed")
		}
		s.notifier.BroadcastToRoom(roomToken, "announcement", toCachedAnnouncement(a))
	}
	return a, nil
}

// PostScheduled flips every due announcement to posted, exactly once each,
// invalidates the room's announcement cache and notifies the room. Invoked
// on an external timer. Returns how many announcements were posted.
func (s *AnnouncementService) PostScheduled(ctx context.Context, now time.Time) (int, error) {
	due, err := s.announcements.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("announcement: list due: %w", err)
	}
	posted := 0
	for _, a := range due {
		a := a
		flipped, err := s.announcements.MarkPosted(ctx, a.ID)
		if err != nil {
			logrus.WithError(err).WithField("announcement_id", a.ID).Error("announcement: mark posted failed")
			continue
		}
		if !flipped {
			// Another process won the race; it already posted this one.
			continue
		}
		room, err := s.rooms.FindByID(ctx, a.RoomID)
		if err != nil {
			logrus.WithError(err).WithField("room_id", a.RoomID).Warn("announcement: room lookup after posting failed")
			posted++
			continue
		}
		// Force a durable refetch so the next page read sees the new post.
		if err := s.store.DeleteKey(ctx, cache.AnnouncementsKey(room.Token)); err != nil {
			logrus.WithError(err).WithField("room_token", room.Token).Warn("announcement: cache invalidation failed")
		}
		a.Posted = true
		s.notifier.BroadcastToRoom(room.Token, "announcement", toCachedAnnouncement(&a))
		posted++
	}
	return posted, nil
}

// AddComment appends a comment to a posted announcement.
func (s *AnnouncementService) AddComment(ctx context.Context, announcementID, senderID uint, senderName, body string) (*domain.AnnouncementComment, error) {
	if body == "" {
		return nil, ErrValidation
	}
	a, err := s.announcements.FindByID(ctx, announcementID)
	if err != nil {
		if errors.Is(err, repository.ErrAnnouncementNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, ErrInternalServer
	}
	c := &domain.AnnouncementComment{
		AnnouncementID: a.ID,
		SenderID:       senderID,
		Body:           body,
		SenderName:     senderName,
	}
	if err := s.announcements.InsertComment(ctx, c); err != nil {
		logrus.WithError(err).WithField("announcement_id", a.ID).Error("announcement: insert comment failed")
		return nil, ErrInternalServer
	}

	room, err := s.rooms.FindByID(ctx, a.RoomID)
	if err == nil {
		s.notifier.BroadcastToRoom(room.Token, "announcementComment", domain.CachedComment{
			SenderID:   c.SenderID,
			SenderName: c.SenderName,
			Body:       c.Body,
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c, nil
}

// GetPage returns one page of the room's posted announcements with their
// comments, cache first, durable on a miss. Missing data is never an error.
func (s *AnnouncementService) GetPage(ctx context.Context, roomToken string, page, limit int) (*AnnouncementPage, error) {
	if page < 1 || limit < 1 {
		return nil, ErrValidation
	}
	result := &AnnouncementPage{Data: []domain.CachedAnnouncement{}}
	logCtx := logrus.WithFields(logrus.Fields{"room_token": roomToken, "page": page, "limit": limit})

	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return result, nil
		}
		logCtx.WithError(err).Error("announcement: room lookup failed")
		return nil, ErrInternalServer
	}

	key := cache.AnnouncementsKey(roomToken)
	count, err := s.store.CountRanked(ctx, key)
	if err != nil {
		logCtx.WithError(err).Warn("announcement: cache count failed, using durable store")
		count = 0
	}

	if count > 0 {
		start, end, hasMore := pageWindow(page, limit, int(count))
		raws, err := s.store.RevRangeRanked(ctx, key, int64(start), int64(end-1))
		if err != nil {
			logCtx.WithError(err).Warn("announcement: cache range failed, using durable store")
			raws = nil
		}
		anns := make([]domain.CachedAnnouncement, 0, len(raws))
		for _, raw := range raws {
			var a domain.CachedAnnouncement
			if err := json.Unmarshal(raw, &a); err != nil {
				logCtx.WithError(err).Warn("announcement: dropping unreadable cached record")
				continue
			}
			anns = append(anns, a)
		}
		if len(anns) > 0 {
			reverse(anns)
			result.HasMoreMessages = hasMore
			result.Data = anns
			return result, nil
		}
	}

	durable, err := s.announcements.ListPostedByRoom(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("announcement: durable read failed")
		return nil, ErrInternalServer
	}
	records := make([]domain.CachedAnnouncement, len(durable))
	for i := range durable {
		records[i] = toCachedAnnouncement(&durable[i])
	}

	if err := s.store.DeleteKey(ctx, key); err != nil {
		logCtx.WithError(err).Warn("announcement: cache reset failed")
	} else {
		for _, r := range records {
			payload, err := json.Marshal(r)
			if err != nil {
				continue
			}
			if _, err := s.store.AppendRanked(ctx, key, payload, bufferTTL); err != nil {
				logCtx.WithError(err).Warn("announcement: cache back-fill failed")
				break
			}
		}
	}

	start, end, hasMore := pageWindow(page, limit, len(records))
	result.HasMoreMessages = hasMore
	result.Data = windowNewestFirst(records, start, end)
	return result, nil
}

func (s *AnnouncementService) appendCached(ctx context.Context, roomToken string, a *domain.Announcement) error {
	payload, err := json.Marshal(toCachedAnnouncement(a))
	if err != nil {
		return fmt.Errorf("announcement: encode cached record: %w", err)
	}
	if _, err := s.store.AppendRanked(ctx, cache.AnnouncementsKey(roomToken), payload, bufferTTL); err != nil {
		return err
	}
	return nil
}

func toCachedAnnouncement(a *domain.Announcement) domain.CachedAnnouncement {
	rec := domain.CachedAnnouncement{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Attachment:  a.Attachment,
		AuthorID:    a.AuthorID,
		AuthorName:  a.AuthorName,
		Posted:      a.Posted,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		Comments:    make([]domain.CachedComment, 0, len(a.Comments)),
	}
	if a.ScheduledAt != nil {
		rec.ScheduledAt = a.ScheduledAt.UTC().Format(time.RFC3339)
	}
	for _, c := range a.Comments {
		rec.Comments = append(rec.Comments, domain.CachedComment{
			SenderID:   c.SenderID,
			SenderName: c.SenderName,
			Body:       c.Body,
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rec
}
