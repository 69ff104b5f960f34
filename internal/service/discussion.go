package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

const (
	// bufferTTL bounds how long a room's message buffer lives without
	// activity; the buffer only holds recently active rooms.
	bufferTTL = 15 * time.Minute

	// cuidLength is the length of the short correlation id on each message.
	cuidLength = 5
)

// DiscussionPage is one page of a room's discussion, selected from the most
// recent message backward but chronological within the page.
type DiscussionPage struct {
	HasMoreMessages bool                     `json:"hasMoreMessages"`
	Data            []domain.BufferedMessage `json:"data"`
}

// DiscussionService is the write-behind buffer and paginated reader for room
// discussions. New messages land in the ranked cache key and the per-room
// pending-flush ledger; durable commit happens later in the flush sweep.
type DiscussionService struct {
	rooms       repository.RoomRepository
	discussions repository.DiscussionRepository
	store       cache.Store
	notifier    Notifier
}

// NewDiscussionService creates a DiscussionService. notifier may be nil.
func NewDiscussionService(rooms repository.RoomRepository, discussions repository.DiscussionRepository, store cache.Store, notifier Notifier) *DiscussionService {
	if rooms == nil || discussions == nil || store == nil {
		panic("dependencies cannot be nil for DiscussionService")
	}
	return &DiscussionService{rooms: rooms, discussions: discussions, store: store, notifier: orNop(notifier)}
}

// AppendMessage buffers a new discussion message. The record is appended to
// the room's ranked cache key and, tagged with the room's durable id, to the
// room's ledger entry. Both writes must succeed for the call to succeed;
// neither is rolled back on the other's failure — the cache is a soft
// accelerator and the flush plus client retry guarantee durability.
func (s *DiscussionService) AppendMessage(ctx context.Context, roomToken string, senderID uint, senderName, body string) (*domain.BufferedMessage, error) {
	if roomToken == "" || body == "" {
		return nil, ErrValidation
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_token": roomToken, "sender_id": senderID})

	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("discussion: room lookup failed")
		return nil, ErrInternalServer
	}

	msg := domain.BufferedMessage{
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		SentOn:     time.Now().UTC().Format(time.RFC3339),
		CUID:       shortID(cuidLength),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("discussion: encode message: %w", err)
	}

	if _, err := s.store.AppendRanked(ctx, cache.DiscussionKey(roomToken), payload, bufferTTL); err != nil {
		logCtx.WithError(err).Warn("discussion: buffer append failed")
		return nil, ErrCacheUnavailable
	}

	tagged := msg
	tagged.RoomID = room.ID
	if err := s.appendToLedger(ctx, roomToken, tagged); err != nil {
		logCtx.WithError(err).Warn("discussion: ledger append failed")
		return nil, ErrCacheUnavailable
	}

	s.notifier.BroadcastToRoom(roomToken, "discussionMessage", msg)
	return &msg, nil
}

func (s *DiscussionService) appendToLedger(ctx context.Context, roomToken string, msg domain.BufferedMessage) error {
	_, err := s.store.UpdateBlob(ctx, cache.LedgerKey(roomToken), 0, func(prev []byte, found bool) ([]byte, error) {
		ledger := domain.RoomLedger{Version: domain.RecordSchemaVersion}
		if found {
			if err := json.Unmarshal(prev, &ledger); err != nil {
				return nil, fmt.Errorf("decode ledger: %w", err)
			}
		}
		ledger.Version = domain.RecordSchemaVersion
		ledger.Messages = append(ledger.Messages, msg)
		return json.Marshal(ledger)
	})
	return err
}

// GetPage returns one page of the room's discussion, preferring the
// ephemeral buffer and falling back to durable storage on a cold cache.
// Missing data is never an error: the result is an empty page.
func (s *DiscussionService) GetPage(ctx context.Context, roomToken string, page, limit int) (*DiscussionPage, error) {
	if page < 1 || limit < 1 {
		return nil, ErrValidation
	}
	result := &DiscussionPage{Data: []domain.BufferedMessage{}}
	logCtx := logrus.WithFields(logrus.Fields{"room_token": roomToken, "page": page, "limit": limit})

	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return result, nil
		}
		logCtx.WithError(err).Error("discussion: room lookup failed")
		return nil, ErrInternalServer
	}

	key := cache.DiscussionKey(roomToken)
	count, err := s.store.CountRanked(ctx, key)
	if err != nil {
		// A failed or timed-out cache call degrades to the durable path.
		logCtx.WithError(err).Warn("discussion: cache count failed, using durable store")
		count = 0
	}

	if count > 0 {
		start, end, hasMore := pageWindow(page, limit, int(count))
		raws, err := s.store.RevRangeRanked(ctx, key, int64(start), int64(end-1))
		if err != nil {
			logCtx.WithError(err).Warn("discussion: cache range failed, using durable store")
			raws = nil
		}
		msgs := make([]domain.BufferedMessage, 0, len(raws))
		for _, raw := range raws {
			var m domain.BufferedMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				logCtx.WithError(err).Warn("discussion: dropping unreadable cached message")
				continue
			}
			msgs = append(msgs, m)
		}
		if len(msgs) > 0 {
			reverse(msgs)
			result.HasMoreMessages = hasMore
			result.Data = msgs
			return result, nil
		}
	}

	return s.getPageDurable(ctx, room, key, page, limit, result, logCtx)
}

// getPageDurable is the cold path: it replays the durable store's canonical
// order into the cache so subsequent pages hit the buffer with exactly the
// ordering page 1 saw, then serves the requested window.
func (s *DiscussionService) getPageDurable(ctx context.Context, room *domain.Room, key string, page, limit int, result *DiscussionPage, logCtx *logrus.Entry) (*DiscussionPage, error) {
	thread, err := s.discussions.FindThreadByRoomID(ctx, room.ID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return result, nil
		}
		logCtx.WithError(err).Error("discussion: thread lookup failed")
		return nil, ErrInternalServer
	}
	durable, err := s.discussions.ListMessagesByThread(ctx, thread.ID)
	if err != nil {
		logCtx.WithError(err).Error("discussion: durable read failed")
		return nil, ErrInternalServer
	}
	records := make([]domain.BufferedMessage, len(durable))
	for i, m := range durable {
		records[i] = domain.BufferedMessage{
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Body:       m.Body,
			SentOn:     m.SentAt.UTC().Format(time.RFC3339),
			CUID:       shortID(cuidLength),
		}
	}

	// Rebuild the buffer from scratch; partial cache state must not survive
	// across the miss boundary.
	if err := s.store.DeleteKey(ctx, key); err != nil {
		logCtx.WithError(err).Warn("discussion: cache reset failed")
	} else {
		for _, r := range records {
			payload, err := json.Marshal(r)
			if err != nil {
				continue
			}
			if _, err := s.store.AppendRanked(ctx, key, payload, bufferTTL); err != nil {
				logCtx.WithError(err).Warn("discussion: cache back-fill failed")
				break
			}
		}
	}

	start, end, hasMore := pageWindow(page, limit, len(records))
	result.HasMoreMessages = hasMore
	result.Data = windowNewestFirst(records, start, end)
	return result, nil
}

// pageWindow computes the newest-first page window [start, end) over total
// items and whether more data exists beyond it. end is clamped to total.
func pageWindow(page, limit, total int) (start, end int, hasMore bool) {
	start = (page - 1) * limit
	end = page * limit
	if end < total {
		hasMore = true
	}
	if end > total {
		end = total
	}
	return start, end, hasMore
}

// windowNewestFirst selects the newest-first window [start, end) from an
// oldest-first slice and returns it in chronological order.
func windowNewestFirst[T any](asc []T, start, end int) []T {
	n := len(asc)
	if start >= n || start >= end {
		return []T{}
	}
	out := make([]T, end-start)
	copy(out, asc[n-end:n-start])
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// shortID generates a short random alphabetic correlation id.
func shortID(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed marker rather than panicking in a request path.
		return strings.Repeat("x", n)
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}
