package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// drainedTTL is the expiry written with a cleared ledger entry. An emptied
// blob evaporates on its own unless a new append rewrites it first; non-empty
// ledger entries never expire.
const drainedTTL = time.Minute

// FlushReport summarizes one flush sweep.
type FlushReport struct {
	Rooms    int      // rooms drained successfully
	Messages int      // messages persisted
	Failed   []string // room tokens whose ledger entries were preserved
}

// FlushService drains the pending-flush ledger into durable storage. Each
// room has its own ledger entry, so a room is drained and cleared as a single
// unit and a failure in one room never re-inserts or drops another room's
// messages — retries are idempotent by construction.
type FlushService struct {
	discussions repository.DiscussionRepository
	store       cache.Store

	mu sync.Mutex // single-flight: overlapping sweeps are rejected
}

// NewFlushService creates a FlushService.
func NewFlushService(discussions repository.DiscussionRepository, store cache.Store) *FlushService {
	if discussions == nil || store == nil {
		panic("dependencies cannot be nil for FlushService")
	}
	return &FlushService{discussions: discussions, store: store}
}

// FlushBufferedMessages runs one sweep: for every room with a ledger entry,
// find or lazily create its durable discussion thread, persist the buffered
// messages as one batch and clear the entry. A room whose batch insert fails
// has its messages restored to the ledger for the next tick. Returns
// ErrFlushInFlight if a sweep is already running in this process, and
// ErrFlushPartial (with the report) if any room failed.
func (s *FlushService) FlushBufferedMessages(ctx context.Context) (*FlushReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrFlushInFlight
	}
	defer s.mu.Unlock()

	report := &FlushReport{}
	keys, err := s.store.Keys(ctx, cache.LedgerPattern())
	if err != nil {
		return report, ErrCacheUnavailable
	}
	if len(keys) == 0 {
		logrus.Debug("flush: nothing to flush")
		return report, nil
	}

	for _, key := range keys {
		token := cache.TokenFromLedgerKey(key)
		logCtx := logrus.WithField("room_token", token)

		taken, err := s.takeLedger(ctx, key)
		if err != nil {
			logCtx.WithError(err).Warn("flush: could not take ledger entry")
			report.Failed = append(report.Failed, token)
			continue
		}
		if len(taken) == 0 {
			continue
		}

		if err := s.persistRoom(ctx, token, taken); err != nil {
			logCtx.WithError(err).Error("flush: durable insert failed, restoring ledger entry")
			s.restoreLedger(ctx, key, taken)
			report.Failed = append(report.Failed, token)
			continue
		}
		report.Rooms++
		report.Messages += len(taken)
		logCtx.WithField("messages", len(taken)).Info("flush: room drained")
	}

	if len(report.Failed) > 0 {
		return report, ErrFlushPartial
	}
	return report, nil
}

// takeLedger atomically captures and clears a room's ledger entry. Messages
// appended after the capture land in the (now empty) entry and are picked up
// by the next sweep.
func (s *FlushService) takeLedger(ctx context.Context, key string) ([]domain.BufferedMessage, error) {
	var taken []domain.BufferedMessage
	_, err := s.store.UpdateBlob(ctx, key, drainedTTL, func(prev []byte, found bool) ([]byte, error) {
		taken = nil
		if found {
			var ledger domain.RoomLedger
			if err := json.Unmarshal(prev, &ledger); err != nil {
				return nil, err
			}
			taken = ledger.Messages
		}
		if len(taken) == 0 {
			return nil, cache.ErrNoUpdate
		}
		return json.Marshal(domain.RoomLedger{Version: domain.RecordSchemaVersion})
	})
	if err != nil {
		if errors.Is(err, cache.ErrNoUpdate) {
			return nil, nil
		}
		return nil, err
	}
	return taken, nil
}

// restoreLedger prepends the taken messages back onto the room's ledger
// entry, ahead of anything appended since the capture, preserving order.
func (s *FlushService) restoreLedger(ctx context.Context, key string, taken []domain.BufferedMessage) {
	_, err := s.store.UpdateBlob(ctx, key, 0, func(prev []byte, found bool) ([]byte, error) {
		ledger := domain.RoomLedger{Version: domain.RecordSchemaVersion}
		if found {
			if err := json.Unmarshal(prev, &ledger); err != nil {
				ledger = domain.RoomLedger{Version: domain.RecordSchemaVersion}
			}
		}
		ledger.Version = domain.RecordSchemaVersion
		ledger.Messages = append(append([]domain.BufferedMessage{}, taken...), ledger.Messages...)
		return json.Marshal(ledger)
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("flush: ledger restore failed, messages remain durable-pending in the buffer only")
	}
}

func (s *FlushService) persistRoom(ctx context.Context, token string, msgs []domain.BufferedMessage) error {
	roomID := msgs[0].RoomID
	thread, err := s.discussions.FindOrCreateThread(ctx, roomID, token)
	if err != nil {
		return err
	}
	batch := make([]domain.DiscussionMessage, len(msgs))
	for i, m := range msgs {
		sentAt, err := time.Parse(time.RFC3339, m.SentOn)
		if err != nil {
			sentAt = time.Now().UTC()
		}
		batch[i] = domain.DiscussionMessage{
			ThreadID: thread.ID,
			SenderID: m.SenderID,
			Body:     m.Body,
			SentAt:   sentAt,
		}
	}
	return s.discussions.InsertMessages(ctx, batch)
}
