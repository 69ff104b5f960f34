package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
)

// PresenceService tracks which connections are currently in a room. Presence
// is entirely ephemeral: one blob per room in the active cache backend, no
// durable counterpart.
type PresenceService struct {
	store cache.Store
}

// NewPresenceService creates a PresenceService.
func NewPresenceService(store cache.Store) *PresenceService {
	if store == nil {
		panic("cache store cannot be nil for PresenceService")
	}
	return &PresenceService{store: store}
}

// Join adds a participant to the room's presence blob. A rejoin by the same
// user replaces their stale entry rather than duplicating it.
func (s *PresenceService) Join(ctx context.Context, roomToken string, userID uint, connectionID, name string) (*domain.PresenceEntry, error) {
	entry := domain.PresenceEntry{
		ParticipantID: strconv.FormatUint(uint64(userID), 10),
		ConnectionID:  connectionID,
		Name:          name,
	}
	return s.join(ctx, cache.RoomPresenceKey(roomToken), entry)
}

// Leave removes the entry whose connection id matches and returns the
// remaining participants. A room with no presence blob is a valid no-op:
// present reports false and no error is returned.
func (s *PresenceService) Leave(ctx context.Context, roomToken, connectionID string) ([]domain.PresenceEntry, bool, error) {
	return s.leave(ctx, cache.RoomPresenceKey(roomToken), connectionID)
}

// JoinConference is Join under the conference namespace. The connection id
// doubles as the participant identity; conference presence has no durable
// user linkage.
func (s *PresenceService) JoinConference(ctx context.Context, roomToken, connectionID, name string) (*domain.PresenceEntry, error) {
	entry := domain.PresenceEntry{
		ParticipantID: connectionID,
		ConnectionID:  connectionID,
		Name:          name,
	}
	return s.join(ctx, cache.ConferencePresenceKey(roomToken), entry)
}

// LeaveConference is Leave under the conference namespace.
func (s *PresenceService) LeaveConference(ctx context.Context, roomToken, connectionID string) ([]domain.PresenceEntry, bool, error) {
	return s.leave(ctx, cache.ConferencePresenceKey(roomToken), connectionID)
}

// List returns the room's current participants (empty if nobody joined yet).
func (s *PresenceService) List(ctx context.Context, roomToken string) ([]domain.PresenceEntry, error) {
	return s.list(ctx, cache.RoomPresenceKey(roomToken))
}

// ListConference returns the conference participants of a room.
func (s *PresenceService) ListConference(ctx context.Context, roomToken string) ([]domain.PresenceEntry, error) {
	return s.list(ctx, cache.ConferencePresenceKey(roomToken))
}

func (s *PresenceService) join(ctx context.Context, key string, entry domain.PresenceEntry) (*domain.PresenceEntry, error) {
	_, err := s.store.UpdateBlob(ctx, key, 0, func(prev []byte, found bool) ([]byte, error) {
		presence := domain.RoomPresence{Version: domain.RecordSchemaVersion}
		if found {
			if err := json.Unmarshal(prev, &presence); err != nil {
				// A corrupt blob is replaced wholesale; presence is ephemeral.
				logrus.WithError(err).WithField("key", key).Warn("presence: resetting unreadable blob")
				presence = domain.RoomPresence{Version: domain.RecordSchemaVersion}
			}
		}
		joined := presence.Joined[:0]
		for _, e := range presence.Joined {
			if e.ParticipantID != entry.ParticipantID {
				joined = append(joined, e)
			}
		}
		presence.Joined = append(joined, entry)
		return json.Marshal(presence)
	})
	if err != nil {
		return nil, fmt.Errorf("presence: join %s: %w", key, err)
	}
	return &entry, nil
}

func (s *PresenceService) leave(ctx context.Context, key, connectionID string) ([]domain.PresenceEntry, bool, error) {
	var remaining []domain.PresenceEntry
	_, err := s.store.UpdateBlob(ctx, key, 0, func(prev []byte, found bool) ([]byte, error) {
		if !found {
			return nil, cache.ErrNoUpdate
		}
		var presence domain.RoomPresence
		if err := json.Unmarshal(prev, &presence); err != nil {
			return nil, cache.ErrNoUpdate
		}
		joined := make([]domain.PresenceEntry, 0, len(presence.Joined))
		for _, e := range presence.Joined {
			if e.ConnectionID != connectionID {
				joined = append(joined, e)
			}
		}
		presence.Joined = joined
		presence.Version = domain.RecordSchemaVersion
		remaining = joined
		return json.Marshal(presence)
	})
	if err != nil {
		if errors.Is(err, cache.ErrNoUpdate) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("presence: leave %s: %w", key, err)
	}
	return remaining, true, nil
}

func (s *PresenceService) list(ctx context.Context, key string) ([]domain.PresenceEntry, error) {
	blob, err := s.store.GetBlob(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("presence: list %s: %w", key, err)
	}
	var presence domain.RoomPresence
	if err := json.Unmarshal(blob, &presence); err != nil {
		return nil, fmt.Errorf("presence: decode %s: %w", key, err)
	}
	return presence.Joined, nil
}
