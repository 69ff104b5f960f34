package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

const (
	roomTokenLength   = 12
	roomTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomListTTL       = time.Hour
)

// RoomService handles room lifecycle, membership and the read-through caches
// for per-user room listings.
type RoomService struct {
	rooms       repository.RoomRepository
	users       repository.UserRepository
	invitations repository.InvitationRepository
	announce    repository.AnnouncementRepository
	discussions repository.DiscussionRepository
	store       cache.Store
	roomLimit   int
}

// NewRoomService creates a RoomService. roomLimit caps how many rooms a
// single user may own; zero or negative disables the cap.
func NewRoomService(
	rooms repository.RoomRepository,
	users repository.UserRepository,
	invitations repository.InvitationRepository,
	announce repository.AnnouncementRepository,
	discussions repository.DiscussionRepository,
	store cache.Store,
	roomLimit int,
) *RoomService {
	if rooms == nil || users == nil || invitations == nil || announce == nil || discussions == nil || store == nil {
		panic("dependencies cannot be nil for RoomService")
	}
	return &RoomService{
		rooms:       rooms,
		users:       users,
		invitations: invitations,
		announce:    announce,
		discussions: discussions,
		store:       store,
		roomLimit:   roomLimit,
	}
}

// CreateRoom creates a room owned by ownerID with a fresh unique token.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uint, name string, private bool) (*domain.Room, error) {
	if name == "" {
		return nil, ErrValidation
	}
	if s.roomLimit > 0 {
		count, err := s.rooms.CountByOwner(ctx, ownerID)
		if err != nil {
			return nil, ErrInternalServer
		}
		if count >= int64(s.roomLimit) {
			return nil, ErrRoomLimitReached
		}
	}

	token, err := s.generateUniqueToken(ctx)
	if err != nil {
		return nil, ErrInternalServer
	}
	room := &domain.Room{
		OwnerID: ownerID,
		Name:    name,
		Token:   token,
		Private: private,
	}
	if err := s.rooms.Save(ctx, room); err != nil {
		logrus.WithError(err).Error("room: create failed")
		return nil, ErrInternalServer
	}
	s.invalidate(ctx, cache.UserRoomsKey(ownerID))
	return room, nil
}

// generateUniqueToken draws random tokens until one is free. Uniqueness is
// ultimately enforced by the column index; the pre-check just avoids burning
// an insert on the rare collision.
func (s *RoomService) generateUniqueToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		token, err := randomToken(roomTokenLength)
		if err != nil {
			return "", err
		}
		exists, err := s.rooms.TokenExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", errors.New("could not generate a unique room token")
}

func randomToken(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(roomTokenAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = roomTokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GetRoomByToken resolves a room by its invite token.
func (s *RoomService) GetRoomByToken(ctx context.Context, token string) (*domain.Room, error) {
	room, err := s.rooms.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInternalServer
	}
	return room, nil
}

// InviteParticipants creates pending invitations for the given emails on a
// room owned by ownerID. Unknown emails are skipped, duplicates collapsed.
// Returns the emails that were actually invited.
func (s *RoomService) InviteParticipants(ctx context.Context, ownerID uint, roomToken string, emails []string) ([]string, error) {
	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInternalServer
	}
	if room.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	seen := make(map[string]struct{}, len(emails))
	var batch []domain.RoomInvitation
	var invited []string
	for _, email := range emails {
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				continue
			}
			return nil, ErrInternalServer
		}
		if user.ID == ownerID {
			continue
		}
		batch = append(batch, domain.RoomInvitation{
			RoomID:   room.ID,
			ToUserID: user.ID,
			State:    domain.InvitationPending,
		})
		invited = append(invited, email)
	}
	if len(batch) == 0 {
		return invited, nil
	}
	if err := s.invitations.InsertBatch(ctx, batch); err != nil {
		logrus.WithError(err).Error("room: invitation insert failed")
		return nil, ErrInternalServer
	}
	for _, inv := range batch {
		s.invalidate(ctx, cache.UserInvitationsKey(inv.ToUserID))
	}
	return invited, nil
}

// Enroll resolves a pending invitation. accept=true joins the user to the
// room; either way the invitation leaves the pending state.
func (s *RoomService) Enroll(ctx context.Context, userID, invitationID uint, accept bool) (*domain.Room, error) {
	inv, err := s.invitations.FindPendingByID(ctx, invitationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, ErrInternalServer
	}

	if accept {
		inv.State = domain.InvitationAccepted
	} else {
		inv.State = domain.InvitationRejected
	}
	if err := s.invitations.Save(ctx, inv); err != nil {
		return nil, ErrInternalServer
	}
	if accept {
		if err := s.rooms.AddParticipant(ctx, inv.RoomID, userID); err != nil {
			return nil, ErrInternalServer
		}
		s.invalidate(ctx, cache.UserEnrolledRoomsKey(userID))
	}
	s.invalidate(ctx, cache.UserInvitationsKey(userID))
	if !accept {
		return nil, nil
	}
	return &inv.Room, nil
}

// GetUserRooms lists rooms owned by userID, read through the cache.
func (s *RoomService) GetUserRooms(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.getOrSet(ctx, cache.UserRoomsKey(userID), &rooms, func() (interface{}, error) {
		return s.rooms.ListByOwner(ctx, userID)
	})
	return rooms, err
}

// GetUserEnrolledRooms lists rooms userID has joined, read through the cache.
func (s *RoomService) GetUserEnrolledRooms(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := s.getOrSet(ctx, cache.UserEnrolledRoomsKey(userID), &rooms, func() (interface{}, error) {
		return s.rooms.ListEnrolled(ctx, userID)
	})
	return rooms, err
}

// GetUserInvitations lists pending invitations for userID, read through the
// cache.
func (s *RoomService) GetUserInvitations(ctx context.Context, userID uint) ([]domain.RoomInvitation, error) {
	var invs []domain.RoomInvitation
	err := s.getOrSet(ctx, cache.UserInvitationsKey(userID), &invs, func() (interface{}, error) {
		return s.invitations.ListPendingByUser(ctx, userID)
	})
	return invs, err
}

// getOrSet fills dest from the cache, falling back to load and populating
// the entry on a miss. A broken cache degrades to serving straight from the
// loader.
func (s *RoomService) getOrSet(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	raw, err := s.store.GetBlob(ctx, key)
	if err == nil {
		if err := json.Unmarshal(raw, dest); err == nil {
			return nil
		}
		s.invalidate(ctx, key)
	} else if !errors.Is(err, cache.ErrKeyMiss) {
		logrus.WithError(err).WithField("key", key).Warn("room: cache read failed")
	}

	fresh, err := load()
	if err != nil {
		return ErrInternalServer
	}
	raw, err = json.Marshal(fresh)
	if err != nil {
		return ErrInternalServer
	}
	if err := s.store.SetBlob(ctx, key, raw, roomListTTL); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("room: cache write failed")
	}
	return json.Unmarshal(raw, dest)
}

// DeleteRoom removes a room owned by ownerID along with its announcements,
// discussion history, invitations and every cache entry keyed by its token.
func (s *RoomService) DeleteRoom(ctx context.Context, ownerID uint, roomToken string) error {
	room, err := s.rooms.FindByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return ErrInternalServer
	}
	if room.OwnerID != ownerID {
		return ErrForbidden
	}

	if err := s.announce.DeleteByRoom(ctx, room.ID); err != nil {
		return ErrInternalServer
	}
	if err := s.discussions.DeleteByRoom(ctx, room.ID); err != nil {
		return ErrInternalServer
	}
	if err := s.invitations.DeleteByRoom(ctx, room.ID); err != nil {
		return ErrInternalServer
	}
	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		return ErrInternalServer
	}

	s.invalidate(ctx,
		cache.RoomPresenceKey(roomToken),
		cache.ConferencePresenceKey(roomToken),
		cache.DiscussionKey(roomToken),
		cache.LedgerKey(roomToken),
		cache.AnnouncementsKey(roomToken),
		cache.UserRoomsKey(ownerID),
	)
	// Enrollment and invitation listings are keyed per user; sweep them all
	// rather than resolving every member.
	if err := s.store.DeleteMatching(ctx, cache.EnrolledRoomsPattern()); err != nil {
		logrus.WithError(err).Warn("room: enrolled-rooms cache sweep failed")
	}
	if err := s.store.DeleteMatching(ctx, cache.InvitationsPattern()); err != nil {
		logrus.WithError(err).Warn("room: invitations cache sweep failed")
	}
	return nil
}

func (s *RoomService) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.store.DeleteKey(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("room: cache invalidation failed")
		}
	}
}
