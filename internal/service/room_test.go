package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
	"roomhub/internal/repository/mocks"
	"roomhub/internal/service"
)

type roomFixture struct {
	svc         *service.RoomService
	rooms       *mocks.RoomRepository
	users       *mocks.UserRepository
	invitations *mocks.InvitationRepository
	announce    *mocks.AnnouncementRepository
	discussions *mocks.DiscussionRepository
	store       *cache.LocalStore
}

func newRoomFixture(roomLimit int) *roomFixture {
	f := &roomFixture{
		rooms:       new(mocks.RoomRepository),
		users:       new(mocks.UserRepository),
		invitations: new(mocks.InvitationRepository),
		announce:    new(mocks.AnnouncementRepository),
		discussions: new(mocks.DiscussionRepository),
		store:       cache.NewLocalStore(),
	}
	f.svc = service.NewRoomService(f.rooms, f.users, f.invitations, f.announce, f.discussions, f.store, roomLimit)
	return f
}

func TestRoomService_CreateRoom(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	// Stale owned-rooms listing that creation must invalidate.
	require.NoError(t, f.store.SetBlob(ctx, cache.UserRoomsKey(7), []byte(`[]`), 0))

	f.rooms.On("CountByOwner", ctx, uint(7)).Return(int64(2), nil).Once()
	f.rooms.On("TokenExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.Room")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Room).ID = 42
		}).
		Return(nil).Once()

	room, err := f.svc.CreateRoom(ctx, 7, "design reviews", true)
	require.NoError(t, err)
	assert.Equal(t, uint(42), room.ID)
	assert.Equal(t, uint(7), room.OwnerID)
	assert.True(t, room.Private)
	assert.Len(t, room.Token, 12)

	_, err = f.store.GetBlob(ctx, cache.UserRoomsKey(7))
	assert.ErrorIs(t, err, cache.ErrKeyMiss, "owned-rooms listing was invalidated")
	f.rooms.AssertExpectations(t)
}

func TestRoomService_CreateRoomLimitReached(t *testing.T) {
	f := newRoomFixture(3)
	ctx := context.Background()

	f.rooms.On("CountByOwner", ctx, uint(7)).Return(int64(3), nil).Once()

	_, err := f.svc.CreateRoom(ctx, 7, "one too many", false)
	assert.ErrorIs(t, err, service.ErrRoomLimitReached)
	f.rooms.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoomValidation(t *testing.T) {
	f := newRoomFixture(10)

	_, err := f.svc.CreateRoom(context.Background(), 7, "", false)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestRoomService_CreateRoomRetriesTokenCollision(t *testing.T) {
	f := newRoomFixture(0)
	ctx := context.Background()

	f.rooms.On("TokenExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
	f.rooms.On("TokenExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	_, err := f.svc.CreateRoom(ctx, 7, "retry", false)
	require.NoError(t, err)
	f.rooms.AssertExpectations(t)
}

func TestRoomService_InviteParticipants(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	f.rooms.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123", OwnerID: 7}, nil).Once()
	f.users.On("FindByEmail", ctx, "ada@example.com").
		Return(&domain.User{ID: 20, Email: "ada@example.com"}, nil)
	f.users.On("FindByEmail", ctx, "owner@example.com").
		Return(&domain.User{ID: 7, Email: "owner@example.com"}, nil).Once()
	f.users.On("FindByEmail", ctx, "ghost@example.com").
		Return(nil, repository.ErrUserNotFound).Once()
	f.invitations.On("InsertBatch", ctx, mock.MatchedBy(func(batch []domain.RoomInvitation) bool {
		return len(batch) == 1 && batch[0].ToUserID == 20 && batch[0].State == domain.InvitationPending
	})).Return(nil).Once()

	// Duplicates collapse, the owner and unknown emails are skipped.
	invited, err := f.svc.InviteParticipants(ctx, 7, "tok123", []string{
		"ada@example.com", "ada@example.com", "owner@example.com", "ghost@example.com", "",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, invited)
	f.invitations.AssertExpectations(t)
}

func TestRoomService_InviteRequiresOwnership(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	f.rooms.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123", OwnerID: 7}, nil).Once()

	_, err := f.svc.InviteParticipants(ctx, 99, "tok123", []string{"ada@example.com"})
	assert.ErrorIs(t, err, service.ErrForbidden)
	f.invitations.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestRoomService_EnrollAccept(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	inv := &domain.RoomInvitation{
		ID:       3,
		RoomID:   5,
		ToUserID: 20,
		State:    domain.InvitationPending,
		Room:     domain.Room{ID: 5, Token: "tok123", Name: "standup"},
	}
	f.invitations.On("FindPendingByID", ctx, uint(3), uint(20)).Return(inv, nil).Once()
	f.invitations.On("Save", ctx, mock.MatchedBy(func(saved *domain.RoomInvitation) bool {
		return saved.State == domain.InvitationAccepted
	})).Return(nil).Once()
	f.rooms.On("AddParticipant", ctx, uint(5), uint(20)).Return(nil).Once()

	room, err := f.svc.Enroll(ctx, 20, 3, true)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "tok123", room.Token)
	f.rooms.AssertExpectations(t)
	f.invitations.AssertExpectations(t)
}

func TestRoomService_EnrollReject(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	inv := &domain.RoomInvitation{ID: 3, RoomID: 5, ToUserID: 20, State: domain.InvitationPending}
	f.invitations.On("FindPendingByID", ctx, uint(3), uint(20)).Return(inv, nil).Once()
	f.invitations.On("Save", ctx, mock.MatchedBy(func(saved *domain.RoomInvitation) bool {
		return saved.State == domain.InvitationRejected
	})).Return(nil).Once()

	room, err := f.svc.Enroll(ctx, 20, 3, false)
	require.NoError(t, err)
	assert.Nil(t, room)
	f.rooms.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_EnrollUnknownInvitation(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	f.invitations.On("FindPendingByID", ctx, uint(404), uint(20)).
		Return(nil, repository.ErrInvitationNotFound).Once()

	_, err := f.svc.Enroll(ctx, 20, 404, true)
	assert.ErrorIs(t, err, service.ErrInvitationNotFound)
}

func TestRoomService_GetUserRoomsReadThrough(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	owned := []domain.Room{{ID: 1, Token: "aaa", Name: "one", OwnerID: 7}}
	f.rooms.On("ListByOwner", ctx, uint(7)).Return(owned, nil).Once()

	first, err := f.svc.GetUserRooms(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, owned, first)

	// Second read is served from the cache; the repository is not consulted.
	second, err := f.svc.GetUserRooms(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, owned, second)
	f.rooms.AssertExpectations(t)
}

func TestRoomService_DeleteRoom(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	f.rooms.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123", OwnerID: 7}, nil).Once()
	f.announce.On("DeleteByRoom", ctx, uint(5)).Return(nil).Once()
	f.discussions.On("DeleteByRoom", ctx, uint(5)).Return(nil).Once()
	f.invitations.On("DeleteByRoom", ctx, uint(5)).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(5)).Return(nil).Once()

	// Seed every token-scoped cache entry the deletion must clear.
	for _, key := range []string{
		cache.RoomPresenceKey("tok123"),
		cache.DiscussionKey("tok123"),
		cache.LedgerKey("tok123"),
	} {
		require.NoError(t, f.store.SetBlob(ctx, key, []byte(`{}`), 0))
	}
	require.NoError(t, f.store.SetBlob(ctx, cache.UserEnrolledRoomsKey(20), []byte(`[]`), 0))

	require.NoError(t, f.svc.DeleteRoom(ctx, 7, "tok123"))

	for _, key := range []string{
		cache.RoomPresenceKey("tok123"),
		cache.DiscussionKey("tok123"),
		cache.LedgerKey("tok123"),
		cache.UserEnrolledRoomsKey(20),
	} {
		_, err := f.store.GetBlob(ctx, key)
		assert.ErrorIs(t, err, cache.ErrKeyMiss, "key %s should be gone", key)
	}
	f.rooms.AssertExpectations(t)
	f.announce.AssertExpectations(t)
	f.discussions.AssertExpectations(t)
	f.invitations.AssertExpectations(t)
}

func TestRoomService_DeleteRoomRequiresOwnership(t *testing.T) {
	f := newRoomFixture(10)
	ctx := context.Background()

	f.rooms.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123", OwnerID: 7}, nil).Once()

	err := f.svc.DeleteRoom(ctx, 99, "tok123")
	assert.ErrorIs(t, err, service.ErrForbidden)
	f.rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
