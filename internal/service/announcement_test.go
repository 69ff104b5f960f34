package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository"
	"roomhub/internal/repository/mocks"
	"roomhub/internal/service"
)

// recordingNotifier captures broadcasts so tests can assert on them.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	rooms  []string
}

func (n *recordingNotifier) BroadcastToRoom(roomToken, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, roomToken)
	n.events = append(n.events, event)
}

func newAnnouncementFixture() (*service.AnnouncementService, *mocks.RoomRepository, *mocks.AnnouncementRepository, *cache.LocalStore, *recordingNotifier) {
	roomRepo := new(mocks.RoomRepository)
	annRepo := new(mocks.AnnouncementRepository)
	store := cache.NewLocalStore()
	notifier := new(recordingNotifier)
	svc := service.NewAnnouncementService(roomRepo, annRepo, store, notifier)
	return svc, roomRepo, annRepo, store, notifier
}

func TestAnnouncementService_CreateImmediatePostsAndCaches(t *testing.T) {
	svc, roomRepo, annRepo, store, notifier := newAnnouncementFixture()
	ctx := context.Background()

	roomRepo.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123", Name: "standup"}, nil).Once()
	annRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Announcement")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Announcement).ID = 99
		}).
		Return(nil).Once()

	a, err := svc.Create(ctx, "tok123", service.CreateAnnouncementInput{
		Title:       "Release day",
		Description: "Ship it",
		AuthorID:    7,
		AuthorName:  "Ada",
	})
	require.NoError(t, err)
	assert.True(t, a.Posted)
	assert.Equal(t, uint(5), a.RoomID)

	count, err := store.CountRanked(ctx, cache.AnnouncementsKey("tok123"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, []string{"announcement"}, notifier.events)
	annRepo.AssertExpectations(t)
}

func TestAnnouncementService_CreateScheduledStaysUnposted(t *testing.T) {
	svc, roomRepo, annRepo, store, notifier := newAnnouncementFixture()
	ctx := context.Background()
	later := time.Now().Add(time.Hour)

	roomRepo.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123"}, nil).Once()
	annRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Announcement")).Return(nil).Once()

	a, err := svc.Create(ctx, "tok123", service.CreateAnnouncementInput{
		Title:       "Maintenance window",
		AuthorID:    7,
		ScheduledAt: &later,
	})
	require.NoError(t, err)
	assert.False(t, a.Posted)

	// A scheduled announcement is invisible until the scheduler posts it.
	count, err := store.CountRanked(ctx, cache.AnnouncementsKey("tok123"))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, notifier.events)
}

func TestAnnouncementService_CreateValidation(t *testing.T) {
	svc, _, _, _, _ := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), "tok123", service.CreateAnnouncementInput{})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = svc.Create(context.Background(), "", service.CreateAnnouncementInput{Title: "x"})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAnnouncementService_CreateUnknownRoom(t *testing.T) {
	svc, roomRepo, _, _, _ := newAnnouncementFixture()
	ctx := context.Background()

	roomRepo.On("FindByToken", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()

	_, err := svc.Create(ctx, "missing", service.CreateAnnouncementInput{Title: "x", AuthorID: 1})
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestAnnouncementService_PostScheduledFlipsOnceEach(t *testing.T) {
	svc, roomRepo, annRepo, store, notifier := newAnnouncementFixture()
	ctx := context.Background()
	now := time.Now()

	// Warm cache to prove posting invalidates it.
	_, err := store.AppendRanked(ctx, cache.AnnouncementsKey("tok123"), []byte(`{"id":1}`), 0)
	require.NoError(t, err)

	due := []domain.Announcement{
		{ID: 1, RoomID: 5, Title: "first"},
		{ID: 2, RoomID: 5, Title: "second"},
	}
	annRepo.On("ListDue", ctx, now).Return(due, nil).Once()
	annRepo.On("MarkPosted", ctx, uint(1)).Return(true, nil).Once()
	// Another worker already claimed this one.
	annRepo.On("MarkPosted", ctx, uint(2)).Return(false, nil).Once()
	roomRepo.On("FindByID", ctx, uint(5)).
		Return(&domain.Room{ID: 5, Token: "tok123"}, nil).Once()

	posted, err := svc.PostScheduled(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, posted)
	assert.Equal(t, []string{"announcement"}, notifier.events)
	assert.Equal(t, []string{"tok123"}, notifier.rooms)

	count, err := store.CountRanked(ctx, cache.AnnouncementsKey("tok123"))
	require.NoError(t, err)
	assert.Zero(t, count, "posting drops the stale cache copy")
	annRepo.AssertExpectations(t)
}

func TestAnnouncementService_AddComment(t *testing.T) {
	svc, roomRepo, annRepo, _, notifier := newAnnouncementFixture()
	ctx := context.Background()

	annRepo.On("FindByID", ctx, uint(9)).
		Return(&domain.Announcement{ID: 9, RoomID: 5, Posted: true}, nil).Once()
	annRepo.On("InsertComment", ctx, mock.AnythingOfType("*domain.AnnouncementComment")).Return(nil).Once()
	roomRepo.On("FindByID", ctx, uint(5)).
		Return(&domain.Room{ID: 5, Token: "tok123"}, nil).Once()

	c, err := svc.AddComment(ctx, 9, 7, "Ada", "congrats")
	require.NoError(t, err)
	assert.Equal(t, uint(9), c.AnnouncementID)
	assert.Equal(t, "congrats", c.Body)
	assert.Equal(t, []string{"announcementComment"}, notifier.events)

	_, err = svc.AddComment(ctx, 9, 7, "Ada", "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAnnouncementService_AddCommentUnknownAnnouncement(t *testing.T) {
	svc, _, annRepo, _, _ := newAnnouncementFixture()
	ctx := context.Background()

	annRepo.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrAnnouncementNotFound).Once()

	_, err := svc.AddComment(ctx, 404, 7, "Ada", "hello")
	assert.ErrorIs(t, err, service.ErrAnnouncementNotFound)
}

func TestAnnouncementService_GetPageWarmCache(t *testing.T) {
	svc, roomRepo, _, store, _ := newAnnouncementFixture()
	ctx := context.Background()

	roomRepo.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123"}, nil)

	key := cache.AnnouncementsKey("tok123")
	for i := 1; i <= 7; i++ {
		payload, err := json.Marshal(domain.CachedAnnouncement{ID: uint(i), Title: fmt.Sprintf("ann-%02d", i)})
		require.NoError(t, err)
		_, err = store.AppendRanked(ctx, key, payload, 0)
		require.NoError(t, err)
	}

	page, err := svc.GetPage(ctx, "tok123", 1, 3)
	require.NoError(t, err)
	assert.True(t, page.HasMoreMessages)
	require.Len(t, page.Data, 3)
	// Newest window, chronological within the page.
	assert.Equal(t, "ann-05", page.Data[0].Title)
	assert.Equal(t, "ann-07", page.Data[2].Title)

	page, err = svc.GetPage(ctx, "tok123", 3, 3)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ann-01", page.Data[0].Title)
}

func TestAnnouncementService_GetPageColdCacheBackfills(t *testing.T) {
	svc, roomRepo, annRepo, store, _ := newAnnouncementFixture()
	ctx := context.Background()

	roomRepo.On("FindByToken", ctx, "tok123").
		Return(&domain.Room{ID: 5, Token: "tok123"}, nil)

	durable := make([]domain.Announcement, 4)
	for i := range durable {
		durable[i] = domain.Announcement{ID: uint(i + 1), RoomID: 5, Title: fmt.Sprintf("ann-%02d", i+1), Posted: true}
	}
	annRepo.On("ListPostedByRoom", ctx, uint(5)).Return(durable, nil).Once()

	page, err := svc.GetPage(ctx, "tok123", 1, 3)
	require.NoError(t, err)
	assert.True(t, page.HasMoreMessages)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "ann-02", page.Data[0].Title)
	assert.Equal(t, "ann-04", page.Data[2].Title)

	// The durable read seeded the cache; the warm path serves the next read.
	count, err := store.CountRanked(ctx, cache.AnnouncementsKey("tok123"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	again, err := svc.GetPage(ctx, "tok123", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, page.Data, again.Data)
	annRepo.AssertExpectations(t)
}

func TestAnnouncementService_GetPageUnknownRoomIsEmpty(t *testing.T) {
	svc, roomRepo, _, _, _ := newAnnouncementFixture()
	ctx := context.Background()

	roomRepo.On("FindByToken", ctx, "missing").Return(nil, repository.ErrRoomNotFound).Once()

	page, err := svc.GetPage(ctx, "missing", 1, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	assert.Empty(t, page.Data)
}
