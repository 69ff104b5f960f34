package service_test

import (
	"context"
	"encoding/json"
	"errors"
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

func newDiscussionFixture(t *testing.T) (*service.DiscussionService, *mocks.RoomRepository, *mocks.DiscussionRepository, *cache.LocalStore) {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	svc := service.NewDiscussionService(roomRepo, discussionRepo, store, nil)
	return svc, roomRepo, discussionRepo, store
}

func TestDiscussionService_AppendMessage_BuffersAndLedgers(t *testing.T) {
	svc, roomRepo, _, store := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", ctx, "tok").Return(room, nil)

	msg, err := svc.AppendMessage(ctx, "tok", 7, "Ada", "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, uint(7), msg.SenderID)
	assert.Equal(t, "Ada", msg.SenderName)
	assert.Equal(t, "hello", msg.Body)
	assert.Len(t, msg.CUID, 5)
	_, err = time.Parse(time.RFC3339, msg.SentOn)
	assert.NoError(t, err, "sentOn must be RFC 3339")

	count, err := store.CountRanked(ctx, cache.DiscussionKey("tok"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	blob, err := store.GetBlob(ctx, cache.LedgerKey("tok"))
	require.NoError(t, err)
	var ledger domain.RoomLedger
	require.NoError(t, json.Unmarshal(blob, &ledger))
	require.Len(t, ledger.Messages, 1)
	assert.Equal(t, uint(42), ledger.Messages[0].RoomID, "ledger copy carries the durable room id")
	assert.Equal(t, "hello", ledger.Messages[0].Body)
}

func TestDiscussionService_AppendMessage_UnknownRoom(t *testing.T) {
	svc, roomRepo, _, _ := newDiscussionFixture(t)
	ctx := context.Background()
	roomRepo.On("FindByToken", ctx, "ghost").Return(nil, repository.ErrRoomNotFound)

	_, err := svc.AppendMessage(ctx, "ghost", 7, "Ada", "hello")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestDiscussionService_AppendMessage_Validation(t *testing.T) {
	svc, _, _, _ := newDiscussionFixture(t)

	_, err := svc.AppendMessage(context.Background(), "tok", 7, "Ada", "")
	assert.ErrorIs(t, err, service.ErrValidation)
	_, err = svc.AppendMessage(context.Background(), "", 7, "Ada", "hi")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestDiscussionService_GetPage_NewestFirstWindows(t *testing.T) {
	svc, roomRepo, _, _ := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", ctx, "tok").Return(room, nil)

	for i := 1; i <= 25; i++ {
		_, err := svc.AppendMessage(ctx, "tok", 7, "Ada", fmt.Sprintf("msg-%02d", i))
		require.NoError(t, err)
	}

	// Page 1 holds the 10 newest messages, chronological within the page.
	page, err := svc.GetPage(ctx, "tok", 1, 10)
	require.NoError(t, err)
	assert.True(t, page.HasMoreMessages)
	require.Len(t, page.Data, 10)
	assert.Equal(t, "msg-16", page.Data[0].Body)
	assert.Equal(t, "msg-25", page.Data[9].Body)

	page, err = svc.GetPage(ctx, "tok", 2, 10)
	require.NoError(t, err)
	assert.True(t, page.HasMoreMessages)
	require.Len(t, page.Data, 10)
	assert.Equal(t, "msg-06", page.Data[0].Body)
	assert.Equal(t, "msg-15", page.Data[9].Body)

	// The last page is short and signals no further data.
	page, err = svc.GetPage(ctx, "tok", 3, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	require.Len(t, page.Data, 5)
	assert.Equal(t, "msg-01", page.Data[0].Body)
	assert.Equal(t, "msg-05", page.Data[4].Body)

	// A page past the end is empty, not an error.
	page, err = svc.GetPage(ctx, "tok", 4, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	assert.Empty(t, page.Data)
}

func TestDiscussionService_GetPage_ConcatenationCoversHistory(t *testing.T) {
	svc, roomRepo, _, _ := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", ctx, "tok").Return(room, nil)

	const total, limit = 23, 7
	for i := 1; i <= total; i++ {
		_, err := svc.AppendMessage(ctx, "tok", 7, "Ada", fmt.Sprintf("msg-%02d", i))
		require.NoError(t, err)
	}

	// Walking pages until hasMoreMessages goes false reconstructs the full
	// history with no gaps or duplicates.
	var walked []string
	for page := 1; ; page++ {
		res, err := svc.GetPage(ctx, "tok", page, limit)
		require.NoError(t, err)
		for i := len(res.Data) - 1; i >= 0; i-- {
			walked = append(walked, res.Data[i].Body)
		}
		if !res.HasMoreMessages {
			break
		}
	}
	require.Len(t, walked, total)
	for i, body := range walked {
		assert.Equal(t, fmt.Sprintf("msg-%02d", total-i), body)
	}
}

func TestDiscussionService_GetPage_UnknownRoomIsEmptyPage(t *testing.T) {
	svc, roomRepo, _, _ := newDiscussionFixture(t)
	ctx := context.Background()
	roomRepo.On("FindByToken", ctx, "ghost").Return(nil, repository.ErrRoomNotFound)

	page, err := svc.GetPage(ctx, "ghost", 1, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	assert.Empty(t, page.Data)
}

func TestDiscussionService_GetPage_ColdCacheBackfillsFromDurable(t *testing.T) {
	svc, roomRepo, discussionRepo, store := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", ctx, "tok").Return(room, nil)

	thread := &domain.DiscussionThread{ID: 3, RoomID: 42, RoomToken: "tok"}
	discussionRepo.On("FindThreadByRoomID", ctx, uint(42)).Return(thread, nil).Once()
	durable := make([]domain.DiscussionMessage, 12)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := range durable {
		durable[i] = domain.DiscussionMessage{
			ThreadID:   3,
			SenderID:   7,
			SenderName: "Ada",
			Body:       fmt.Sprintf("old-%02d", i+1),
			SentAt:     base.Add(time.Duration(i) * time.Minute),
		}
	}
	discussionRepo.On("ListMessagesByThread", ctx, uint(3)).Return(durable, nil).Once()

	page, err := svc.GetPage(ctx, "tok", 1, 5)
	require.NoError(t, err)
	assert.True(t, page.HasMoreMessages)
	require.Len(t, page.Data, 5)
	assert.Equal(t, "old-08", page.Data[0].Body)
	assert.Equal(t, "old-12", page.Data[4].Body)

	// The miss rebuilt the buffer so the next read is warm.
	count, err := store.CountRanked(ctx, cache.DiscussionKey("tok"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	page2, err := svc.GetPage(ctx, "tok", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, page.Data[0].Body, page2.Data[0].Body, "warm read agrees with the cold read")
	discussionRepo.AssertExpectations(t)
}

func TestDiscussionService_GetPage_NoThreadIsEmptyPage(t *testing.T) {
	svc, roomRepo, discussionRepo, _ := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", ctx, "tok").Return(room, nil)
	discussionRepo.On("FindThreadByRoomID", ctx, uint(42)).Return(nil, repository.ErrThreadNotFound)

	page, err := svc.GetPage(ctx, "tok", 1, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMoreMessages)
	assert.Empty(t, page.Data)
}

func TestDiscussionService_ConcurrentAppendsLoseNothing(t *testing.T) {
	svc, roomRepo, _, store := newDiscussionFixture(t)
	ctx := context.Background()
	room := &domain.Room{ID: 42, Token: "tok"}
	roomRepo.On("FindByToken", mock.Anything, "tok").Return(room, nil)

	const writers = 30
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, "tok", uint(i+1), "u", fmt.Sprintf("m-%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.CountRanked(ctx, cache.DiscussionKey("tok"))
	require.NoError(t, err)
	assert.Equal(t, int64(writers), count)

	blob, err := store.GetBlob(ctx, cache.LedgerKey("tok"))
	require.NoError(t, err)
	var ledger domain.RoomLedger
	require.NoError(t, json.Unmarshal(blob, &ledger))
	assert.Len(t, ledger.Messages, writers, "every message reaches the pending-flush ledger")
}

func TestDiscussionService_GetPage_Validation(t *testing.T) {
	svc, _, _, _ := newDiscussionFixture(t)

	_, err := svc.GetPage(context.Background(), "tok", 0, 10)
	assert.ErrorIs(t, err, service.ErrValidation)
	_, err = svc.GetPage(context.Background(), "tok", 1, 0)
	assert.ErrorIs(t, err, service.ErrValidation)
}

var errDB = errors.New("db down")
