package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomhub/internal/cache"
	"roomhub/internal/domain"
	"roomhub/internal/repository/mocks"
	"roomhub/internal/service"
)

func seedLedger(t *testing.T, store cache.Store, token string, roomID uint, n int) {
	t.Helper()
	ledger := domain.RoomLedger{Version: domain.RecordSchemaVersion}
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ledger.Messages = append(ledger.Messages, domain.BufferedMessage{
			SenderID:   7,
			SenderName: "Ada",
			Body:       fmt.Sprintf("%s-msg-%d", token, i),
			SentOn:     base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			CUID:       "abcde",
			RoomID:     roomID,
		})
	}
	blob, err := json.Marshal(ledger)
	require.NoError(t, err)
	require.NoError(t, store.SetBlob(context.Background(), cache.LedgerKey(token), blob, 0))
}

func ledgerMessages(t *testing.T, store cache.Store, token string) []domain.BufferedMessage {
	t.Helper()
	blob, err := store.GetBlob(context.Background(), cache.LedgerKey(token))
	require.NoError(t, err)
	var ledger domain.RoomLedger
	require.NoError(t, json.Unmarshal(blob, &ledger))
	return ledger.Messages
}

func TestFlushService_DrainsEveryRoom(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	flush := service.NewFlushService(discussionRepo, store)
	ctx := context.Background()

	seedLedger(t, store, "aaa", 1, 3)
	seedLedger(t, store, "bbb", 2, 5)

	discussionRepo.On("FindOrCreateThread", ctx, uint(1), "aaa").
		Return(&domain.DiscussionThread{ID: 11, RoomID: 1, RoomToken: "aaa"}, nil).Once()
	discussionRepo.On("FindOrCreateThread", ctx, uint(2), "bbb").
		Return(&domain.DiscussionThread{ID: 22, RoomID: 2, RoomToken: "bbb"}, nil).Once()

	var inserted []domain.DiscussionMessage
	discussionRepo.On("InsertMessages", ctx, mock.AnythingOfType("[]domain.DiscussionMessage")).
		Run(func(args mock.Arguments) {
			inserted = append(inserted, args.Get(1).([]domain.DiscussionMessage)...)
		}).
		Return(nil).Twice()

	report, err := flush.FlushBufferedMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rooms)
	assert.Equal(t, 8, report.Messages)
	assert.Empty(t, report.Failed)
	assert.Len(t, inserted, 8)

	// Both ledger entries were cleared.
	assert.Empty(t, ledgerMessages(t, store, "aaa"))
	assert.Empty(t, ledgerMessages(t, store, "bbb"))

	discussionRepo.AssertExpectations(t)
}

func TestFlushService_NothingToFlush(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	flush := service.NewFlushService(discussionRepo, cache.NewLocalStore())

	report, err := flush.FlushBufferedMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Rooms)
	assert.Zero(t, report.Messages)
	discussionRepo.AssertNotCalled(t, "InsertMessages", mock.Anything, mock.Anything)
}

func TestFlushService_SecondSweepIsIdempotent(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	flush := service.NewFlushService(discussionRepo, store)
	ctx := context.Background()

	seedLedger(t, store, "aaa", 1, 2)
	discussionRepo.On("FindOrCreateThread", ctx, uint(1), "aaa").
		Return(&domain.DiscussionThread{ID: 11, RoomID: 1, RoomToken: "aaa"}, nil).Once()
	discussionRepo.On("InsertMessages", ctx, mock.Anything).Return(nil).Once()

	_, err := flush.FlushBufferedMessages(ctx)
	require.NoError(t, err)

	// The second sweep sees the emptied entry and writes nothing.
	report, err := flush.FlushBufferedMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Messages)
	discussionRepo.AssertExpectations(t)
}

func TestFlushService_FailedRoomKeepsItsLedger(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	flush := service.NewFlushService(discussionRepo, store)
	ctx := context.Background()

	seedLedger(t, store, "good", 1, 2)
	seedLedger(t, store, "bad", 2, 3)

	discussionRepo.On("FindOrCreateThread", ctx, uint(1), "good").
		Return(&domain.DiscussionThread{ID: 11, RoomID: 1, RoomToken: "good"}, nil).Once()
	discussionRepo.On("FindOrCreateThread", ctx, uint(2), "bad").
		Return(&domain.DiscussionThread{ID: 22, RoomID: 2, RoomToken: "bad"}, nil).Once()
	discussionRepo.On("InsertMessages", ctx, mock.MatchedBy(func(msgs []domain.DiscussionMessage) bool {
		return msgs[0].ThreadID == 11
	})).Return(nil).Once()
	discussionRepo.On("InsertMessages", ctx, mock.MatchedBy(func(msgs []domain.DiscussionMessage) bool {
		return msgs[0].ThreadID == 22
	})).Return(errDB).Once()

	report, err := flush.FlushBufferedMessages(ctx)
	require.ErrorIs(t, err, service.ErrFlushPartial)
	assert.Equal(t, 1, report.Rooms)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, []string{"bad"}, report.Failed)

	// The failed room's messages were restored for the next tick.
	assert.Empty(t, ledgerMessages(t, store, "good"))
	restored := ledgerMessages(t, store, "bad")
	require.Len(t, restored, 3)
	assert.Equal(t, "bad-msg-0", restored[0].Body)
}

func TestFlushService_RestorePrependsBeforeNewerTraffic(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	flush := service.NewFlushService(discussionRepo, store)
	ctx := context.Background()

	seedLedger(t, store, "tok", 1, 2)

	discussionRepo.On("FindOrCreateThread", ctx, uint(1), "tok").
		Return(&domain.DiscussionThread{ID: 11, RoomID: 1, RoomToken: "tok"}, nil).Once()
	// While the durable insert is failing, a fresh message lands in the
	// (already cleared) ledger entry.
	discussionRepo.On("InsertMessages", ctx, mock.Anything).
		Run(func(mock.Arguments) {
			ledger := domain.RoomLedger{Version: domain.RecordSchemaVersion, Messages: []domain.BufferedMessage{
				{SenderID: 9, Body: "newer", RoomID: 1, SentOn: time.Now().UTC().Format(time.RFC3339)},
			}}
			blob, _ := json.Marshal(ledger)
			_ = store.SetBlob(ctx, cache.LedgerKey("tok"), blob, 0)
		}).
		Return(errDB).Once()

	_, err := flush.FlushBufferedMessages(ctx)
	require.ErrorIs(t, err, service.ErrFlushPartial)

	restored := ledgerMessages(t, store, "tok")
	require.Len(t, restored, 3)
	assert.Equal(t, "tok-msg-0", restored[0].Body, "captured messages come back ahead of newer traffic")
	assert.Equal(t, "tok-msg-1", restored[1].Body)
	assert.Equal(t, "newer", restored[2].Body)
}

func TestFlushService_SingleFlight(t *testing.T) {
	discussionRepo := new(mocks.DiscussionRepository)
	store := cache.NewLocalStore()
	flush := service.NewFlushService(discussionRepo, store)
	ctx := context.Background()

	seedLedger(t, store, "tok", 1, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	discussionRepo.On("FindOrCreateThread", ctx, uint(1), "tok").
		Return(&domain.DiscussionThread{ID: 11, RoomID: 1, RoomToken: "tok"}, nil).Once()
	discussionRepo.On("InsertMessages", ctx, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := flush.FlushBufferedMessages(ctx)
		done <- err
	}()

	<-entered
	_, err := flush.FlushBufferedMessages(ctx)
	assert.ErrorIs(t, err, service.ErrFlushInFlight, "an overlapping sweep is rejected")
	close(release)
	require.NoError(t, <-done)
}
