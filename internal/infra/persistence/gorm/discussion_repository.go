package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// GormDiscussionRepository is the DiscussionRepository implementation backed
// by GORM.
type GormDiscussionRepository struct {
	db *gorm.DB
}

// NewGormDiscussionRepository creates a GormDiscussionRepository.
func NewGormDiscussionRepository(db *gorm.DB) *GormDiscussionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormDiscussionRepository")
	}
	return &GormDiscussionRepository{db: db}
}

func (r *GormDiscussionRepository) FindThreadByRoomID(ctx context.Context, roomID uint) (*domain.DiscussionThread, error) {
	var thread domain.DiscussionThread
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrThreadNotFound
		}
		return nil, fmt.Errorf("gorm: find thread for room %d: %w", roomID, err)
	}
	return &thread, nil
}

func (r *GormDiscussionRepository) FindOrCreateThread(ctx context.Context, roomID uint, roomToken string) (*domain.DiscussionThread, error) {
	thread := domain.DiscussionThread{RoomID: roomID, RoomToken: roomToken}
	err := r.db.WithContext(ctx).
		Where(domain.DiscussionThread{RoomID: roomID}).
		FirstOrCreate(&thread).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find or create thread for room %d: %w", roomID, err)
	}
	return &thread, nil
}

func (r *GormDiscussionRepository) InsertMessages(ctx context.Context, msgs []domain.DiscussionMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return fmt.Errorf("gorm: insert %d discussion messages: %w", len(msgs), err)
	}
	return nil
}

func (r *GormDiscussionRepository) ListMessagesByThread(ctx context.Context, threadID uint) ([]domain.DiscussionMessage, error) {
	var msgs []domain.DiscussionMessage
	err := r.db.WithContext(ctx).
		Table("discussion_messages").
		Select("discussion_messages.*, users.name AS sender_name").
		Joins("LEFT JOIN users ON users.id = discussion_messages.sender_id").
		Where("discussion_messages.thread_id = ?", threadID).
		Order("discussion_messages.id ASC").
		Scan(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list messages for thread %d: %w", threadID, err)
	}
	return msgs, nil
}

func (r *GormDiscussionRepository) DeleteByRoom(ctx context.Context, roomID uint) error {
	thread, err := r.FindThreadByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return nil
		}
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("thread_id = ?", thread.ID).Delete(&domain.DiscussionMessage{}).Error; err != nil {
		return fmt.Errorf("gorm: delete messages for thread %d: %w", thread.ID, err)
	}
	if err := db.Delete(&domain.DiscussionThread{}, thread.ID).Error; err != nil {
		return fmt.Errorf("gorm: delete thread %d: %w", thread.ID, err)
	}
	return nil
}
