package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// GormInvitationRepository is the InvitationRepository implementation backed
// by GORM.
type GormInvitationRepository struct {
	db *gorm.DB
}

// NewGormInvitationRepository creates a GormInvitationRepository.
func NewGormInvitationRepository(db *gorm.DB) *GormInvitationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormInvitationRepository")
	}
	return &GormInvitationRepository{db: db}
}

func (r *GormInvitationRepository) InsertBatch(ctx context.Context, invs []domain.RoomInvitation) error {
	if len(invs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&invs).Error; err != nil {
		return fmt.Errorf("gorm: insert %d invitations: %w", len(invs), err)
	}
	return nil
}

func (r *GormInvitationRepository) FindPendingByID(ctx context.Context, id, userID uint) (*domain.RoomInvitation, error) {
	var inv domain.RoomInvitation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Where("id = ? AND to_user_id = ? AND state = ?", id, userID, domain.InvitationPending).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("gorm: find pending invitation %d for user %d: %w", id, userID, err)
	}
	return &inv, nil
}

func (r *GormInvitationRepository) Save(ctx context.Context, inv *domain.RoomInvitation) error {
	if err := r.db.WithContext(ctx).Save(inv).Error; err != nil {
		return fmt.Errorf("gorm: save invitation %d: %w", inv.ID, err)
	}
	return nil
}

func (r *GormInvitationRepository) ListPendingByUser(ctx context.Context, userID uint) ([]domain.RoomInvitation, error) {
	var invs []domain.RoomInvitation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Where("to_user_id = ? AND state = ?", userID, domain.InvitationPending).
		Order("id DESC").
		Find(&invs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list pending invitations for user %d: %w", userID, err)
	}
	return invs, nil
}

func (r *GormInvitationRepository) DeleteByRoom(ctx context.Context, roomID uint) error {
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.RoomInvitation{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete invitations for room %d: %w", roomID, err)
	}
	return nil
}
