package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// GormRoomRepository is the RoomRepository implementation backed by GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) FindByToken(ctx context.Context, token string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by token %q: %w", token, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, token: %s): %w", room.ID, room.Token, err)
	}
	return nil
}

func (r *GormRoomRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM room_participants WHERE room_id = ?", id).Error; err != nil {
		return fmt.Errorf("gorm: delete room participants for room %d: %w", id, err)
	}
	if err := db.Delete(&domain.Room{}, id).Error; err != nil {
		return fmt.Errorf("gorm: delete room %d: %w", id, err)
	}
	return nil
}

func (r *GormRoomRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("owner_id = ?", ownerID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count rooms by owner %d: %w", ownerID, err)
	}
	return count, nil
}

func (r *GormRoomRepository) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms by owner %d: %w", ownerID, err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) ListEnrolled(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Select("rooms.*, users.name AS owner_name").
		Joins("JOIN room_participants rp ON rp.room_id = rooms.id").
		Joins("JOIN users ON users.id = rooms.owner_id").
		Where("rooms.private = ? AND rp.user_id = ?", true, userID).
		Order("rooms.id DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list enrolled rooms for user %d: %w", userID, err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) AddParticipant(ctx context.Context, roomID, userID uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Room{ID: roomID}).
		Association("Participants").
		Append(&domain.User{ID: userID})
	if err != nil {
		return fmt.Errorf("gorm: add participant %d to room %d: %w", userID, roomID, err)
	}
	return nil
}

func (r *GormRoomRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("token = ?", token).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by token %q: %w", token, err)
	}
	return count > 0, nil
}
