package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// GormAnnouncementRepository is the AnnouncementRepository implementation
// backed by GORM.
type GormAnnouncementRepository struct {
	db *gorm.DB
}

// NewGormAnnouncementRepository creates a GormAnnouncementRepository.
func NewGormAnnouncementRepository(db *gorm.DB) *GormAnnouncementRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAnnouncementRepository")
	}
	return &GormAnnouncementRepository{db: db}
}

func (r *GormAnnouncementRepository) Insert(ctx context.Context, a *domain.Announcement) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("gorm: insert announcement for room %d: %w", a.RoomID, err)
	}
	return nil
}

func (r *GormAnnouncementRepository) FindByID(ctx context.Context, id uint) (*domain.Announcement, error) {
	var a domain.Announcement
	err := r.db.WithContext(ctx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAnnouncementNotFound
		}
		return nil, fmt.Errorf("gorm: find announcement %d: %w", id, err)
	}
	return &a, nil
}

func (r *GormAnnouncementRepository) ListPostedByRoom(ctx context.Context, roomID uint) ([]domain.Announcement, error) {
	var anns []domain.Announcement
	err := r.db.WithContext(ctx).
		Table("announcements").
		Select("announcements.*, users.name AS author_name").
		Joins("LEFT JOIN users ON users.id = announcements.author_id").
		Where("announcements.room_id = ? AND announcements.posted = ?", roomID, true).
		Order("announcements.id ASC").
		Scan(&anns).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list posted announcements for room %d: %w", roomID, err)
	}
	if len(anns) == 0 {
		return anns, nil
	}

	ids := make([]uint, len(anns))
	for i, a := range anns {
		ids[i] = a.ID
	}
	var comments []domain.AnnouncementComment
	err = r.db.WithContext(ctx).
		Table("announcement_comments").
		Select("announcement_comments.*, users.name AS sender_name").
		Joins("LEFT JOIN users ON users.id = announcement_comments.sender_id").
		Where("announcement_comments.announcement_id IN ?", ids).
		Order("announcement_comments.id ASC").
		Scan(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list comments for room %d announcements: %w", roomID, err)
	}
	byAnn := make(map[uint][]domain.AnnouncementComment, len(anns))
	for _, c := range comments {
		byAnn[c.AnnouncementID] = append(byAnn[c.AnnouncementID], c)
	}
	for i := range anns {
		anns[i].Comments = byAnn[anns[i].ID]
	}
	return anns, nil
}

func (r *GormAnnouncementRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Announcement, error) {
	var anns []domain.Announcement
	err := r.db.WithContext(ctx).
		Where("posted = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", false, now).
		Find(&anns).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list due announcements: %w", err)
	}
	return anns, nil
}

func (r *GormAnnouncementRepository) MarkPosted(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Announcement{}).
		Where("id = ? AND posted = ?", id, false).
		Update("posted", true)
	if res.Error != nil {
		return false, fmt.Errorf("gorm: mark announcement %d posted: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormAnnouncementRepository) InsertComment(ctx context.Context, c *domain.AnnouncementComment) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("gorm: insert comment on announcement %d: %w", c.AnnouncementID, err)
	}
	return nil
}

func (r *GormAnnouncementRepository) DeleteByRoom(ctx context.Context, roomID uint) error {
	db := r.db.WithContext(ctx)
	var ids []uint
	if err := db.Model(&domain.Announcement{}).Where("room_id = ?", roomID).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("gorm: list announcement ids for room %d: %w", roomID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := db.Where("announcement_id IN ?", ids).Delete(&domain.AnnouncementComment{}).Error; err != nil {
		return fmt.Errorf("gorm: delete comments for room %d: %w", roomID, err)
	}
	if err := db.Where("room_id = ?", roomID).Delete(&domain.Announcement{}).Error; err != nil {
		return fmt.Errorf("gorm: delete announcements for room %d: %w", roomID, err)
	}
	return nil
}
