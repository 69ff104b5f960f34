package domain

import "time"

// Announcement is a room notice. A nil ScheduledAt means it is posted
// immediately at creation; otherwise it becomes posted exactly once at the
// scheduled instant and is thereafter immutable except for accruing comments.
type Announcement struct {
	ID          uint       `gorm:"primaryKey"`
	RoomID      uint       `gorm:"index;not null"`
	AuthorID    uint       `gorm:"index;not null"`
	Title       string     `gorm:"type:varchar(191);not null"`
	Description string     `gorm:"type:text"`
	Attachment  string     `gorm:"type:varchar(255)"`
	ScheduledAt *time.Time `gorm:"index"`
	Posted      bool       `gorm:"index;not null;default:false"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`

	Comments []AnnouncementComment `gorm:"foreignKey:AnnouncementID"`

	// AuthorName is filled by queries joining the users table; not a column.
	AuthorName string `gorm:"->;-:migration"`
}

// AnnouncementComment is a comment on a posted announcement.
type AnnouncementComment struct {
	ID             uint      `gorm:"primaryKey"`
	AnnouncementID uint      `gorm:"index;not null"`
	SenderID       uint      `gorm:"index;not null"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`

	SenderName string `gorm:"->;-:migration"`
}
