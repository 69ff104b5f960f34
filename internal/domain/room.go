package domain

import "time"

// Room is a collaboration room. The numeric ID is the durable identifier;
// Token is the public, unguessable handle clients address the room by.
// Token is immutable once the room is created.
type Room struct {
	ID        uint      `gorm:"primaryKey"`
	OwnerID   uint      `gorm:"index;not null"`
	Name      string    `gorm:"type:varchar(191);not null"`
	Token     string    `gorm:"uniqueIndex;size:32;not null"`
	Private   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// Participants holds the enrolled users of a private room. The set only
	// grows through an accepted invitation.
	Participants []User `gorm:"many2many:room_participants;"`

	// OwnerName is filled by queries that join the owner; not a column.
	OwnerName string `gorm:"->;-:migration"`
}
