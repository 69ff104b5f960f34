package domain

import "time"

// Invitation states.
const (
	InvitationPending  = 0
	InvitationAccepted = 1
	InvitationRejected = 2
)

// RoomInvitation invites a user into a private room. State moves from
// pending to accepted or rejected exactly once, via an enrollment decision.
type RoomInvitation struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"index;not null"`
	ToUserID  uint      `gorm:"index;not null"`
	State     int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Room Room `gorm:"foreignKey:RoomID"`
}
