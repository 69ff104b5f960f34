package domain

import "time"

// DiscussionThread is the durable parent of a room's messages. One thread per
// room, created lazily on the first flush of buffered messages.
type DiscussionThread struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"uniqueIndex;not null"`
	RoomToken string    `gorm:"size:32;index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DiscussionMessage is a durably persisted chat message. Ordering within a
// thread is insertion order (the auto-increment ID).
type DiscussionMessage struct {
	ID       uint      `gorm:"primaryKey"`
	ThreadID uint      `gorm:"index;not null"`
	SenderID uint      `gorm:"index;not null"`
	Body     string    `gorm:"type:text;not null"`
	SentAt   time.Time `gorm:"not null"`

	// SenderName is filled by queries joining the users table; not a column.
	SenderName string `gorm:"->;-:migration"`
}
