package domain

import "time"

// User is an account that can own rooms, post messages and receive
// invitations. Password holds the bcrypt hash, never the plaintext.
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(191);not null"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email;not null"`
	Password  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
