package chat

import "time"

// User is a registered account on the chat backend.
type User struct {
	Username     string    `gorm:"primaryKey;type:varchar(64)"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "users" }

// TurnRecord persists one exchanged turn.
type TurnRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	Username       string    `gorm:"type:varchar(64);not null;index:idx_chats_user_conv,priority:1"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_chats_user_conv,priority:2"`
	Query          string    `gorm:"type:text;not null"`
	Response       string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index"`
}

func (TurnRecord) TableName() string { return "chats" }
