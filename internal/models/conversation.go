package models

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus int

const (
	ConversationEnded  ConversationStatus = 0
	ConversationActive ConversationStatus = 1
)

type Conversation struct {
	ID        uint               `gorm:"primarykey" json:"id"`
	UserID    uuid.UUID          `gorm:"type:char(36);index;not null" json:"user_id"`
	Title     string             `gorm:"type:varchar(255)" json:"title"`
	ModelName string             `gorm:"type:varchar(100);not null" json:"model_name"`
	Status    ConversationStatus `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `gorm:"index" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
