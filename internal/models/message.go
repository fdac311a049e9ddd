package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImageURL ContentType = "image_url"
	ContentVideoURL ContentType = "video_url"
)

type Message struct {
	ID             uint        `gorm:"primarykey" json:"id"`
	ConversationID uint        `gorm:"index;not null" json:"conversation_id"`
	UserID         uuid.UUID   `gorm:"type:char(36);index;not null" json:"user_id"`
	Role           MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	ContentType    ContentType `gorm:"type:varchar(16);not null;default:text" json:"content_type"`
	Content        JSON        `gorm:"type:text;not null" json:"content"`
	Status         int         `gorm:"not null;default:1" json:"status"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
