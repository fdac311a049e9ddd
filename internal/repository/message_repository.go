package repository

import (
	"context"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return errors.Wrap(err, "failed to create message")
	}
	return nil
}

// ListByConversation returns messages oldest first.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, int64, error) {
	var messages []models.Message
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", conversationID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count messages")
	}

	err := query.Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list messages")
	}

	return messages, total, nil
}
