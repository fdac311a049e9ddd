package repository

import (
	"context"
	stderrors "errors"
	"time"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetForUser(ctx context.Context, id uint, userID uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, int64, error)
	Update(ctx context.Context, conversation *models.Conversation) error
	Touch(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint, userID uuid.UUID) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	return nil
}

// GetForUser only finds conversations owned by userID; anything else is
// reported as not found.
func (r *conversationRepository) GetForUser(ctx context.Context, id uint, userID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conversation).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Conversation not found")
		}
		return nil, errors.Wrap(err, "failed to get conversation")
	}
	return &conversation, nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, int64, error) {
	var conversations []models.Conversation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("user_id = ?", userID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count conversations")
	}

	err := query.Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list conversations")
	}

	return conversations, total, nil
}

func (r *conversationRepository) Update(ctx context.Context, conversation *models.Conversation) error {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", conversation.ID, conversation.UserID).
		Updates(map[string]interface{}{
			"title":      conversation.Title,
			"status":     conversation.Status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update conversation")
	}
	if result.RowsAffected == 0 {
		return errors.NotFound("Conversation not found")
	}
	return nil
}

func (r *conversationRepository) Touch(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now()).Error
	if err != nil {
		return errors.Wrap(err, "failed to touch conversation")
	}
	return nil
}

// Delete removes the conversation and its messages together.
func (r *conversationRepository) Delete(ctx context.Context, id uint, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Conversation{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to delete conversation")
		}
		if result.RowsAffected == 0 {
			return errors.NotFound("Conversation not found")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete conversation messages")
		}
		return nil
	})
}
