package services

import (
	"context"
	"strings"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/repository"

	"github.com/google/uuid"
)

const defaultConversationTitle = "New Conversation"

type ConversationUpdate struct {
	Title  *string
	Status *models.ConversationStatus
}

type NewMessage struct {
	Role    models.MessageRole
	Content MessageContent
}

// ConversationService is plain owner-scoped CRUD. Every lookup takes the
// caller's id so another user's conversation reads as not found.
type ConversationService interface {
	Create(ctx context.Context, userID uuid.UUID, title, modelName string) (*models.Conversation, error)
	Get(ctx context.Context, userID uuid.UUID, id uint) (*models.Conversation, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, int64, error)
	Update(ctx context.Context, userID uuid.UUID, id uint, update ConversationUpdate) (*models.Conversation, error)
	Delete(ctx context.Context, userID uuid.UUID, id uint) error
	AddMessage(ctx context.Context, userID uuid.UUID, id uint, msg NewMessage) (*models.Message, error)
	ListMessages(ctx context.Context, userID uuid.UUID, id uint, limit, offset int) ([]models.Message, int64, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func NewConversationService(conversations repository.ConversationRepository, messages repository.MessageRepository) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
	}
}

func (s *conversationService) Create(ctx context.Context, userID uuid.UUID, title, modelName string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}

	conversation := &models.Conversation{
		UserID:    userID,
		Title:     title,
		ModelName: modelName,
		Status:    models.ConversationActive,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *conversationService) Get(ctx context.Context, userID uuid.UUID, id uint) (*models.Conversation, error) {
	return s.conversations.GetForUser(ctx, id, userID)
}

func (s *conversationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, int64, error) {
	return s.conversations.ListByUser(ctx, userID, limit, offset)
}

func (s *conversationService) Update(ctx context.Context, userID uuid.UUID, id uint, update ConversationUpdate) (*models.Conversation, error) {
	conversation, err := s.conversations.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, errors.Validation(errors.ErrInvalidInput, "Title must not be empty")
		}
		conversation.Title = title
	}
	if update.Status != nil {
		if *update.Status != models.ConversationActive && *update.Status != models.ConversationEnded {
			return nil, errors.Validation(errors.ErrInvalidInput, "Invalid conversation status")
		}
		conversation.Status = *update.Status
	}

	if err := s.conversations.Update(ctx, conversation); err != nil {
		return nil, err
	}
	return s.conversations.GetForUser(ctx, id, userID)
}

func (s *conversationService) Delete(ctx context.Context, userID uuid.UUID, id uint) error {
	return s.conversations.Delete(ctx, id, userID)
}

func (s *conversationService) AddMessage(ctx context.Context, userID uuid.UUID, id uint, msg NewMessage) (*models.Message, error) {
	if _, err := s.conversations.GetForUser(ctx, id, userID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ConversationID: id,
		UserID:         userID,
		Role:           msg.Role,
		ContentType:    contentTypeOf(msg.Content),
		Content:        models.ToJSON(msg.Content),
		Status:         1,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.conversations.Touch(ctx, id); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *conversationService) ListMessages(ctx context.Context, userID uuid.UUID, id uint, limit, offset int) ([]models.Message, int64, error) {
	if _, err := s.conversations.GetForUser(ctx, id, userID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByConversation(ctx, id, limit, offset)
}

// contentTypeOf reports the first non-text part, if any.
func contentTypeOf(content MessageContent) models.ContentType {
	for _, part := range content.Parts {
		switch part.Type {
		case string(models.ContentImageURL):
			return models.ContentImageURL
		case string(models.ContentVideoURL):
			return models.ContentVideoURL
		}
	}
	return models.ContentText
}
