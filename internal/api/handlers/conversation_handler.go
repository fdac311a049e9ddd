package handlers

import (
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/services"
)

type ConversationHandler struct {
	conversationService services.ConversationService
}

func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

type createConversationRequest struct {
	Title     string `json:"title" validate:"omitempty,max=255"`
	ModelName string `json:"model_name" validate:"required,max=100"`
}

type updateConversationRequest struct {
	Title  *string                    `json:"title" validate:"omitempty,max=255"`
	Status *models.ConversationStatus `json:"status" validate:"omitempty,oneof=0 1"`
}

type createMessageRequest struct {
	Role    models.MessageRole      `json:"role" validate:"required,oneof=user assistant system"`
	Content services.MessageContent `json:"content"`
}

type listResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req createConversationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	conversation, err := h.conversationService.Create(r.Context(), identity.UserID, req.Title, req.ModelName)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, conversation)
}

func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	limit, offset := ParsePaginationParams(r)
	conversations, total, err := h.conversationService.List(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, listResponse{Items: conversations, Total: total, Limit: limit, Offset: offset})
}

func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	conversation, err := h.conversationService.Get(r.Context(), identity.UserID, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, conversation)
}

func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req updateConversationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	conversation, err := h.conversationService.Update(r.Context(), identity.UserID, id, services.ConversationUpdate{
		Title:  req.Title,
		Status: req.Status,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, conversation)
}

func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.conversationService.Delete(r.Context(), identity.UserID, id); err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]uint{"deleted": id})
}

func (h *ConversationHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req createMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if req.Content.Text == "" && len(req.Content.Parts) == 0 {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "content is required"))
		return
	}

	message, err := h.conversationService.AddMessage(r.Context(), identity.UserID, id, services.NewMessage{
		Role:    req.Role,
		Content: req.Content,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, message)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	limit, offset := ParsePaginationParams(r)
	messages, total, err := h.conversationService.ListMessages(r.Context(), identity.UserID, id, limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, listResponse{Items: messages, Total: total, Limit: limit, Offset: offset})
}
