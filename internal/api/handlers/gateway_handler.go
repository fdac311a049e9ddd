package handlers

import (
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/services"
)

// GatewayHandler exposes the chat, multimodal and image generation proxies.
type GatewayHandler struct {
	gateway services.GatewayService
}

func NewGatewayHandler(gateway services.GatewayService) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

type chatRequest struct {
	Model          string                 `json:"model" validate:"required,max=100"`
	Messages       []services.ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature    *float64               `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens      *int                   `json:"max_tokens" validate:"omitempty,gt=0"`
	ConversationID *uint                  `json:"conversation_id" validate:"omitempty,gt=0"`
}

type generationRequest struct {
	Model      string                 `json:"model" validate:"required,max=100"`
	Prompt     string                 `json:"prompt" validate:"required,max=4000"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ChatCompletions godoc
// @Summary Proxy a chat completion
// @Tags bailian
// @Accept json
// @Produce json
// @Router /api/bailian/chat/completions [post]
func (h *GatewayHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	h.completion(w, r, models.KindChat)
}

// Multimodal accepts the chat body with image or video parts.
func (h *GatewayHandler) Multimodal(w http.ResponseWriter, r *http.Request) {
	h.completion(w, r, models.KindMultimodal)
}

func (h *GatewayHandler) completion(w http.ResponseWriter, r *http.Request, kind models.RequestKind) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req chatRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	h.execute(w, r, identity, &services.GatewayRequest{
		Kind:           kind,
		Endpoint:       r.URL.Path,
		Model:          req.Model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ConversationID: req.ConversationID,
		Client:         clientInfo(r),
	})
}

// Generation godoc
// @Summary Proxy a text-to-image generation task
// @Tags bailian
// @Accept json
// @Produce json
// @Router /api/bailian/generation [post]
func (h *GatewayHandler) Generation(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req generationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	h.execute(w, r, identity, &services.GatewayRequest{
		Kind:       models.KindImage,
		Endpoint:   r.URL.Path,
		Model:      req.Model,
		Prompt:     req.Prompt,
		Parameters: req.Parameters,
		Client:     clientInfo(r),
	})
}

func (h *GatewayHandler) execute(w http.ResponseWriter, r *http.Request, identity *services.Identity, req *services.GatewayRequest) {
	result, err := h.gateway.Execute(r.Context(), identity, req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.WithUsage(w, r, result.Data, result.Usage)
}

func (h *GatewayHandler) ModelsStatus(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.gateway.ModelStatus())
}
