package handlers

import (
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/services"
)

type UsageHandler struct {
	usageService services.UsageService
}

func NewUsageHandler(usageService services.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// GetCurrentUsage reports the caller's calls, tokens and cost for the
// current calendar month.
func (h *UsageHandler) GetCurrentUsage(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	stats, err := h.usageService.GetCurrentUsage(r.Context(), identity.UserID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, stats)
}

func (h *UsageHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	limit, offset := ParsePaginationParams(r)
	calls, total, err := h.usageService.ListCalls(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, listResponse{Items: calls, Total: total, Limit: limit, Offset: offset})
}
