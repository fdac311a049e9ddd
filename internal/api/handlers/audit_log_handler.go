package handlers

import (
	"net/http"
	"strconv"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AdminHandler serves the admin-only role management and audit trail.
type AdminHandler struct {
	authService     services.AuthService
	auditLogService services.AuditLogService
}

func NewAdminHandler(authService services.AuthService, auditLogService services.AuditLogService) *AdminHandler {
	return &AdminHandler{
		authService:     authService,
		auditLogService: auditLogService,
	}
}

type updateRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=user premium_user admin"`
}

func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxPageLimit {
		pageSize = maxPageLimit
	}

	logs, total, err := h.auditLogService.GetAuditLogs(ctx, page, pageSize)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}

func (h *AdminHandler) UpdateUserRoles(w http.ResponseWriter, r *http.Request) {
	admin, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "Invalid user id"))
		return
	}

	var req updateRolesRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	user, err := h.authService.UpdateRoles(r.Context(), admin.UserID, userID, models.RolesFromStrings(req.Roles))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, user)
}
