package handlers

import (
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/middleware"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/services"
)

// AuthHandler handles registration, login, token refresh and the caller's
// own profile.
type AuthHandler struct {
	authService services.AuthService
	metrics     *metrics.Metrics
}

func NewAuthHandler(authService services.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     m,
	}
}

type registrationRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,strongpassword"`
	Nickname string `json:"nickname" validate:"omitempty,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// loginRequest accepts a username or an e-mail address in Username.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type updateProfileRequest struct {
	Nickname  *string `json:"nickname" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=500"`
}

type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

func newAuthResponse(pair *services.TokenPair, user *models.User) authResponse {
	return authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         user,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.metrics.RecordAuth("register", false)
		response.Error(w, r, err)
		return
	}

	user, pair, err := h.authService.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
		Phone:    req.Phone,
	})
	h.metrics.RecordAuth("register", err == nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, newAuthResponse(pair, user))
}

// Login godoc
// @Summary Authenticate a user by username or e-mail
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.metrics.RecordAuth("login", false)
		response.Error(w, r, err)
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	h.metrics.RecordAuth("login", err == nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, newAuthResponse(pair, user))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.metrics.RecordAuth("refresh", false)
		response.Error(w, r, err)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	h.metrics.RecordAuth("refresh", err == nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, newAuthResponse(pair, nil))
}

// Logout revokes the access token the request was authenticated with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.authService.Logout(r.Context(), middleware.ExtractBearerToken(r))
	h.metrics.RecordAuth("logout", err == nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		response.ErrorMessage(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req updateProfileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), identity.UserID, services.ProfileUpdate{
		Nickname:  req.Nickname,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, user)
}
