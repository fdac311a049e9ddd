package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	IdentityContextKey contextKey = "identity"
	UserContextKey     contextKey = "user"
)

var (
	ErrInvalidCredentials = errors.Authentication(errors.ErrInvalidCredentials, "Incorrect username or password")
	ErrUserDisabled       = errors.Authentication(nil, "User account is disabled")
	ErrDuplicateUser      = errors.Conflict("Username or email already exists")
)

const passwordSpecials = "@$!%*?&"

// ValidatePasswordStrength requires at least 8 characters drawn from letters,
// digits and @$!%*?&, with at least one of each class.
func ValidatePasswordStrength(password string) bool {
	if len(password) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Nickname string
	Phone    string
}

type ProfileUpdate struct {
	Nickname  *string
	Phone     *string
	AvatarURL *string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, *TokenPair, error)
	Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*Identity, *models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*models.User, error)
	UpdateRoles(ctx context.Context, adminID, userID uuid.UUID, roles models.Roles) (*models.User, error)
}

type authService struct {
	userRepo        repository.UserRepository
	tokens          TokenService
	auditLogService AuditLogService
	now             func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens TokenService,
	auditLogService AuditLogService,
) AuthService {
	return &authService{
		userRepo:        userRepo,
		tokens:          tokens,
		auditLogService: auditLogService,
		now:             time.Now,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, *TokenPair, error) {
	if !ValidatePasswordStrength(input.Password) {
		return nil, nil, errors.Validation(errors.ErrInvalidInput,
			"Password must be at least 8 characters and contain uppercase, lowercase, digit and special character")
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrDuplicateUser
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Nickname:     input.Nickname,
		Phone:        input.Phone,
		Roles:        models.Roles{models.RoleUser},
		Status:       models.UserActive,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}

	logger.WithContext(ctx).WithField("user_id", user.ID.String()).Info("User registered")
	return user, pair, nil
}

// Login accepts a username or, when identifier contains "@", an email.
func (s *authService) Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error) {
	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, nil, ErrUserDisabled
	}

	loginAt := s.now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, loginAt); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to update last login")
	} else {
		user.LastLoginAt = &loginAt
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

func (s *authService) Logout(ctx context.Context, accessToken string) error {
	return s.tokens.Revoke(ctx, accessToken)
}

// Authenticate verifies an access token and loads its user. Roles come from
// the stored user so role changes apply without re-login.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*Identity, *models.User, error) {
	identity, err := s.tokens.Verify(ctx, accessToken, AccessToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if !user.IsActive() {
		return nil, nil, ErrUserDisabled
	}

	identity.Username = user.Username
	identity.Roles = user.Roles
	return identity, user, nil
}

func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound("User not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Nickname != nil {
		user.Nickname = *update.Nickname
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, userID)
}

func (s *authService) UpdateRoles(ctx context.Context, adminID, userID uuid.UUID, roles models.Roles) (*models.User, error) {
	if len(roles) == 0 {
		return nil, errors.Validation(errors.ErrInvalidInput, "At least one role is required")
	}
	for _, role := range roles {
		if !role.Valid() {
			return nil, errors.Validation(errors.ErrInvalidInput, fmt.Sprintf("Unknown role: %s", role))
		}
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Roles

	if err := s.userRepo.UpdateRoles(ctx, userID, roles); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("roles changed from %s to %s",
		strings.Join(previous.Strings(), ","), strings.Join(roles.Strings(), ","))
	if err := s.auditLogService.CreateAuditLog(ctx, adminID, "update_roles", "user", userID.String(), details); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to write audit log")
	}

	logger.LogEvent(logrus.InfoLevel, "User roles updated", logrus.Fields{
		"admin_id": adminID.String(),
		"user_id":  userID.String(),
		"roles":    roles.Strings(),
	})

	return s.GetUserByID(ctx, userID)
}

// WithIdentityContext stores the verified identity and its user.
func WithIdentityContext(ctx context.Context, identity *Identity, user *models.User) context.Context {
	ctx = context.WithValue(ctx, IdentityContextKey, identity)
	return context.WithValue(ctx, UserContextKey, user)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*Identity)
	return identity, ok
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
