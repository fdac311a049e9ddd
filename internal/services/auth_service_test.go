package services

import (
	"context"
	"net/http"
	"testing"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/database"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	auth     AuthService
	users    repository.UserRepository
	auditLog AuditLogService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.InitDB(config.DatabaseConfig{Driver: database.DriverSQLite, URL: "file::memory:"}, config.AdminConfig{})
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	auditLog := NewAuditLogService(repository.NewAuditLogRepository(db))
	tokens := NewTokenService(testAuthConfig(), NewMemoryCacheService())

	return &authFixture{
		auth:     NewAuthService(users, tokens, auditLog),
		users:    users,
		auditLog: auditLog,
	}
}

func (f *authFixture) register(t *testing.T, username string) (*models.User, *TokenPair) {
	t.Helper()
	user, pair, err := f.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Passw0rd!",
	})
	require.NoError(t, err)
	return user, pair
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd!":   true,
		"Aa1@aaaa":    true,
		"short1A!":    true,
		"Sh0rt!":      false,
		"password1!":  false,
		"PASSWORD1!":  false,
		"Password!!":  false,
		"Password11":  false,
		"Passw0rd!#":  false,
		"Pässw0rd!xx": false,
	}
	for password, want := range cases {
		assert.Equal(t, want, ValidatePasswordStrength(password), password)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, pair := f.register(t, "alice")
	assert.Equal(t, models.Roles{models.RoleUser}, user.Roles)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "bearer", pair.TokenType)

	loggedIn, _, err := f.auth.Login(ctx, "alice", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotNil(t, loggedIn.LastLoginAt)

	byEmail, _, err := f.auth.Login(ctx, "alice@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, _, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "Passw0rd!"})
	assert.Equal(t, http.StatusConflict, errors.HTTPStatus(err))

	_, _, err = f.auth.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "weak"})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, _, wrongPassword := f.auth.Login(ctx, "alice", "Wrong0ne!")
	_, _, unknownUser := f.auth.Login(ctx, "nobody", "Passw0rd!")

	assert.ErrorIs(t, wrongPassword, errors.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, errors.ErrInvalidCredentials)
	assert.Equal(t, errors.PublicMessage(wrongPassword), errors.PublicMessage(unknownUser))
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(unknownUser))
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, pair := f.register(t, "alice")

	_, _, err := f.auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, pair.AccessToken))

	_, _, err = f.auth.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateUsesStoredRoles(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, pair := f.register(t, "alice")

	require.NoError(t, f.users.UpdateRoles(ctx, user.ID, models.Roles{models.RoleUser, models.RolePremium}))

	identity, _, err := f.auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, identity.Roles.Has(models.RolePremium))
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := f.auth.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Passw0rd!",
		Nickname: "Alice",
		Phone:    "123",
	})
	require.NoError(t, err)

	nickname := "Ali"
	updated, err := f.auth.UpdateProfile(ctx, user.ID, ProfileUpdate{Nickname: &nickname})
	require.NoError(t, err)
	assert.Equal(t, "Ali", updated.Nickname)
	assert.Equal(t, "123", updated.Phone)
}

func TestUpdateRolesWritesAuditLog(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, _ := f.register(t, "alice")
	adminID := uuid.New()

	updated, err := f.auth.UpdateRoles(ctx, adminID, user.ID, models.Roles{models.RoleUser, models.RolePremium})
	require.NoError(t, err)
	assert.True(t, updated.Roles.Has(models.RolePremium))

	logs, total, err := f.auditLog.GetAuditLogs(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "update_roles", logs[0].Action)
	assert.Equal(t, adminID, logs[0].AdminID)
	assert.Equal(t, user.ID.String(), logs[0].EntityID)

	_, err = f.auth.UpdateRoles(ctx, adminID, user.ID, models.Roles{"superuser"})
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))

	_, err = f.auth.UpdateRoles(ctx, adminID, uuid.New(), models.Roles{models.RoleUser})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
