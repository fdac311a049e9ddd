package services

import (
	"context"
	"testing"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/models"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		Issuer:          "bailian-gateway-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Roles:    models.Roles{models.RoleUser, models.RolePremium},
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewTokenService(testAuthConfig(), NewMemoryCacheService())
	user := testUser()

	pair, err := svc.Issue(user)
	require.NoError(t, err)
	assert.EqualValues(t, 3600, pair.ExpiresIn)

	identity, err := svc.Verify(ctx, pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, user.Roles, identity.Roles)
	assert.NotEmpty(t, identity.TokenID)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	ctx := context.Background()
	svc := NewTokenService(testAuthConfig(), NewMemoryCacheService())

	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.RefreshToken, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify(ctx, pair.AccessToken, RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-48 * time.Hour) }
	issuer := newTokenService(testAuthConfig(), NewMemoryCacheService(), past)

	pair, err := issuer.Issue(testUser())
	require.NoError(t, err)

	verifier := NewTokenService(testAuthConfig(), NewMemoryCacheService())
	_, err = verifier.Verify(context.Background(), pair.AccessToken, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTamperedAndForeignTokensAreRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewTokenService(testAuthConfig(), NewMemoryCacheService())

	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.AccessToken+"x", AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify(ctx, "not-a-token", AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := testAuthConfig()
	other.JWTSecret = "another-secret"
	foreign, err := NewTokenService(other, NewMemoryCacheService()).Issue(testUser())
	require.NoError(t, err)
	_, err = svc.Verify(ctx, foreign.AccessToken, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWithoutExpiryIsRejected(t *testing.T) {
	claims := Claims{
		UserID:         uuid.NewString(),
		Username:       "alice",
		TokenType:      AccessToken,
		StandardClaims: jwt.StandardClaims{Id: uuid.NewString()},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	svc := NewTokenService(testAuthConfig(), NewMemoryCacheService())
	_, err = svc.Verify(context.Background(), signed, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshKeepsIdentityAndRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc := NewTokenService(testAuthConfig(), NewMemoryCacheService())
	user := testUser()

	pair, err := svc.Issue(user)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)

	identity, err := svc.Verify(ctx, refreshed.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, user.Roles, identity.Roles)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredisClient(t)
	svc := NewTokenService(testAuthConfig(), NewRedisCacheService(client))

	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))

	_, err = svc.Verify(ctx, pair.AccessToken, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The sibling refresh token has its own id.
	_, err = svc.Verify(ctx, pair.RefreshToken, RefreshToken)
	assert.NoError(t, err)
}
