package repository

import (
	"context"
	"testing"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/database"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(config.DatabaseConfig{Driver: database.DriverSQLite, URL: "file::memory:"}, config.AdminConfig{})
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, repo UserRepository, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Status:       models.UserActive,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupDB(t))

	alice := createUser(t, repo, "alice")
	assert.NotEqual(t, uuid.Nil, alice.ID)
	assert.Equal(t, models.Roles{models.RoleUser}, alice.Roles)

	t.Run("lookup by username and email", func(t *testing.T) {
		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)

		byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("existence check", func(t *testing.T) {
		exists, err := repo.ExistsByUsernameOrEmail(ctx, "someone", "alice@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByUsernameOrEmail(ctx, "bob", "bob@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("roles round trip", func(t *testing.T) {
		require.NoError(t, repo.UpdateRoles(ctx, alice.ID, models.Roles{models.RoleUser, models.RolePremium}))

		reloaded, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.Roles.Has(models.RolePremium))
	})

	t.Run("profile and last login", func(t *testing.T) {
		alice.Nickname = "Al"
		require.NoError(t, repo.UpdateProfile(ctx, alice))
		require.NoError(t, repo.UpdateLastLogin(ctx, alice.ID, time.Now().UTC()))

		reloaded, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Al", reloaded.Nickname)
		assert.NotNil(t, reloaded.LastLoginAt)
	})

	t.Run("unknown user updates report not found", func(t *testing.T) {
		err := repo.UpdateRoles(ctx, uuid.New(), models.Roles{models.RoleAdmin})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestConversationRepositoryIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := NewUserRepository(db)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	conv := &models.Conversation{UserID: alice.ID, Title: "Trip", ModelName: "qwen-max", Status: models.ConversationActive}
	require.NoError(t, conversations.Create(ctx, conv))

	_, err := conversations.GetForUser(ctx, conv.ID, bob.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	found, err := conversations.GetForUser(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", found.Title)

	for i := 0; i < 3; i++ {
		require.NoError(t, messages.Create(ctx, &models.Message{
			ConversationID: conv.ID,
			UserID:         alice.ID,
			Role:           models.MessageRoleUser,
			ContentType:    models.ContentText,
			Content:        models.ToJSON("hello"),
			Status:         1,
		}))
	}

	page, total, err := messages.ListByConversation(ctx, conv.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
	assert.JSONEq(t, `"hello"`, string(page[0].Content))

	list, total, err := conversations.ListByUser(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	assert.ErrorIs(t, conversations.Delete(ctx, conv.ID, bob.ID), errors.ErrNotFound)
	require.NoError(t, conversations.Delete(ctx, conv.ID, alice.ID))

	_, total, err = messages.ListByConversation(ctx, conv.ID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAPICallRepositorySummarize(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := NewUserRepository(db)
	calls := NewAPICallRepository(db)

	alice := createUser(t, users, "alice")

	records := []models.APICall{
		{UserID: alice.ID, ModelName: "qwen-max", APIEndpoint: "/api/bailian/chat/completions", StatusCode: 200, Outcome: models.OutcomeSuccess, RequestTokens: 10, ResponseTokens: 5, TotalTokens: 15, EstimatedCost: decimal.RequireFromString("0.03")},
		{UserID: alice.ID, ModelName: "qwen-max", APIEndpoint: "/api/bailian/chat/completions", StatusCode: 502, Outcome: models.OutcomeTimeout},
	}
	for i := range records {
		require.NoError(t, calls.Create(ctx, &records[i]))
	}

	now := time.Now().UTC()
	summary, err := calls.Summarize(ctx, alice.ID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Calls)
	assert.EqualValues(t, 1, summary.FailedCalls)
	assert.EqualValues(t, 15, summary.TotalTokens)
	assert.True(t, summary.EstimatedCost.Equal(decimal.RequireFromString("0.03")), summary.EstimatedCost.String())

	listed, total, err := calls.ListByUser(ctx, alice.ID, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, listed, 1)
}

func TestAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditLogRepository(setupDB(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateAuditLog(ctx, &models.AuditLog{
			AdminID:    uuid.New(),
			Action:     "update_roles",
			EntityType: "user",
			EntityID:   uuid.NewString(),
			Timestamp:  time.Now().UTC(),
		}))
	}

	logs, total, err := repo.ListAuditLogs(ctx, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, logs, 2)
}
