package database

import (
	"testing"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, admin config.AdminConfig) *gorm.DB {
	t.Helper()
	db, err := InitDB(config.DatabaseConfig{Driver: DriverSQLite, URL: "file::memory:"}, admin)
	require.NoError(t, err)
	return db
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(config.DatabaseConfig{Driver: "oracle", URL: "x"}, config.AdminConfig{})
	assert.Error(t, err)
}

func TestInitDBRequiresURL(t *testing.T) {
	_, err := InitDB(config.DatabaseConfig{Driver: DriverSQLite}, config.AdminConfig{})
	assert.Error(t, err)
}

func TestSeedInitialAdmin(t *testing.T) {
	db := openTestDB(t, config.AdminConfig{Username: "root", Email: "root@example.com", Password: "S3cret!pass"})

	var admin models.User
	require.NoError(t, db.Where("username = ?", "root").First(&admin).Error)
	assert.True(t, admin.Roles.Has(models.RoleAdmin))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("S3cret!pass")))

	var record models.MigrationRecord
	require.NoError(t, db.Where("name = ?", "seed_initial_admin").First(&record).Error)
}

func TestSeedSkippedWithoutPassword(t *testing.T) {
	db := openTestDB(t, config.AdminConfig{Username: "root", Email: "root@example.com"})

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunMigrationsAppliesOnce(t *testing.T) {
	db := openTestDB(t, config.AdminConfig{})

	runs := 0
	migrations := []Migration{{
		Name: "count_runs",
		Run: func(tx *gorm.DB) error {
			runs++
			return nil
		},
	}}

	require.NoError(t, RunMigrations(db, migrations))
	require.NoError(t, RunMigrations(db, migrations))
	assert.Equal(t, 1, runs)
}
