package database

import (
	"errors"
	"fmt"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Migration struct {
	Name string
	Run  func(*gorm.DB) error
}

func GetMigrations(admin config.AdminConfig) []Migration {
	var migrations []Migration
	if admin.Password != "" {
		migrations = append(migrations, Migration{
			Name: "seed_initial_admin",
			Run: func(db *gorm.DB) error {
				return seedAdmin(db, admin)
			},
		})
	}
	return migrations
}

// RunMigrations applies each named migration at most once, recording it in
// the same transaction as its changes.
func RunMigrations(db *gorm.DB, migrations []Migration) error {
	for _, migration := range migrations {
		var record models.MigrationRecord
		result := db.Where("name = ?", migration.Name).First(&record)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			logger.LogEvent(logrus.InfoLevel, "Running migration", logrus.Fields{"migration": migration.Name})

			err := db.Transaction(func(tx *gorm.DB) error {
				if err := migration.Run(tx); err != nil {
					return err
				}

				return tx.Create(&models.MigrationRecord{Name: migration.Name}).Error
			})

			if err != nil {
				return fmt.Errorf("migration '%s' failed: %v", migration.Name, err)
			}
		} else if result.Error != nil {
			return fmt.Errorf("failed to check migration status: %v", result.Error)
		}
	}

	return nil
}

// seedAdmin creates the first administrator unless the username is taken.
func seedAdmin(db *gorm.DB, admin config.AdminConfig) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", admin.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&models.User{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: string(hash),
		Nickname:     "Administrator",
		Roles:        models.Roles{models.RoleUser, models.RoleAdmin},
		Status:       models.UserActive,
	}).Error
}
