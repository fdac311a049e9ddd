package models

import "time"

// MigrationRecord keeps track of which named migrations have been applied.
type MigrationRecord struct {
	ID        uint      `gorm:"primarykey"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}
