package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	AdminID    uuid.UUID `gorm:"type:char(36);index" json:"adminId"`
	Action     string    `gorm:"type:varchar(64)" json:"action"`
	EntityType string    `gorm:"type:varchar(64)" json:"entityType"`
	EntityID   string    `gorm:"type:varchar(64)" json:"entityId"`
	Details    string    `gorm:"type:text" json:"details"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}
