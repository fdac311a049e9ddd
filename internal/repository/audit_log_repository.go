package repository

import (
	"context"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"gorm.io/gorm"
)

type AuditLogRepository interface {
	ListAuditLogs(ctx context.Context, page, pageSize int) ([]models.AuditLog, int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{
		db: db,
	}
}

func (r *auditLogRepository) ListAuditLogs(ctx context.Context, page, pageSize int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	offset := (page - 1) * pageSize

	err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit logs")
	}

	err = r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit logs")
	}

	return logs, total, nil
}

func (r *auditLogRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return errors.Wrap(err, "failed to create audit log")
	}
	return nil
}
