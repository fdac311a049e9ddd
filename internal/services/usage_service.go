package services

import (
	"context"
	"time"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/repository"

	"github.com/google/uuid"
)

// UsageService owns the append-only usage records.
type UsageService interface {
	Record(ctx context.Context, call *models.APICall) error
	GetCurrentUsage(ctx context.Context, userID uuid.UUID) (*models.UsageSummary, error)
	ListCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.APICall, int64, error)
}

type usageService struct {
	repo repository.APICallRepository
	now  func() time.Time
}

func NewUsageService(repo repository.APICallRepository) UsageService {
	return &usageService{
		repo: repo,
		now:  time.Now,
	}
}

func (s *usageService) Record(ctx context.Context, call *models.APICall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = s.now().UTC()
	}
	return s.repo.Create(ctx, call)
}

// GetCurrentUsage summarizes the calendar month (UTC) containing now.
func (s *usageService) GetCurrentUsage(ctx context.Context, userID uuid.UUID) (*models.UsageSummary, error) {
	now := s.now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	return s.repo.Summarize(ctx, userID, periodStart, periodEnd)
}

func (s *usageService) ListCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.APICall, int64, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
