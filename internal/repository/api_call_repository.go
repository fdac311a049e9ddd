package repository

import (
	"context"
	"time"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// APICallRepository is append-only: there is no update or delete.
type APICallRepository interface {
	Create(ctx context.Context, call *models.APICall) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.APICall, int64, error)
	Summarize(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) (*models.UsageSummary, error)
}

type apiCallRepository struct {
	db *gorm.DB
}

func NewAPICallRepository(db *gorm.DB) APICallRepository {
	return &apiCallRepository{db: db}
}

func (r *apiCallRepository) Create(ctx context.Context, call *models.APICall) error {
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return errors.Wrap(err, "failed to record api call")
	}
	return nil
}

func (r *apiCallRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.APICall, int64, error) {
	var calls []models.APICall
	var total int64

	query := r.db.WithContext(ctx).Model(&models.APICall{}).Where("user_id = ?", userID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count api calls")
	}

	err := query.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list api calls")
	}

	return calls, total, nil
}

type usageTotals struct {
	Calls          int64
	FailedCalls    int64
	RequestTokens  int64
	ResponseTokens int64
	TotalTokens    int64
	EstimatedCost  decimal.Decimal
}

func (r *apiCallRepository) Summarize(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time) (*models.UsageSummary, error) {
	var totals usageTotals
	err := r.db.WithContext(ctx).Model(&models.APICall{}).
		Select(`COUNT(*) AS calls,
			COALESCE(SUM(CASE WHEN outcome <> ? THEN 1 ELSE 0 END), 0) AS failed_calls,
			COALESCE(SUM(request_tokens), 0) AS request_tokens,
			COALESCE(SUM(response_tokens), 0) AS response_tokens,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(estimated_cost), 0) AS estimated_cost`, models.OutcomeSuccess).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, periodStart, periodEnd).
		Scan(&totals).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize api calls")
	}

	return &models.UsageSummary{
		Calls:          totals.Calls,
		FailedCalls:    totals.FailedCalls,
		RequestTokens:  totals.RequestTokens,
		ResponseTokens: totals.ResponseTokens,
		TotalTokens:    totals.TotalTokens,
		EstimatedCost:  totals.EstimatedCost,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}, nil
}
