package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CallOutcome string

const (
	OutcomeSuccess CallOutcome = "success"
	OutcomeError   CallOutcome = "error"
	OutcomeTimeout CallOutcome = "timeout"
)

// APICall is the append-only usage record written once per upstream attempt.
type APICall struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	UserID          uuid.UUID       `gorm:"type:char(36);index:idx_api_calls_user_created,priority:1;not null" json:"user_id"`
	ConversationID  *uint           `gorm:"index" json:"conversation_id,omitempty"`
	ModelName       string          `gorm:"type:varchar(100);index;not null" json:"model_name"`
	APIEndpoint     string          `gorm:"type:varchar(255);not null" json:"api_endpoint"`
	RequestContent  JSON            `gorm:"type:text" json:"-"`
	ResponseContent JSON            `gorm:"type:text" json:"-"`
	StatusCode      int             `json:"status_code"`
	Outcome         CallOutcome     `gorm:"type:varchar(16);index;not null" json:"outcome"`
	ErrorMessage    string          `gorm:"type:text" json:"error_message,omitempty"`
	RequestTokens   int             `gorm:"not null;default:0" json:"request_tokens"`
	ResponseTokens  int             `gorm:"not null;default:0" json:"response_tokens"`
	TotalTokens     int             `gorm:"not null;default:0" json:"total_tokens"`
	CallDurationMs  int64           `json:"call_duration"`
	EstimatedCost   decimal.Decimal `gorm:"type:decimal(14,6);not null;default:0" json:"estimated_cost"`
	ClientIP        string          `gorm:"type:varchar(45)" json:"client_ip,omitempty"`
	UserAgent       string          `gorm:"type:text" json:"user_agent,omitempty"`
	CorrelationID   string          `gorm:"type:varchar(64);index" json:"correlation_id,omitempty"`
	CreatedAt       time.Time       `gorm:"index:idx_api_calls_user_created,priority:2" json:"created_at"`
}

func (APICall) TableName() string {
	return "api_calls"
}

// UsageSummary aggregates a user's calls over a period.
type UsageSummary struct {
	Calls          int64           `json:"calls"`
	FailedCalls    int64           `json:"failed_calls"`
	RequestTokens  int64           `json:"request_tokens"`
	ResponseTokens int64           `json:"response_tokens"`
	TotalTokens    int64           `json:"total_tokens"`
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
}
