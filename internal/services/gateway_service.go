package services

import (
	"context"
	"encoding/json"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const recordTimeout = 5 * time.Second

// ClientInfo is request metadata copied onto the usage record.
type ClientInfo struct {
	IP            string
	UserAgent     string
	CorrelationID string
}

type GatewayRequest struct {
	Kind           models.RequestKind
	Endpoint       string
	Model          string
	Messages       []ChatMessage
	Temperature    *float64
	MaxTokens      *int
	Prompt         string
	Parameters     map[string]interface{}
	ConversationID *uint
	Client         ClientInfo
}

// UsageView is the usage block of a gateway response.
type UsageView struct {
	RequestTokens  int             `json:"request_tokens"`
	ResponseTokens int             `json:"response_tokens"`
	TotalTokens    int             `json:"total_tokens"`
	CallDuration   int64           `json:"call_duration"`
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
}

type GatewayResponse struct {
	Data  json.RawMessage
	Usage UsageView
}

type ModelCapabilityView struct {
	MaxTokens               int     `json:"max_tokens"`
	SupportsMultimodal      bool    `json:"supports_multimodal"`
	SupportsImageGeneration bool    `json:"supports_image_generation"`
	RateLimitRPM            int     `json:"rate_limit_rpm"`
	CostPerToken            float64 `json:"cost_per_token"`
	TimeoutSeconds          float64 `json:"timeout_seconds"`
}

type ModelStatus struct {
	SupportedModels   []string                       `json:"supported_models"`
	ModelCapabilities map[string]ModelCapabilityView `json:"model_capabilities"`
	APIKeyConfigured  bool                           `json:"api_key_configured"`
	ServiceStatus     string                         `json:"service_status"`
}

// GatewayService runs the part of the pipeline after authentication and rate
// limiting: validate, invoke upstream, record usage.
type GatewayService interface {
	Execute(ctx context.Context, identity *Identity, req *GatewayRequest) (*GatewayResponse, error)
	ModelStatus() *ModelStatus
}

type gatewayService struct {
	registry      *ModelRegistry
	proxy         UpstreamProxy
	usage         UsageService
	conversations repository.ConversationRepository
	metrics       *metrics.Metrics
	cfg           config.UpstreamConfig
}

func NewGatewayService(
	registry *ModelRegistry,
	proxy UpstreamProxy,
	usage UsageService,
	conversations repository.ConversationRepository,
	m *metrics.Metrics,
	cfg config.UpstreamConfig,
) GatewayService {
	return &gatewayService{
		registry:      registry,
		proxy:         proxy,
		usage:         usage,
		conversations: conversations,
		metrics:       m,
		cfg:           cfg,
	}
}

func (s *gatewayService) Execute(ctx context.Context, identity *Identity, req *GatewayRequest) (*GatewayResponse, error) {
	shape := RequestShape{Kind: req.Kind, MaxTokens: req.MaxTokens}
	for _, msg := range req.Messages {
		if err := msg.Content.Validate(msg.Role); err != nil {
			return nil, err
		}
		if msg.Content.HasNonText() {
			shape.HasNonText = true
		}
	}

	capability, err := s.registry.Validate(req.Model, shape)
	if err != nil {
		return nil, err
	}

	if req.ConversationID != nil {
		if _, err := s.conversations.GetForUser(ctx, *req.ConversationID, identity.UserID); err != nil {
			return nil, err
		}
	}

	inv := &Invocation{
		Kind:        req.Kind,
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Prompt:      req.Prompt,
		Parameters:  req.Parameters,
	}

	result := s.proxy.Invoke(ctx, inv, s.timeoutFor(capability))
	cost := estimateCost(capability, result)

	s.record(ctx, identity, req, inv, result, cost)
	s.observe(req.Model, result)

	if !result.OK {
		logger.WithContext(ctx).WithFields(logrus.Fields{
			"model":           req.Model,
			"upstream_status": result.UpstreamStatus,
			"timed_out":       result.TimedOut,
			"duration_ms":     result.Duration.Milliseconds(),
		}).Warn("Upstream call failed")
		return nil, errors.Upstream(nil, result.Error)
	}

	if req.ConversationID != nil {
		if err := s.conversations.Touch(ctx, *req.ConversationID); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("Failed to touch conversation")
		}
	}

	return &GatewayResponse{
		Data: result.Data,
		Usage: UsageView{
			RequestTokens:  result.Usage.RequestTokens,
			ResponseTokens: result.Usage.ResponseTokens,
			TotalTokens:    result.Usage.TotalTokens,
			CallDuration:   result.Duration.Milliseconds(),
			EstimatedCost:  cost,
		},
	}, nil
}

func (s *gatewayService) timeoutFor(capability *models.ModelCapability) time.Duration {
	if capability.Timeout > 0 {
		return capability.Timeout
	}
	if capability.SupportsImageGeneration {
		return s.cfg.ImageTimeout
	}
	return s.cfg.Timeout
}

// estimateCost charges per token for text models and a flat rate per
// successful image call.
func estimateCost(capability *models.ModelCapability, result *UpstreamResult) decimal.Decimal {
	if capability.SupportsImageGeneration {
		if result.OK {
			return capability.CostPerToken
		}
		return decimal.Zero
	}
	return capability.CostPerToken.Mul(decimal.NewFromInt(int64(result.Usage.TotalTokens)))
}

// record always runs once the upstream was invoked. A failure to persist is
// logged and does not change the caller's response.
func (s *gatewayService) record(ctx context.Context, identity *Identity, req *GatewayRequest, inv *Invocation, result *UpstreamResult, cost decimal.Decimal) {
	call := &models.APICall{
		UserID:         identity.UserID,
		ConversationID: req.ConversationID,
		ModelName:      req.Model,
		APIEndpoint:    req.Endpoint,
		RequestContent: models.ToJSON(requestContent(inv)),
		StatusCode:     result.StatusCode,
		Outcome:        outcomeOf(result),
		RequestTokens:  result.Usage.RequestTokens,
		ResponseTokens: result.Usage.ResponseTokens,
		TotalTokens:    result.Usage.TotalTokens,
		CallDurationMs: result.Duration.Milliseconds(),
		EstimatedCost:  cost,
		ClientIP:       req.Client.IP,
		UserAgent:      req.Client.UserAgent,
		CorrelationID:  req.Client.CorrelationID,
	}
	if result.OK {
		call.ResponseContent = models.JSON(result.Data)
	} else {
		call.ErrorMessage = result.Error
		call.ResponseContent = models.ToJSON(map[string]string{"error": result.Error})
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.usage.Record(recordCtx, call); err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"user_id": identity.UserID.String(),
			"model":   req.Model,
		}).Error("Failed to record API call")
	}
}

func requestContent(inv *Invocation) map[string]interface{} {
	content := map[string]interface{}{"model": inv.Model}
	if inv.Kind == models.KindImage {
		content["prompt"] = inv.Prompt
		if inv.Parameters != nil {
			content["parameters"] = inv.Parameters
		}
		return content
	}
	content["messages"] = inv.Messages
	if inv.Temperature != nil {
		content["temperature"] = *inv.Temperature
	}
	if inv.MaxTokens != nil {
		content["max_tokens"] = *inv.MaxTokens
	}
	return content
}

func outcomeOf(result *UpstreamResult) models.CallOutcome {
	switch {
	case result.OK:
		return models.OutcomeSuccess
	case result.TimedOut:
		return models.OutcomeTimeout
	default:
		return models.OutcomeError
	}
}

func (s *gatewayService) observe(model string, result *UpstreamResult) {
	s.metrics.RecordAIRequest(model, string(outcomeOf(result)), result.Duration)
	s.metrics.RecordTokenUsage(model, result.Usage.RequestTokens, result.Usage.ResponseTokens)
}

func (s *gatewayService) ModelStatus() *ModelStatus {
	status := &ModelStatus{
		SupportedModels:   s.registry.Names(),
		ModelCapabilities: make(map[string]ModelCapabilityView),
		APIKeyConfigured:  s.proxy.APIKeyConfigured(),
		ServiceStatus:     "ready",
	}
	for name, capability := range s.registry.All() {
		status.ModelCapabilities[name] = ModelCapabilityView{
			MaxTokens:               capability.MaxTokens,
			SupportsMultimodal:      capability.SupportsMultimodal,
			SupportsImageGeneration: capability.SupportsImageGeneration,
			RateLimitRPM:            capability.RateLimitRPM,
			CostPerToken:            capability.CostPerToken.InexactFloat64(),
			TimeoutSeconds:          s.timeoutFor(&capability).Seconds(),
		}
	}
	return status
}
