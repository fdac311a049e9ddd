package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestKind string

const (
	KindChat       RequestKind = "chat"
	KindMultimodal RequestKind = "multimodal"
	KindImage      RequestKind = "image"
)

// ModelCapability is the static descriptor of an upstream model.
type ModelCapability struct {
	Name                    string          `yaml:"name" json:"-"`
	MaxTokens               int             `yaml:"max_tokens" json:"max_tokens"`
	SupportsMultimodal      bool            `yaml:"supports_multimodal" json:"supports_multimodal"`
	SupportsImageGeneration bool            `yaml:"supports_image_generation" json:"supports_image_generation"`
	RateLimitRPM            int             `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	CostPerToken            decimal.Decimal `yaml:"cost_per_token" json:"cost_per_token"`
	// Timeout overrides the gateway-wide upstream timeout when non-zero.
	Timeout time.Duration `yaml:"timeout" json:"-"`
}

// Serves reports whether the model can answer the given kind of request.
func (m *ModelCapability) Serves(kind RequestKind) bool {
	switch kind {
	case KindImage:
		return m.SupportsImageGeneration
	case KindMultimodal:
		return m.SupportsMultimodal && !m.SupportsImageGeneration
	case KindChat:
		return !m.SupportsImageGeneration
	}
	return false
}
