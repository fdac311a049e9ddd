package services

import (
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedModel     = stderrors.New("unsupported model")
	ErrTokenLimitExceeded   = stderrors.New("max_tokens exceeds model limit")
	ErrModalityUnsupported  = stderrors.New("model does not support multimodal content")
	ErrOperationUnsupported = stderrors.New("model does not support this operation")
)

// RequestShape is the part of a request the registry validates.
type RequestShape struct {
	Kind       models.RequestKind
	MaxTokens  *int
	HasNonText bool
}

type ModelRegistry struct {
	models map[string]models.ModelCapability
}

func DefaultModelCapabilities() []models.ModelCapability {
	return []models.ModelCapability{
		{
			Name:         "qwen-max",
			MaxTokens:    8192,
			RateLimitRPM: 100,
			CostPerToken: decimal.RequireFromString("0.002"),
		},
		{
			Name:               "qwen-vl-max",
			MaxTokens:          8192,
			SupportsMultimodal: true,
			RateLimitRPM:       60,
			CostPerToken:       decimal.RequireFromString("0.003"),
		},
		{
			Name:                    "wan2.2-t2i-plus",
			MaxTokens:               1024,
			SupportsImageGeneration: true,
			RateLimitRPM:            20,
			CostPerToken:            decimal.RequireFromString("0.01"),
		},
	}
}

func NewModelRegistry(capabilities []models.ModelCapability) *ModelRegistry {
	registry := &ModelRegistry{models: make(map[string]models.ModelCapability, len(capabilities))}
	for _, capability := range capabilities {
		registry.models[capability.Name] = capability
	}
	return registry
}

type registryFile struct {
	Models []models.ModelCapability `yaml:"models"`
}

// LoadModelRegistry starts from the built-in models and applies the entries
// of the YAML file at path, if any. Entries replace built-ins of the same name.
func LoadModelRegistry(path string) (*ModelRegistry, error) {
	registry := NewModelRegistry(DefaultModelCapabilities())
	if path == "" {
		return registry, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model registry: %v", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model registry: %v", err)
	}

	for _, capability := range file.Models {
		if capability.Name == "" {
			return nil, fmt.Errorf("model registry entry without a name")
		}
		if capability.MaxTokens <= 0 {
			return nil, fmt.Errorf("model %s: max_tokens must be positive", capability.Name)
		}
		registry.models[capability.Name] = capability
	}

	return registry, nil
}

func (r *ModelRegistry) Get(name string) (models.ModelCapability, bool) {
	capability, ok := r.models[name]
	return capability, ok
}

// Names returns the registered model names in sorted order.
func (r *ModelRegistry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ModelRegistry) All() map[string]models.ModelCapability {
	out := make(map[string]models.ModelCapability, len(r.models))
	for name, capability := range r.models {
		out[name] = capability
	}
	return out
}

// Validate checks, in order: membership, the max_tokens ceiling, modality,
// then whether the model serves this kind of request. Oversized max_tokens
// is always rejected, never clamped.
func (r *ModelRegistry) Validate(model string, shape RequestShape) (*models.ModelCapability, error) {
	capability, ok := r.models[model]
	if !ok {
		return nil, errors.Validation(ErrUnsupportedModel, fmt.Sprintf(
			"Unsupported model: %s. Supported models: %s", model, strings.Join(r.Names(), ", ")))
	}

	if shape.MaxTokens != nil && *shape.MaxTokens > capability.MaxTokens {
		return nil, errors.Validation(ErrTokenLimitExceeded, fmt.Sprintf(
			"max_tokens %d exceeds model limit %d", *shape.MaxTokens, capability.MaxTokens))
	}

	if shape.HasNonText && !capability.SupportsMultimodal {
		return nil, errors.Validation(ErrModalityUnsupported, fmt.Sprintf(
			"Model %s does not support multimodal content", model))
	}

	if !capability.Serves(shape.Kind) {
		return nil, errors.Validation(ErrOperationUnsupported, fmt.Sprintf(
			"Request type '%s' not supported for model '%s'", shape.Kind, model))
	}

	return &capability, nil
}
