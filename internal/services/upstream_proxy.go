package services

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	partText  = "text"
	partImage = "image_url"
	partVideo = "video_url"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
	VideoURL *MediaURL `json:"video_url,omitempty"`
}

type MediaURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MessageContent is either a plain string or a list of parts on the wire.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		c.Text = ""
		return json.Unmarshal(trimmed, &c.Parts)
	}
	c.Parts = nil
	return json.Unmarshal(trimmed, &c.Text)
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// media returns the URL payload matching the part type, or nil.
func (p ContentPart) media() *MediaURL {
	switch p.Type {
	case partImage:
		return p.ImageURL
	case partVideo:
		return p.VideoURL
	}
	return nil
}

// Validate rejects parts that cannot be forwarded upstream. Media parts are
// only accepted on user messages.
func (c MessageContent) Validate(role string) error {
	for i, part := range c.Parts {
		switch part.Type {
		case partText:
		case partImage, partVideo:
			if media := part.media(); media == nil || media.URL == "" {
				return errors.Validation(errors.ErrInvalidInput, fmt.Sprintf("Content part %d: %s requires a url", i, part.Type))
			}
			if role != "user" {
				return errors.Validation(errors.ErrInvalidInput, fmt.Sprintf("Content part %d: %s is only allowed in user messages", i, part.Type))
			}
		default:
			return errors.Validation(errors.ErrInvalidInput, fmt.Sprintf("Content part %d: unsupported type %q", i, part.Type))
		}
	}
	return nil
}

// HasNonText reports whether any part carries something other than text.
func (c MessageContent) HasNonText() bool {
	for _, part := range c.Parts {
		if part.Type != partText {
			return true
		}
	}
	return false
}

// PlainText joins the text parts.
func (c MessageContent) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	var texts []string
	for _, part := range c.Parts {
		if part.Type == partText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

type ChatMessage struct {
	Role    string         `json:"role" validate:"required,oneof=system user assistant"`
	Content MessageContent `json:"content"`
}

// Invocation is a validated upstream request.
type Invocation struct {
	Kind        models.RequestKind
	Model       string
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   *int
	Prompt      string
	Parameters  map[string]interface{}
}

type UsageInfo struct {
	RequestTokens  int `json:"request_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// UpstreamResult is the normalized outcome of one upstream attempt.
// StatusCode is what the gateway answers with: 200, or 502 on any failure.
type UpstreamResult struct {
	OK             bool
	Data           json.RawMessage
	Error          string
	StatusCode     int
	UpstreamStatus int
	TimedOut       bool
	Usage          UsageInfo
	Duration       time.Duration
}

// UpstreamProxy never returns an error; every failure is folded into the
// result.
type UpstreamProxy interface {
	Invoke(ctx context.Context, inv *Invocation, timeout time.Duration) *UpstreamResult
	APIKeyConfigured() bool
}

type backendResponse struct {
	data   json.RawMessage
	usage  UsageInfo
	status int
}

type upstreamProxy struct {
	chat       openai.Client
	images     *DashScopeImageClient
	apiKey     string
	errorLimit int
	now        func() time.Time
}

func NewUpstreamProxy(cfg config.UpstreamConfig) UpstreamProxy {
	return newUpstreamProxy(cfg, http.DefaultClient)
}

func newUpstreamProxy(cfg config.UpstreamConfig, httpClient *http.Client) *upstreamProxy {
	chat := openai.NewClient(
		option.WithBaseURL(cfg.CompatibleBaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient),
	)

	return &upstreamProxy{
		chat:       chat,
		images:     NewDashScopeImageClient(cfg.BaseURL, cfg.APIKey, cfg.ImagePollInterval, httpClient),
		apiKey:     cfg.APIKey,
		errorLimit: cfg.ErrorMessageLimit,
		now:        time.Now,
	}
}

func (p *upstreamProxy) APIKeyConfigured() bool {
	return p.apiKey != ""
}

func (p *upstreamProxy) Invoke(ctx context.Context, inv *Invocation, timeout time.Duration) *UpstreamResult {
	start := p.now()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp *backendResponse
	var err error
	switch inv.Kind {
	case models.KindImage:
		resp, err = p.generateImage(callCtx, inv)
	default:
		resp, err = p.complete(callCtx, inv)
	}

	result := &UpstreamResult{Duration: p.now().Sub(start)}
	if err != nil {
		result.StatusCode = http.StatusBadGateway
		result.TimedOut = stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(callCtx.Err(), context.DeadlineExceeded)
		if result.TimedOut {
			result.Error = fmt.Sprintf("upstream request timed out after %s", timeout)
		} else {
			result.Error = p.sanitize(err.Error())
		}
		var apiErr *openai.Error
		if stderrors.As(err, &apiErr) {
			result.UpstreamStatus = apiErr.StatusCode
		}
		var taskErr *DashScopeError
		if stderrors.As(err, &taskErr) {
			result.UpstreamStatus = taskErr.StatusCode
		}
		return result
	}

	result.OK = true
	result.StatusCode = http.StatusOK
	result.UpstreamStatus = resp.status
	result.Data = resp.data
	result.Usage = resp.usage
	return result
}

func (p *upstreamProxy) complete(ctx context.Context, inv *Invocation) (*backendResponse, error) {
	messages, err := convertMessages(inv.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(inv.Model),
		Messages: messages,
	}
	if inv.Temperature != nil {
		params.Temperature = openai.Float(*inv.Temperature)
	}
	if inv.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*inv.MaxTokens))
	}

	completion, err := p.chat.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	usage := UsageInfo{
		RequestTokens:  int(completion.Usage.PromptTokens),
		ResponseTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:    int(completion.Usage.TotalTokens),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.RequestTokens + usage.ResponseTokens
	}

	data := json.RawMessage(completion.RawJSON())
	if len(data) == 0 {
		if data, err = json.Marshal(completion); err != nil {
			return nil, err
		}
	}

	return &backendResponse{data: data, usage: usage, status: http.StatusOK}, nil
}

// convertMessages fails on any part it cannot forward instead of dropping it.
func convertMessages(messages []ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if err := msg.Content.Validate(msg.Role); err != nil {
			return nil, err
		}

		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content.PlainText()))
		case "assistant":
			result = append(result, openai.AssistantMessage(msg.Content.PlainText()))
		default:
			if msg.Content.Parts == nil {
				result = append(result, openai.UserMessage(msg.Content.Text))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Content.Parts))
			for _, part := range msg.Content.Parts {
				switch part.Type {
				case partText:
					parts = append(parts, openai.TextContentPart(part.Text))
				case partImage:
					image := openai.ChatCompletionContentPartImageImageURLParam{URL: part.ImageURL.URL}
					if part.ImageURL.Detail != "" {
						image.Detail = part.ImageURL.Detail
					}
					parts = append(parts, openai.ImageContentPart(image))
				case partVideo:
					// openai-go has no video part; DashScope takes the same shape as image_url.
					raw, err := json.Marshal(ContentPart{Type: partVideo, VideoURL: part.VideoURL})
					if err != nil {
						return nil, err
					}
					parts = append(parts, param.Override[openai.ChatCompletionContentPartUnionParam](json.RawMessage(raw)))
				}
			}
			result = append(result, openai.UserMessage(parts))
		}
	}
	return result, nil
}

func (p *upstreamProxy) generateImage(ctx context.Context, inv *Invocation) (*backendResponse, error) {
	task, err := p.images.Generate(ctx, inv.Model, inv.Prompt, inv.Parameters)
	if err != nil {
		return nil, err
	}

	// The image API reports no token usage; the prompt's word count stands in.
	words := len(strings.Fields(inv.Prompt))
	return &backendResponse{
		data:   task,
		usage:  UsageInfo{RequestTokens: words, ResponseTokens: 0, TotalTokens: words},
		status: http.StatusOK,
	}, nil
}

// sanitize strips the API key and bounds the message length.
func (p *upstreamProxy) sanitize(message string) string {
	if p.apiKey != "" {
		message = strings.ReplaceAll(message, p.apiKey, "[REDACTED]")
	}
	if p.errorLimit > 0 && utf8.RuneCountInString(message) > p.errorLimit {
		runes := []rune(message)
		message = string(runes[:p.errorLimit]) + "..."
	}
	return message
}
