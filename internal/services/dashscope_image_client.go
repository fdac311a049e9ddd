package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	taskSucceeded = "SUCCEEDED"
	taskFailed    = "FAILED"
	taskCanceled  = "CANCELED"
	taskUnknown   = "UNKNOWN"
)

// DashScopeError is a failure reported by the native DashScope API.
type DashScopeError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DashScopeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dashscope error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dashscope error %d: %s", e.StatusCode, e.Message)
}

// DashScopeImageClient drives the asynchronous text-to-image task API:
// submit a task, then poll it until it reaches a terminal status.
type DashScopeImageClient struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	httpClient   *http.Client
}

func NewDashScopeImageClient(baseURL, apiKey string, pollInterval time.Duration, httpClient *http.Client) *DashScopeImageClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DashScopeImageClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		httpClient:   httpClient,
	}
}

type imageTaskRequest struct {
	Model      string                 `json:"model"`
	Input      imageTaskInput         `json:"input"`
	Parameters map[string]interface{} `json:"parameters"`
}

type imageTaskInput struct {
	Prompt string `json:"prompt"`
}

type taskEnvelope struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	} `json:"output"`
}

// Generate returns the raw body of the finished task.
func (c *DashScopeImageClient) Generate(ctx context.Context, model, prompt string, parameters map[string]interface{}) (json.RawMessage, error) {
	params := map[string]interface{}{
		"size": "1024*1024",
		"n":    1,
	}
	for k, v := range parameters {
		params[k] = v
	}

	body, err := json.Marshal(imageTaskRequest{
		Model:      model,
		Input:      imageTaskInput{Prompt: prompt},
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/services/aigc/text2image/image-synthesis", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")

	raw, envelope, err := c.do(req)
	if err != nil {
		return nil, err
	}

	taskID := envelope.Output.TaskID
	if taskID == "" {
		return nil, &DashScopeError{StatusCode: http.StatusOK, Message: "task submission returned no task_id"}
	}
	if done, err := terminal(envelope); done {
		return raw, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
		if err != nil {
			return nil, err
		}

		raw, envelope, err = c.do(req)
		if err != nil {
			return nil, err
		}
		if done, err := terminal(envelope); done {
			return raw, err
		}
	}
}

func terminal(envelope *taskEnvelope) (bool, error) {
	switch envelope.Output.TaskStatus {
	case taskSucceeded:
		return true, nil
	case taskFailed, taskCanceled, taskUnknown:
		message := envelope.Output.Message
		if message == "" {
			message = "task " + strings.ToLower(envelope.Output.TaskStatus)
		}
		return true, &DashScopeError{StatusCode: http.StatusOK, Code: envelope.Output.Code, Message: message}
	}
	return false, nil
}

func (c *DashScopeImageClient) do(req *http.Request) (json.RawMessage, *taskEnvelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	var envelope taskEnvelope
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode != http.StatusOK {
		apiErr := &DashScopeError{StatusCode: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, nil, apiErr
	}
	if decodeErr != nil {
		return nil, nil, fmt.Errorf("failed to decode dashscope response: %v", decodeErr)
	}

	return raw, &envelope, nil
}
