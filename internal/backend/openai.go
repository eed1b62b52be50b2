package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/transtools/doctrans/pkg/log"
)

// OpenAIConfig configures the OpenAI-compatible adapter. Works against any
// chat-completions endpoint (OpenAI, OpenRouter, vLLM, LM Studio).
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (c *OpenAIConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// OpenAI translates batches through a chat-completions API using the
// numbered-line protocol.
type OpenAI struct {
	config     OpenAIConfig
	httpClient *http.Client
}

func NewOpenAI(config OpenAIConfig) (*OpenAI, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid openai config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	return &OpenAI{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Translate submits the batch as numbered lines and maps the numbered
// response back to unit IDs. Any protocol violation fails the whole batch
// as transient so the scheduler can retry, eventually down to singletons.
func (o *OpenAI) Translate(ctx context.Context, req BatchRequest) (map[string]Result, error) {
	content, err := o.complete(ctx, buildSystemPrompt(req), buildUserPrompt(req))
	if err != nil {
		return allFailed(req.Batch), err
	}

	lines, err := parseNumberedLines(content, len(req.Batch.Units))
	if err != nil {
		log.Warn("batch %d: malformed model response: %v", req.Batch.Index, err)
		return allFailed(req.Batch), Transient(err)
	}

	results := make(map[string]Result, len(lines))
	for i, u := range req.Batch.Units {
		results[u.ID] = Result{
			UnitID:         u.ID,
			TranslatedText: lines[i],
			Status:         StatusSuccess,
		}
	}
	return results, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: o.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(responseBody), 512))
		return "", &Error{Kind: classifyStatus(resp.StatusCode), Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", Transient(fmt.Errorf("failed to parse response: %w", err))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", Transient(fmt.Errorf("API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", Transient(fmt.Errorf("no choices in response"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
