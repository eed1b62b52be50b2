package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LocalConfig configures the local inference daemon adapter (ollama-style
// /api/generate endpoint).
type LocalConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Local translates batches through a locally running inference daemon.
type Local struct {
	config     LocalConfig
	httpClient *http.Client
}

func NewLocal(config LocalConfig) *Local {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "llama3.2"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &Local{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

func (l *Local) Name() string { return "local" }

// Ping verifies the daemon is reachable.
func (l *Local) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("local daemon not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local daemon returned status %d", resp.StatusCode)
	}
	return nil
}

func (l *Local) Translate(ctx context.Context, req BatchRequest) (map[string]Result, error) {
	prompt := buildSystemPrompt(req) + "\n\n" + buildUserPrompt(req)

	payload := map[string]interface{}{
		"model":  l.config.Model,
		"prompt": prompt,
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return allFailed(req.Batch), Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return allFailed(req.Batch), Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return allFailed(req.Batch), Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("daemon returned status %d", resp.StatusCode)
		return allFailed(req.Batch), &Error{Kind: classifyStatus(resp.StatusCode), Err: err}
	}

	var generated struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return allFailed(req.Batch), Transient(fmt.Errorf("failed to decode response: %w", err))
	}

	lines, err := parseNumberedLines(generated.Response, len(req.Batch.Units))
	if err != nil {
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
