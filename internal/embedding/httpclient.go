package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. Retry
// behavior mirrors the teacher's ai/providers/base.go BaseClient:
// exponential backoff on 5xx/429/network errors, immediate return on
// other 4xx.
type HTTPEmbedder struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dim        int
	HTTPClient *http.Client
	Logger     gomindlog.Logger
	MaxRetries int
	RetryDelay time.Duration
}

// NewHTTPEmbedder constructs a client for an OpenAI-compatible
// embeddings endpoint.
func NewHTTPEmbedder(baseURL, apiKey, model string, dim int, logger gomindlog.Logger) *HTTPEmbedder {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	return &HTTPEmbedder{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Dim:        dim,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

func (c *HTTPEmbedder) Dimensions() int { return c.Dim }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponseItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingResponseItem `json:"data"`
}

func (c *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.executeWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding: API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: unmarshal response: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index >= 0 && item.Index < len(out) {
			out[item.Index] = item.Embedding
		}
	}
	return out, nil
}

// executeWithRetry mirrors providers.BaseClient.ExecuteWithRetry:
// exponential backoff, immediate return on non-retryable 4xx.
func (c *HTTPEmbedder) executeWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		reqClone := req.Clone(ctx)

		resp, err := c.HTTPClient.Do(reqClone)
		if err == nil && resp.StatusCode < 400 {
			return resp, nil
		}
		if err == nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("embedding: server error: status %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt < c.MaxRetries {
			shift := uint(attempt)
			if shift > 5 {
				shift = 5
			}
			delay := c.RetryDelay * time.Duration(1<<shift)
			c.Logger.Debug("retrying embedding request", map[string]interface{}{
				"attempt": attempt + 1,
				"delay":   delay,
				"error":   lastErr,
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("embedding: request failed after %d retries: %w", c.MaxRetries, lastErr)
}
