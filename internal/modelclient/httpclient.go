package modelclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// AnthropicStyleClient talks to any Anthropic Messages-API-compatible
// endpoint over SSE, mirroring the teacher's ai/providers/anthropic
// client: native request shape, x-api-key auth, content_block_delta
// chunk parsing.
type AnthropicStyleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     gomindlog.Logger
}

func NewAnthropicStyleClient(apiKey, baseURL string, logger gomindlog.Logger) *AnthropicStyleClient {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	return &AnthropicStyleClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 0, // streaming: the ctx deadline governs cancellation, not a blanket client timeout
		},
		logger: logger,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float32             `json:"temperature"`
	System      string              `json:"system,omitempty"`
	Stream      bool                `json:"stream"`
}

type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Model string `json:"model"`
		Usage *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicStyleClient) Stream(ctx context.Context, req Request) (<-chan ChunkEvent, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("model client: API key not configured")
	}

	var system string
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	body := anthropicRequest{
		Model:       req.ModelID,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      system,
		Stream:      true,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("model client: API error (status %d)", resp.StatusCode)
	}

	out := make(chan ChunkEvent)
	go c.pump(ctx, resp.Body, out)
	return out, nil
}

func (c *AnthropicStyleClient) pump(ctx context.Context, body io.ReadCloser, out chan<- ChunkEvent) {
	defer close(out)
	defer body.Close()

	reader := bufio.NewReader(body)
	var model string
	var inputTokens, outputTokens int
	chunkIndex := 0

	emit := func(ev ChunkEvent) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- ev:
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "event: ") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Debug("model client: failed to parse SSE event", map[string]interface{}{"error": err.Error()})
			continue
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				model = ev.Message.Model
				if ev.Message.Usage != nil {
					inputTokens = ev.Message.Usage.InputTokens
				}
			}
		case "content_block_delta":
			if ev.Delta != nil && ev.Delta.Text != "" {
				if !emit(ChunkEvent{Kind: ChunkToken, Text: ev.Delta.Text}) {
					return
				}
				chunkIndex++
			}
		case "message_delta":
			if ev.Usage != nil {
				outputTokens = ev.Usage.OutputTokens
			}
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				emit(ChunkEvent{Kind: ChunkUsage, Prompt: inputTokens, Completion: outputTokens})
				emit(ChunkEvent{Kind: ChunkDone, FinishReason: ev.Delta.StopReason, Model: model})
				return
			}
		case "message_stop":
			emit(ChunkEvent{Kind: ChunkUsage, Prompt: inputTokens, Completion: outputTokens})
			emit(ChunkEvent{Kind: ChunkDone, FinishReason: "stop", Model: model})
			return
		}
	}
}
