// Package bedrock is a ModelClient backend for AWS Bedrock, mirroring
// the teacher's ai/providers/bedrock client's aws.Config-first
// constructor shape. Unlike the teacher, which gates this package
// behind a "bedrock" build tag so callers opt in at compile time,
// consensusd wires it unconditionally and chooses Bedrock vs. the mock
// client at runtime based on whether AWS credentials resolve.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
)

// Client implements modelclient.ModelClient against Bedrock's
// InvokeModelWithResponseStream API using the Anthropic Claude wire
// format Bedrock exposes for Claude models.
type Client struct {
	runtime *bedrockruntime.Client
}

func NewClient(cfg aws.Config) *Client {
	return &Client{runtime: bedrockruntime.NewFromConfig(cfg)}
}

type claudeBody struct {
	AnthropicVersion string                    `json:"anthropic_version"`
	Messages         []claudeMessage           `json:"messages"`
	MaxTokens        int                       `json:"max_tokens"`
	Temperature      float32                   `json:"temperature"`
	System           string                    `json:"system,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) Stream(ctx context.Context, req modelclient.Request) (<-chan modelclient.ChunkEvent, error) {
	var system string
	msgs := make([]claudeMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == modelclient.RoleSystem {
			system = m.Content
			continue
		}
		msgs = append(msgs, claudeMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(claudeBody{
		AnthropicVersion: "bedrock-2023-05-31",
		Messages:         msgs,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to marshal request: %w", err)
	}

	resp, err := c.runtime.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.ModelID),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke failed: %w", err)
	}

	out := make(chan modelclient.ChunkEvent)
	go pump(ctx, resp.GetStream(), out)
	return out, nil
}

func pump(ctx context.Context, stream *bedrockruntime.ResponseStream, out chan<- modelclient.ChunkEvent) {
	defer close(out)
	defer stream.Close()

	var inputTokens, outputTokens int

	emit := func(ev modelclient.ChunkEvent) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- ev:
			return true
		}
	}

	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var decoded struct {
			Type  string `json:"type"`
			Delta *struct {
				Text       string `json:"text"`
				StopReason string `json:"stop_reason"`
			} `json:"delta"`
			Usage *struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(chunk.Value.Bytes, &decoded); err != nil {
			continue
		}
		if decoded.Usage != nil {
			if decoded.Usage.InputTokens > 0 {
				inputTokens = decoded.Usage.InputTokens
			}
			if decoded.Usage.OutputTokens > 0 {
				outputTokens = decoded.Usage.OutputTokens
			}
		}
		switch decoded.Type {
		case "content_block_delta":
			if decoded.Delta != nil && decoded.Delta.Text != "" {
				if !emit(modelclient.ChunkEvent{Kind: modelclient.ChunkToken, Text: decoded.Delta.Text}) {
					return
				}
			}
		case "message_delta":
			if decoded.Delta != nil && decoded.Delta.StopReason != "" {
				emit(modelclient.ChunkEvent{Kind: modelclient.ChunkUsage, Prompt: inputTokens, Completion: outputTokens})
				emit(modelclient.ChunkEvent{Kind: modelclient.ChunkDone, FinishReason: decoded.Delta.StopReason})
				return
			}
		}
	}
	emit(modelclient.ChunkEvent{Kind: modelclient.ChunkUsage, Prompt: inputTokens, Completion: outputTokens})
	emit(modelclient.ChunkEvent{Kind: modelclient.ChunkDone, FinishReason: "stop"})
}
