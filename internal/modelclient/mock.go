package modelclient

import "context"

// MockClient is a deterministic, in-process ModelClient used by the
// engine's own tests and by callers wiring a consensus run without a
// live transport. It mirrors the teacher's pattern of a "mock" AI
// provider living alongside the real ones (ai/providers/mock).
type MockClient struct {
	// Response is split into chunks of this size to emulate streaming.
	Response  string
	ChunkSize int
	// FailWith, if set, ends the stream with this error kind/message
	// instead of completing normally.
	FailWith *ChunkEvent
}

func NewMockClient(response string) *MockClient {
	return &MockClient{Response: response, ChunkSize: 16}
}

func (m *MockClient) Stream(ctx context.Context, req Request) (<-chan ChunkEvent, error) {
	ch := make(chan ChunkEvent)
	go func() {
		defer close(ch)
		chunkSize := m.ChunkSize
		if chunkSize <= 0 {
			chunkSize = 16
		}
		text := m.Response
		for i := 0; i < len(text); i += chunkSize {
			end := i + chunkSize
			if end > len(text) {
				end = len(text)
			}
			select {
			case <-ctx.Done():
				return
			case ch <- ChunkEvent{Kind: ChunkToken, Text: text[i:end]}:
			}
		}
		if m.FailWith != nil {
			select {
			case <-ctx.Done():
			case ch <- *m.FailWith:
			}
			return
		}
		prompt := len(req.Messages) * 10
		completion := len(text) / 4
		select {
		case <-ctx.Done():
		case ch <- ChunkEvent{Kind: ChunkUsage, Prompt: prompt, Completion: completion}:
		}
		select {
		case <-ctx.Done():
		case ch <- ChunkEvent{Kind: ChunkDone, FinishReason: "stop"}:
		}
	}()
	return ch, nil
}
