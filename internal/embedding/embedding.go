// Package embedding implements the text-to-vector service (spec.md §4
// C2): a fixed-dimension embedder, batched, with a size-bounded cache.
package embedding

import "context"

// Embedder converts text into a fixed-dimension float vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// embedBatchSequential is the fallback batching strategy for Embedders
// whose provider has no native batch endpoint: embed one at a time,
// stopping at the first error. Providers with a real batch endpoint
// override EmbedBatch directly instead of using this helper.
func embedBatchSequential(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
