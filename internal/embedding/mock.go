package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder is a deterministic, dependency-free Embedder: it hashes
// text into a fixed-dimension vector via repeated SHA-256, normalized
// to unit length. Mirrors the teacher's mock-provider pattern
// (ai/providers/mock/provider.go) — never auto-registered, constructed
// explicitly for tests and for local/offline runs.
type HashEmbedder struct {
	Dim       int
	CallCount int
}

// NewHashEmbedder creates a HashEmbedder producing dim-dimensional
// vectors. dim must be a multiple of 8; it is rounded up otherwise.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 128
	}
	if dim%8 != 0 {
		dim += 8 - dim%8
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) Dimensions() int { return e.Dim }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	e.CallCount++

	vec := make([]float32, e.Dim)
	seed := []byte(text)
	var magnitude float64
	for i := 0; i < e.Dim; i += 8 {
		h := sha256.Sum256(append(seed, byte(i)))
		for j := 0; j < 8 && i+j < e.Dim; j++ {
			bits := binary.LittleEndian.Uint32(h[j*4 : j*4+4])
			// Map the uint32 into [-1, 1].
			v := float32(bits)/float32(1<<31) - 1
			vec[i+j] = v
			magnitude += float64(v) * float64(v)
		}
	}
	if magnitude > 0 {
		norm := float32(1.0 / math.Sqrt(magnitude))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatchSequential(ctx, e, texts)
}
