package knowledge

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// embeddingToBytes / bytesToEmbedding mirror the little-endian float32
// serialization in the pack's db/embeddings.go, reused here so
// operation embeddings round-trip through a SQLite BLOB column the
// same way.
func embeddingToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}
	return buf
}

func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		result[i] = math.Float32frombits(bits)
	}
	return result
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Prediction is the result of predict_operation_success.
type Prediction struct {
	SuccessProbability float64
	SampleSize         int
	NearestIDs         []string
}

const knnK = 10

// PredictOperationSuccess finds the k=10 nearest past operations by
// embedding of (opEmbedding) and returns a Laplace-smoothed success
// rate over them (spec.md §4.9): (successes+1)/(sample_size+2).
func (idx *Indexer) PredictOperationSuccess(ctx context.Context, opEmbedding []float32) (Prediction, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT rowid, embedding, success FROM operation_outcomes WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return Prediction{}, fmt.Errorf("knowledge: predict query: %w", err)
	}
	defer rows.Close()

	type scored struct {
		id      string
		success bool
		score   float64
	}
	var candidates []scored
	for rows.Next() {
		var rowid int64
		var blob []byte
		var success int
		if err := rows.Scan(&rowid, &blob, &success); err != nil {
			return Prediction{}, fmt.Errorf("knowledge: predict scan: %w", err)
		}
		emb := bytesToEmbedding(blob)
		candidates = append(candidates, scored{
			id:      fmt.Sprintf("%d", rowid),
			success: success != 0,
			score:   cosineSimilarity(opEmbedding, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return Prediction{}, fmt.Errorf("knowledge: predict rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	k := knnK
	if k > len(candidates) {
		k = len(candidates)
	}

	successes := 0
	nearestIDs := make([]string, 0, k)
	for i := 0; i < k; i++ {
		if candidates[i].success {
			successes++
		}
		nearestIDs = append(nearestIDs, candidates[i].id)
	}

	prob := float64(successes+1) / float64(k+2)

	return Prediction{
		SuccessProbability: prob,
		SampleSize:         k,
		NearestIDs:         nearestIDs,
	}, nil
}
