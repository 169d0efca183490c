// Package vectorstore implements the content-addressed embedding store
// (spec.md §4 C1, §6.2): add/search/get/delete over cosine similarity.
package vectorstore

import (
	"context"
	"math"
	"sort"
)

// Record is one stored entry.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]interface{}
}

// Store is the contract every component (C5, C6) depends on.
type Store interface {
	Add(ctx context.Context, id string, embedding []float32, content string, metadata map[string]interface{}) error
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, returning 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
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

// rankByCosine sorts candidates by cosine similarity to query descending
// and truncates to k. Shared by every Store implementation's Search.
func rankByCosine(query []float32, candidates []Record, k int) []Record {
	type scored struct {
		rec   Record
		score float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredList = append(scoredList, scored{rec: c, score: CosineSimilarity(query, c.Embedding)})
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].score > scoredList[j].score
	})
	if k > len(scoredList) {
		k = len(scoredList)
	}
	out := make([]Record, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, scoredList[i].rec)
	}
	return out
}
