package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
)

// CanonicalOperation builds the deterministic text fingerprinted for a
// proposed file operation: a fixed field order so the same operation
// always hashes identically regardless of map iteration or struct
// field ordering elsewhere in the pipeline.
func CanonicalOperation(op domain.FileOperation) string {
	return fmt.Sprintf("kind:%s\x00path:%s\x00content:%s\x00from:%s\x00to:%s",
		op.Kind, op.Path, op.Content, op.From, op.To)
}

// OpFingerprint returns SHA-256(CanonicalOperation(op)).
func OpFingerprint(op domain.FileOperation) string {
	sum := sha256.Sum256([]byte(CanonicalOperation(op)))
	return hex.EncodeToString(sum[:])
}

// ContextDigest returns SHA-256 of the fields of an OperationContext
// that affect predicted outcome (repository + question, not the
// timestamp or session, which would make every digest unique).
func ContextDigest(ctx domain.OperationContext) string {
	sum := sha256.Sum256([]byte("repo:" + ctx.RepositoryPath + "\x00question:" + ctx.UserQuestion))
	return hex.EncodeToString(sum[:])
}

// RecordOutcome embeds (op, context) and persists the outcome,
// wiring domain types to the lower-level IndexOperationOutcome.
func (idx *Indexer) RecordOutcome(ctx context.Context, embedder embedding.Embedder, op domain.FileOperation, opCtx domain.OperationContext, success bool, duration time.Duration, quality *float64) error {
	vec, err := embedder.Embed(ctx, CanonicalOperation(op)+" "+opCtx.UserQuestion)
	if err != nil {
		return fmt.Errorf("knowledge: embed operation: %w", err)
	}
	return idx.IndexOperationOutcome(ctx, OperationOutcome{
		OpFingerprint: OpFingerprint(op),
		ContextDigest: ContextDigest(opCtx),
		Embedding:     vec,
		Success:       success,
		DurationMS:    duration.Milliseconds(),
		QualityScore:  quality,
	})
}

// Predict embeds (op, context) and looks up its nearest neighbors.
func (idx *Indexer) Predict(ctx context.Context, embedder embedding.Embedder, op domain.FileOperation, opCtx domain.OperationContext) (Prediction, error) {
	vec, err := embedder.Embed(ctx, CanonicalOperation(op)+" "+opCtx.UserQuestion)
	if err != nil {
		return Prediction{}, fmt.Errorf("knowledge: embed operation: %w", err)
	}
	return idx.PredictOperationSuccess(ctx, vec)
}

// BoundPredictor adapts an Indexer+Embedder pair to the narrow
// (ctx, op, opCtx) -> (probability, sampleSize, err) shape the
// Context Retriever (C6) consumes, so C6 never needs to import this
// package directly — Go's structural interfaces make the duck-typed
// match sufficient.
type BoundPredictor struct {
	Indexer  *Indexer
	Embedder embedding.Embedder
}

func (b *BoundPredictor) Predict(ctx context.Context, op domain.FileOperation, opCtx domain.OperationContext) (float64, int, error) {
	pred, err := b.Indexer.Predict(ctx, b.Embedder, op, opCtx)
	if err != nil {
		return 0, 0, err
	}
	return pred.SuccessProbability, pred.SampleSize, nil
}
