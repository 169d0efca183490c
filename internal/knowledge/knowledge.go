// Package knowledge implements the Knowledge Indexer (spec.md §4 C5):
// persists curator outputs and operation outcomes, and predicts the
// success of new operations from nearest neighbors.
package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

// Indexer persists curator outputs into the vector store and
// operation outcomes into a relational outcome table, grounded on the
// SQLite-backed persistence pattern used across the pack
// (db.OpenDB's WAL-mode connection, nodes.go's plain-SQL scan style).
type Indexer struct {
	db       *sql.DB
	store    vectorstore.Store
	embedder embedding.Embedder
}

// Open opens (creating if necessary) the SQLite-backed outcome table
// at path and wires it to the given vector store and embedder.
func Open(path string, store vectorstore.Store, embedder embedding.Embedder) (*Indexer, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: opening database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("knowledge: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("knowledge: enabling foreign keys: %w", err)
	}

	idx := &Indexer{db: conn, store: store, embedder: embedder}
	if err := idx.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Indexer) migrate() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS operation_outcomes (
			op_fingerprint  TEXT NOT NULL,
			context_digest  TEXT NOT NULL,
			embedding       BLOB,
			success         INTEGER NOT NULL,
			duration_ms     INTEGER NOT NULL,
			quality_score   REAL,
			created_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_operation_outcomes_fingerprint
			ON operation_outcomes(op_fingerprint);

		CREATE TABLE IF NOT EXISTS conversations (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			messages      TEXT NOT NULL,
			metadata      TEXT NOT NULL,
			summary       TEXT,
			theme_cluster TEXT,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("knowledge: migrate: %w", err)
	}
	return nil
}

func (idx *Indexer) Close() error {
	return idx.db.Close()
}

// Canonical builds the deterministic byte string fingerprinted for
// idempotent indexing: a fixed field order and separator so the same
// (content, question) pair always hashes identically.
func Canonical(content, question string) string {
	return "content:" + content + "\x00question:" + question
}

func fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// IndexOutput fingerprints (content, question); if already indexed it
// returns the existing record unchanged, otherwise embeds, stores, and
// returns the new record (spec.md §4.9, idempotent per invariant 5).
func (idx *Indexer) IndexOutput(ctx context.Context, content, question, conversationID string) (domain.IndexedKnowledge, error) {
	id := fingerprint(Canonical(content, question))

	if existing, ok, err := idx.store.Get(ctx, id); err != nil {
		return domain.IndexedKnowledge{}, fmt.Errorf("knowledge: lookup existing: %w", err)
	} else if ok {
		return recordToKnowledge(*existing), nil
	}

	vec, err := idx.embedder.Embed(ctx, content+" "+question)
	if err != nil {
		return domain.IndexedKnowledge{}, fmt.Errorf("knowledge: embed: %w", err)
	}

	metadata := map[string]interface{}{
		"conversation_id": conversationID,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := idx.store.Add(ctx, id, vec, content, metadata); err != nil {
		return domain.IndexedKnowledge{}, fmt.Errorf("knowledge: add: %w", err)
	}

	return domain.IndexedKnowledge{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata: domain.KnowledgeMetadata{
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func recordToKnowledge(r vectorstore.Record) domain.IndexedKnowledge {
	return domain.IndexedKnowledge{
		ID:        r.ID,
		Content:   r.Content,
		Embedding: r.Embedding,
	}
}

// OperationOutcome is the persisted record backing k-NN success
// prediction (spec.md §4.9).
type OperationOutcome struct {
	OpFingerprint string
	ContextDigest string
	Embedding     []float32
	Success       bool
	DurationMS    int64
	QualityScore  *float64
}

// IndexOperationOutcome persists the outcome of an executed operation,
// storing its embedding alongside so predict_operation_success can
// k-NN over it without round-tripping through the content vector
// store (which indexes curator output, not raw operations).
func (idx *Indexer) IndexOperationOutcome(ctx context.Context, outcome OperationOutcome) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO operation_outcomes (op_fingerprint, context_digest, embedding, success, duration_ms, quality_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.OpFingerprint, outcome.ContextDigest, embeddingToBytes(outcome.Embedding),
		boolToInt(outcome.Success), outcome.DurationMS, outcome.QualityScore,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("knowledge: index operation outcome: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
