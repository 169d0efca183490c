package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// RedisStore persists embeddings in a Redis hash per namespace and
// reranks candidates by cosine similarity in-process after a bounded
// SCAN, mirroring the teacher's namespaced-DB-isolation RedisClient
// pattern (core/redis_client.go) rather than introducing a bespoke
// wire protocol.
type RedisStore struct {
	client    *redis.Client
	namespace string
	logger    gomindlog.Logger
	// ScanLimit bounds how many candidate records are pulled per Search
	// before reranking, keeping the k-NN search O(ScanLimit) rather than
	// O(store size) on every call.
	ScanLimit int64
}

// NewRedisStore opens (idempotently) a Redis-backed vector store at
// addr, namespacing all keys under "consensus:vectorstore:<namespace>".
func NewRedisStore(addr, namespace string, logger gomindlog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: redis ping failed: %w", err)
	}

	return &RedisStore{
		client:    client,
		namespace: fmt.Sprintf("consensus:vectorstore:%s", namespace),
		logger:    logger,
		ScanLimit: 5000,
	}, nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.namespace, id)
}

type wireRecord struct {
	Content   string                 `json:"content"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (s *RedisStore) Add(ctx context.Context, id string, embedding []float32, content string, metadata map[string]interface{}) error {
	payload, err := json.Marshal(wireRecord{Content: content, Embedding: embedding, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("vectorstore: marshal failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), payload, 0).Err(); err != nil {
		return fmt.Errorf("vectorstore: redis set failed: %w", err)
	}
	if err := s.client.SAdd(ctx, s.namespace+":ids", id).Err(); err != nil {
		return fmt.Errorf("vectorstore: redis sadd failed: %w", err)
	}
	s.logger.Debug("vectorstore add", map[string]interface{}{"id": id})
	return nil
}

func (s *RedisStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]Record, error) {
	ids, err := s.client.SRandMemberN(ctx, s.namespace+":ids", s.ScanLimit).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("vectorstore: redis srandmember failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("vectorstore: redis mget failed: %w", err)
	}

	candidates := make([]Record, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var wr wireRecord
		if err := json.Unmarshal([]byte(str), &wr); err != nil {
			continue
		}
		candidates = append(candidates, Record{ID: ids[i], Content: wr.Content, Embedding: wr.Embedding, Metadata: wr.Metadata})
	}

	return rankByCosine(queryEmbedding, candidates, k), nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, bool, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("vectorstore: redis get failed: %w", err)
	}
	var wr wireRecord
	if err := json.Unmarshal([]byte(val), &wr); err != nil {
		return nil, false, fmt.Errorf("vectorstore: unmarshal failed: %w", err)
	}
	return &Record{ID: id, Content: wr.Content, Embedding: wr.Embedding, Metadata: wr.Metadata}, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("vectorstore: redis del failed: %w", err)
	}
	if err := s.client.SRem(ctx, s.namespace+":ids", id).Err(); err != nil {
		return n > 0, fmt.Errorf("vectorstore: redis srem failed: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
