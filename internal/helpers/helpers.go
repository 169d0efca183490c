// Package helpers implements the Parallel Helper Coordinator (spec.md
// §4.5 C10): fans C5-C9 out concurrently, merges their HelperScores
// with neutral-prior fallback on failure, and caches by input
// fingerprint. Fan-out/panic-recovery grounded on
// orchestration/executor.go's parallel step dispatch.
package helpers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
	"github.com/hivetechs-collective/hive-consensus/internal/lrucache"
)

// neutralPrior is substituted for any helper that errors or times out
// (spec.md §4.5).
var neutralPrior = domain.HelperScore{Confidence: 50, Risk: 50}

// Helper is one of the five side-channel analyzers (C5-C9), adapted to
// a uniform signature so the coordinator can dispatch them uniformly.
type Helper func(ctx context.Context, input Input) (domain.HelperScore, error)

// Input is the uniform payload every helper receives: either a
// curator-output evaluation or an operations+context evaluation, per
// the caller's use case.
type Input struct {
	CuratorOutput string
	Question      string
	Operations    []domain.FileOperation
	OpContext     domain.OperationContext
}

// Fingerprint returns SHA-256 of a canonical serialization of Input,
// used as the coordinator's cache key (spec.md §4.5).
func (in Input) Fingerprint() string {
	canonical := fmt.Sprintf("curator:%s\x00question:%s\x00ops:%d\x00repo:%s",
		in.CuratorOutput, in.Question, len(in.Operations), in.OpContext.RepositoryPath)
	for _, op := range in.Operations {
		canonical += fmt.Sprintf("\x00op:%s:%s:%s", op.Kind, op.Path, op.Content)
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Coordinator dispatches the five helpers concurrently with a
// per-call timeout, merges their scores, and caches the merged result
// by input fingerprint.
type Coordinator struct {
	helpers map[domain.HelperName]Helper
	timeout time.Duration
	cache   *lrucache.Cache[domain.MergedHelperResult]
	ttl     time.Duration
	logger  gomindlog.Logger
}

// New constructs a Coordinator. helperTimeout bounds each individual
// helper call; cacheCapacity/cacheTTL bound the fingerprint cache
// (spec.md §4.5 defaults: 30s timeout, 1000-entry LRU, 1h TTL).
func New(helperSet map[domain.HelperName]Helper, helperTimeout time.Duration, cacheCapacity int, cacheTTL time.Duration, logger gomindlog.Logger) *Coordinator {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	return &Coordinator{
		helpers: helperSet,
		timeout: helperTimeout,
		cache:   lrucache.New[domain.MergedHelperResult](cacheCapacity),
		ttl:     cacheTTL,
		logger:  logger,
	}
}

// RunAll fans every registered helper out concurrently, applying a
// per-call timeout and neutral-prior fallback, then caches the merged
// result by input fingerprint.
func (c *Coordinator) RunAll(ctx context.Context, input Input) domain.MergedHelperResult {
	key := input.Fingerprint()
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	scores := make(map[domain.HelperName]domain.HelperScore, len(domain.HelperOrder))
	errs := make(map[domain.HelperName]domain.HelperError)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range domain.HelperOrder {
		helper, ok := c.helpers[name]
		if !ok {
			mu.Lock()
			scores[name] = neutralPrior
			errs[name] = domain.HelperError{Kind: domain.HelperErrUnavailable, Message: "helper not registered"}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(name domain.HelperName, helper Helper) {
			defer wg.Done()
			score, err := c.callWithTimeout(ctx, name, helper, input)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				scores[name] = neutralPrior
				errs[name] = toHelperError(err)
			} else {
				scores[name] = score
			}
		}(name, helper)
	}

	wg.Wait()

	result := domain.MergedHelperResult{Scores: scores, Errors: errs}
	c.cache.Set(key, result, c.ttl)
	return result
}

// helperResult carries one helper call's outcome across the result
// channel, since the calling goroutine may already have returned by
// the time callWithTimeout's timeout branch fires.
type helperResult struct {
	score domain.HelperScore
	err   error
}

func (c *Coordinator) callWithTimeout(ctx context.Context, name domain.HelperName, helper Helper, input Input) (domain.HelperScore, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resultCh := make(chan helperResult, 1)
	go func() {
		var res helperResult
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("helper panicked", map[string]interface{}{
					"helper": string(name),
					"panic":  fmt.Sprintf("%v", r),
					"stack":  string(debug.Stack()),
				})
				res = helperResult{err: domain.HelperError{Kind: domain.HelperErrInternal, Message: fmt.Sprintf("panic: %v", r)}}
			}
			resultCh <- res
		}()
		score, err := helper(callCtx, input)
		res = helperResult{score: score, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.score, res.err
	case <-callCtx.Done():
		return domain.HelperScore{}, domain.HelperError{Kind: domain.HelperErrTimeout, Message: "helper call timed out"}
	}
}

func toHelperError(err error) domain.HelperError {
	if he, ok := err.(domain.HelperError); ok {
		return he
	}
	return domain.HelperError{Kind: domain.HelperErrInternal, Message: err.Error()}
}
