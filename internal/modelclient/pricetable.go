package modelclient

import "sync"

// ModelPrice is USD per 1000 tokens, prompt and completion priced
// independently (most providers charge completion tokens at a premium).
type ModelPrice struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// PriceTable is read-only after init for readers, but may be hot-reloaded
// behind a single writer (spec.md §5) via SetPrice/LoadDefaults.
type PriceTable struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewPriceTable builds a table seeded with a few well-known models; the
// set is intentionally small and meant to be extended via SetPrice by
// whoever wires a concrete ModelClient.
func NewPriceTable() *PriceTable {
	t := &PriceTable{prices: make(map[string]ModelPrice)}
	t.LoadDefaults()
	return t
}

// LoadDefaults (re)installs the built-in price set. Safe to call
// concurrently with readers; it is the table's single writer entry
// point for a hot reload.
func (t *PriceTable) LoadDefaults() {
	defaults := map[string]ModelPrice{
		"claude-3-5-sonnet-20241022": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
		"claude-3-opus-20240229":     {PromptPer1K: 0.015, CompletionPer1K: 0.075},
		"claude-3-haiku-20240307":    {PromptPer1K: 0.00025, CompletionPer1K: 0.00125},
		"gpt-4o":                     {PromptPer1K: 0.005, CompletionPer1K: 0.015},
		"gpt-4o-mini":                {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
		"gemini-1.5-pro":             {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
		"mock":                       {PromptPer1K: 0, CompletionPer1K: 0},
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices = defaults
}

// SetPrice overrides (or adds) a single model's price, useful for
// Bedrock/custom model ids that aren't in the built-in defaults.
func (t *PriceTable) SetPrice(modelID string, price ModelPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[modelID] = price
}

// Cost computes cost_usd = f(model_id, usage) for an unknown model id,
// falling back to a conservative default price rather than erroring —
// pricing failures must never fail a pipeline run.
func (t *PriceTable) Cost(modelID string, usage Usage) float64 {
	t.mu.RLock()
	price, ok := t.prices[modelID]
	t.mu.RUnlock()
	if !ok {
		price = ModelPrice{PromptPer1K: 0.001, CompletionPer1K: 0.002}
	}
	return float64(usage.PromptTokens)/1000*price.PromptPer1K +
		float64(usage.CompletionTokens)/1000*price.CompletionPer1K
}
