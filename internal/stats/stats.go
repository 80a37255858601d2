// Package stats accumulates token telemetry per run phase and prices it.
package stats

import (
	"strings"
	"time"
)

// Phase is the telemetry of one controller run (translation, verification or
// grading). Token counts prefixed Enqueued/Received are local estimates; the
// Prompt/Completion counts are what the backend reported, when it did.
type Phase struct {
	Label      string    `json:"label"`
	BatchStart time.Time `json:"batchStart"`
	BatchEnd   time.Time `json:"batchEnd"`

	TotalItems      int `json:"totalItems"`
	TotalTokens     int `json:"totalTokens"`
	EnqueuedItems   int `json:"enqueuedItems"`
	ProcessedItems  int `json:"processedItems"`
	ProcessedTokens int `json:"processedTokens"`

	Requests              int `json:"requests"`
	FailedRequests        int `json:"failedRequests"`
	EnqueuedTokens        int `json:"enqueuedTokens"`
	EnqueuedHistoryTokens int `json:"enqueuedHistoryTokens"`
	ReceivedTokens        int `json:"receivedTokens"`
	PromptTokens          int `json:"promptTokens"`
	CompletionTokens      int `json:"completionTokens"`
}

// NewPhase returns an empty Phase.
func NewPhase(label string) *Phase {
	return &Phase{Label: label}
}

// Start stamps the beginning of the phase.
func (p *Phase) Start(now time.Time) {
	p.BatchStart = now
}

// Finish stamps the end of the phase.
func (p *Phase) Finish(now time.Time) {
	p.BatchEnd = now
}

// Elapsed is the time between Start and now, or Finish once finished.
func (p *Phase) Elapsed(now time.Time) time.Duration {
	if p.BatchStart.IsZero() {
		return 0
	}
	if !p.BatchEnd.IsZero() {
		return p.BatchEnd.Sub(p.BatchStart)
	}
	return now.Sub(p.BatchStart)
}

// Price is a model's rate card in USD per million tokens. History tokens are
// billed at the cached input rate.
type Price struct {
	Input       float64 `mapstructure:"input" json:"input"`
	CachedInput float64 `mapstructure:"cached_input" json:"cachedInput"`
	Output      float64 `mapstructure:"output" json:"output"`
}

// Prices maps model names to rate cards.
type Prices map[string]Price

// DefaultPrices covers the default model of every engine. Local models are
// free.
func DefaultPrices() Prices {
	return Prices{
		"gpt-4o":                   {Input: 2.5, CachedInput: 1.25, Output: 10},
		"gpt-4o-mini":              {Input: 0.15, CachedInput: 0.075, Output: 0.6},
		"gemini-2.0-flash-exp":     {Input: 0.1, CachedInput: 0.025, Output: 0.4},
		"claude-3-5-sonnet-latest": {Input: 3, CachedInput: 0.3, Output: 15},
	}
}

// For looks up model, case-insensitively.
func (ps Prices) For(model string) (Price, bool) {
	if p, ok := ps[model]; ok {
		return p, true
	}
	for name, p := range ps {
		if strings.EqualFold(name, model) {
			return p, true
		}
	}
	return Price{}, false
}

// Cost is the priced telemetry of one or more phases.
type Cost struct {
	Input       float64 `json:"input"`
	CachedInput float64 `json:"cachedInput"`
	Output      float64 `json:"output"`
	Total       float64 `json:"total"`
}

// Cost prices the estimated token counts of p.
func (pr Price) Cost(p *Phase) Cost {
	const perToken = 1.0 / 1_000_000
	c := Cost{
		Input:       float64(p.EnqueuedTokens) * pr.Input * perToken,
		CachedInput: float64(p.EnqueuedHistoryTokens) * pr.CachedInput * perToken,
		Output:      float64(p.ReceivedTokens) * pr.Output * perToken,
	}
	c.Total = c.Input + c.CachedInput + c.Output
	return c
}

// Add sums two costs.
func (c Cost) Add(o Cost) Cost {
	return Cost{
		Input:       c.Input + o.Input,
		CachedInput: c.CachedInput + o.CachedInput,
		Output:      c.Output + o.Output,
		Total:       c.Total + o.Total,
	}
}

// Report is the telemetry block written with results.
type Report struct {
	Engine string   `json:"engine"`
	Model  string   `json:"model"`
	Phases []*Phase `json:"phases"`
	Cost   *Cost    `json:"cost,omitempty"`
}

// NewReport prices phases with prices when model has a rate card.
func NewReport(engine, model string, prices Prices, phases ...*Phase) *Report {
	r := &Report{Engine: engine, Model: model}
	for _, p := range phases {
		if p != nil {
			r.Phases = append(r.Phases, p)
		}
	}
	if pr, ok := prices.For(model); ok {
		var total Cost
		for _, p := range r.Phases {
			total = total.Add(pr.Cost(p))
		}
		r.Cost = &total
	}
	return r
}
