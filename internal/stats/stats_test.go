package stats

import (
	"math"
	"testing"
	"time"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPriceCost(t *testing.T) {
	p := &Phase{EnqueuedTokens: 1_000_000, EnqueuedHistoryTokens: 2_000_000, ReceivedTokens: 500_000}
	c := Price{Input: 2.5, CachedInput: 1.25, Output: 10}.Cost(p)

	if !near(c.Input, 2.5) || !near(c.CachedInput, 2.5) || !near(c.Output, 5) || !near(c.Total, 10) {
		t.Errorf("Cost = %+v", c)
	}
}

func TestPricesFor(t *testing.T) {
	ps := DefaultPrices()
	if _, ok := ps.For("GPT-4o"); !ok {
		t.Error("expected case-insensitive match")
	}
	if _, ok := ps.For("llama3.3"); ok {
		t.Error("local model should have no price")
	}
}

func TestNewReport(t *testing.T) {
	a := &Phase{Label: "translate", EnqueuedTokens: 1_000_000}
	b := &Phase{Label: "verify", ReceivedTokens: 1_000_000}

	r := NewReport("chatgpt", "gpt-4o", DefaultPrices(), a, nil, b)
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(r.Phases))
	}
	if r.Cost == nil || !near(r.Cost.Total, 12.5) {
		t.Errorf("Cost = %+v, want total 12.5", r.Cost)
	}

	if r := NewReport("ollama", "llama3.3", DefaultPrices(), a); r.Cost != nil {
		t.Errorf("unpriced model got cost %+v", r.Cost)
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPhase("x")
	if p.Elapsed(start) != 0 {
		t.Error("unstarted phase has elapsed time")
	}
	p.Start(start)
	if got := p.Elapsed(start.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("Elapsed = %v", got)
	}
	p.Finish(start.Add(5 * time.Second))
	if got := p.Elapsed(start.Add(time.Hour)); got != 5*time.Second {
		t.Errorf("Elapsed after finish = %v", got)
	}
}
