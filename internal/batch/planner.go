// Package batch packs pending work items into token-bounded batches.
package batch

const (
	// safetyMargin absorbs token estimation error.
	safetyMargin = 0.9

	// forceLastAfter is the attempt count beyond which an item closes its
	// batch, so a persistently failing item is never starved behind a full
	// budget of healthy ones.
	forceLastAfter = 5
)

// Entry is what the planner needs to know about a queued item.
type Entry interface {
	// CachedTokens is the token estimate computed at intake.
	CachedTokens() int
	// Failure is the last validation failure, empty when none.
	Failure() string
	// AttemptCount is how many times the item has been dispatched.
	AttemptCount() int
}

// Budget derives the per-batch token budget from the request ceiling. Half
// of what remains after the prompt overhead is reserved for the reply, or two
// thirds when the reply carries a reasoning field.
func Budget(maxRequestTokens, overheadTokens int, reasoning bool) float64 {
	split := 2.0
	if reasoning {
		split = 3.0
	}
	return float64(maxRequestTokens-overheadTokens) * safetyMargin / split
}

// Plan returns the next batch from the head of queue, preserving order.
//
// The first item is always included. Every following item is added to a
// running token sum and admitted only while that sum stays under budget and
// the batch holds fewer than maxItems (maxItems <= 0 means no ceiling).
// Items with a failure annotation are re-costed with cost, since the failure
// text is part of their prompt entry. An item dispatched more than five times
// ends the batch it is placed in.
func Plan[T Entry](queue []T, budget float64, maxItems int, cost func(T) int) []T {
	var out []T
	sum := 0
	for _, item := range queue {
		c := item.CachedTokens()
		if item.Failure() != "" {
			c = cost(item)
		}
		sum += c

		if len(out) > 0 && (float64(sum) >= budget || (maxItems > 0 && len(out) >= maxItems)) {
			break
		}
		out = append(out, item)

		if item.AttemptCount() > forceLastAfter {
			break
		}
	}
	return out
}
