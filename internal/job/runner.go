package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/valpere/batchtran/internal/batch"
	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/progress"
	"github.com/valpere/batchtran/internal/prompt"
	"github.com/valpere/batchtran/internal/schema"
	"github.com/valpere/batchtran/internal/stats"
	"github.com/valpere/batchtran/internal/tokens"
)

// Defaults for the batch limits.
const (
	DefaultBatchSize      = 16
	DefaultBatchMaxTokens = 4096
)

// Checkpointer is told about every accepted item. Errors are logged and
// otherwise ignored: the run result does not depend on the journal.
type Checkpointer interface {
	Accepted(ctx context.Context, phase string, it *Item, g *Grade) error
}

// workItem is implemented by *Item and *GradeItem.
type workItem interface {
	batch.Entry
	item() *Item
}

// runner holds what every phase shares.
type runner struct {
	log            zerolog.Logger
	count          tokens.Counter
	progress       progress.Sink
	checkpoint     Checkpointer
	retryDelay     time.Duration
	batchSize      int
	batchMaxTokens int
	now            func() time.Time
}

func newRunner(log zerolog.Logger, count tokens.Counter, sink progress.Sink, cp Checkpointer, retryDelay time.Duration, batchSize, batchMaxTokens int) *runner {
	if count == nil {
		count = tokens.Default
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchMaxTokens <= 0 {
		batchMaxTokens = DefaultBatchMaxTokens
	}
	return &runner{
		log:            log,
		count:          count,
		progress:       sink,
		checkpoint:     cp,
		retryDelay:     retryDelay,
		batchSize:      batchSize,
		batchMaxTokens: batchMaxTokens,
		now:            time.Now,
	}
}

// phase describes one controller loop.
type phase[T workItem] struct {
	label     string
	session   chat.Session
	format    *schema.Schema
	prompt    *prompt.Builder
	reasoning bool
	stats     *stats.Phase
	// entry is the prompt representation of an item.
	entry     func(*Item) any
	reconcile func(batch []T, replies []gjson.Result) []Outcome[T]
	grade     func(T) *Grade
}

// run drives pending through p until every item is accepted, returning them
// in acceptance order. It fails on the first item exceeding RetryCeiling or
// on a batch that cannot get a usable reply; items accepted so far are
// returned with the error.
func run[T workItem](ctx context.Context, r *runner, p *phase[T], pending []T) ([]T, error) {
	st := p.stats
	st.Start(r.now())
	st.TotalItems += len(pending)
	for _, it := range pending {
		st.TotalTokens += it.CachedTokens()
	}

	overhead := p.prompt.Overhead(r.count)
	budget := batch.Budget(r.batchMaxTokens, overhead, p.reasoning)
	if budget <= 0 {
		r.log.Warn().Int("overhead", overhead).Int("max_tokens", r.batchMaxTokens).
			Msg("prompt leaves no token budget, sending one item per batch")
	}
	cost := func(it T) int { return r.count(marshalInput(p.entry(it.item()))) }
	log := r.log.With().Str("phase", p.label).Logger()

	done := make([]T, 0, len(pending))
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		b := batch.Plan(pending, budget, r.batchSize, cost)
		for _, it := range b {
			base := it.item()
			base.Attempts++
			if base.Attempts > RetryCeiling {
				return done, newFatalItemError(p.label, it, base.ID)
			}
		}
		st.EnqueuedItems += len(b)

		entries := make([]any, len(b))
		for i, it := range b {
			entries[i] = p.entry(it.item())
		}
		log.Debug().Int("items", len(b)).Int("pending", len(pending)).Msg("dispatching batch")

		replies, err := r.generate(ctx, p.session, st, p.prompt.Render(marshalInput(entries)), p.format)
		if err != nil {
			return done, fmt.Errorf("%s: %w", p.label, err)
		}

		accepted := make(map[int]bool)
		requeued := 0
		for _, o := range p.reconcile(b, replies) {
			base := o.Item.item()
			if o.Verdict != Accepted {
				requeued++
				log.Debug().Int("id", base.ID).Str("failure", o.Failure).Msg("item requeued")
				continue
			}
			accepted[base.ID] = true
			done = append(done, o.Item)
			st.ProcessedItems++
			st.ProcessedTokens += base.Tokens
			var g *Grade
			if p.grade != nil {
				g = p.grade(o.Item)
			}
			r.journal(ctx, p.label, base, g)
		}
		if requeued > 0 && requeued == len(b) {
			p.session.InvalidStyling()
		}

		pending = remaining(pending, accepted)
		r.progress.Report(st.Label, st.Elapsed(r.now()), st.TotalItems, st.ProcessedItems)
	}

	st.Finish(r.now())
	return done, nil
}

func (r *runner) journal(ctx context.Context, label string, it *Item, g *Grade) {
	if r.checkpoint == nil {
		return
	}
	if err := r.checkpoint.Accepted(ctx, label, it, g); err != nil {
		r.log.Warn().Err(err).Int("id", it.ID).Msg("failed to journal accepted item")
	}
}

func remaining[T workItem](pending []T, accepted map[int]bool) []T {
	if len(accepted) == 0 {
		return pending
	}
	out := make([]T, 0, len(pending))
	for _, it := range pending {
		if !accepted[it.item().ID] {
			out = append(out, it)
		}
	}
	return out
}
