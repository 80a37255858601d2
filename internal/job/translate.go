package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/progress"
	"github.com/valpere/batchtran/internal/prompt"
	"github.com/valpere/batchtran/internal/schema"
	"github.com/valpere/batchtran/internal/stats"
	"github.com/valpere/batchtran/internal/tokens"
	"github.com/valpere/batchtran/internal/validator"
)

// Phase labels, also used as checkpoint phases.
const (
	PhaseTranslate = "translate"
	PhaseVerify    = "verify"
	PhaseGrade     = "grade"
)

// Options configures a Translator.
type Options struct {
	InputLanguage  string
	OutputLanguage string

	BatchSize      int
	BatchMaxTokens int
	// Think asks for a reasoning field next to every translation.
	Think            bool
	SkipVerification bool
	Prompts          prompt.Overrides

	Matcher   *placeholder.Matcher
	Validator *validator.Validator
	Counter   tokens.Counter

	RetryDelay time.Duration
	Logger     zerolog.Logger
	Progress   progress.Sink
	Checkpoint Checkpointer
}

// Translator translates items and then has a second session verify them.
type Translator struct {
	opts    Options
	runner  *runner
	translS chat.Session
	verifyS chat.Session

	translatePrompt *prompt.Builder
	verifyPrompt    *prompt.Builder

	TranslateStats *stats.Phase
	VerifyStats    *stats.Phase
}

// NewTranslator validates the prompts up front, so a broken custom template
// fails before any request is made. verify may be nil when verification is
// skipped.
func NewTranslator(translate, verify chat.Session, opts Options) (*Translator, error) {
	if opts.Matcher == nil {
		opts.Matcher = placeholder.New("", "")
	}
	if opts.Validator == nil {
		opts.Validator = validator.New(opts.Matcher, validator.Options{})
	}
	if verify == nil && !opts.SkipVerification {
		return nil, fmt.Errorf("verification session required unless verification is skipped")
	}

	tp, err := prompt.NewTranslation(opts.Prompts.Translation, opts.InputLanguage, opts.OutputLanguage, opts.Matcher, opts.Think)
	if err != nil {
		return nil, fmt.Errorf("translation prompt: %w", err)
	}
	vp, err := prompt.NewVerification(opts.Prompts.Verification, opts.InputLanguage, opts.OutputLanguage, opts.Matcher)
	if err != nil {
		return nil, fmt.Errorf("verification prompt: %w", err)
	}

	log := opts.Logger.With().Str("output_language", opts.OutputLanguage).Logger()
	return &Translator{
		opts:            opts,
		runner:          newRunner(log, opts.Counter, opts.Progress, opts.Checkpoint, opts.RetryDelay, opts.BatchSize, opts.BatchMaxTokens),
		translS:         translate,
		verifyS:         verify,
		translatePrompt: tp,
		verifyPrompt:    vp,
		TranslateStats:  stats.NewPhase(PhaseTranslate + " " + opts.OutputLanguage),
		VerifyStats:     stats.NewPhase(PhaseVerify + " " + opts.OutputLanguage),
	}, nil
}

// Run translates pending, then verifies the result together with
// translated (items already translated by an earlier, interrupted run).
// The returned items are ordered by ID. On error the items finished so far
// are returned alongside it.
func (t *Translator) Run(ctx context.Context, pending, translated []*Item) ([]*Item, error) {
	done, err := t.Translate(ctx, pending)
	if err != nil {
		return done, err
	}
	done = append(done, translated...)
	if t.opts.SkipVerification {
		SortByID(done)
		return done, nil
	}

	verified, err := t.Verify(ctx, done)
	SortByID(verified)
	return verified, err
}

// Translate runs the translation phase alone.
func (t *Translator) Translate(ctx context.Context, pending []*Item) ([]*Item, error) {
	p := &phase[*Item]{
		label:     PhaseTranslate,
		session:   t.translS,
		format:    schema.Translation(t.opts.Think),
		prompt:    t.translatePrompt,
		reasoning: t.opts.Think,
		stats:     t.TranslateStats,
		entry:     toTranslateEntry,
		reconcile: func(b []*Item, replies []gjson.Result) []Outcome[*Item] {
			return ReconcileTranslations(t.opts.Validator, b, replies)
		},
	}
	return run(ctx, t.runner, p, pending)
}

// Verify runs the verification phase alone. Attempts and failures are reset
// and token estimates recomputed, since the model now also sees the
// translation.
func (t *Translator) Verify(ctx context.Context, items []*Item) ([]*Item, error) {
	for _, it := range items {
		it.Attempts = 0
		it.LastFailure = ""
		it.Tokens = t.runner.count(marshalInput(toReviewEntry(it)))
	}
	p := &phase[*Item]{
		label:     PhaseVerify,
		session:   t.verifyS,
		format:    schema.Verification(),
		prompt:    t.verifyPrompt,
		reasoning: true,
		stats:     t.VerifyStats,
		entry:     toReviewEntry,
		reconcile: func(b []*Item, replies []gjson.Result) []Outcome[*Item] {
			return ReconcileVerifications(t.opts.Validator, b, replies)
		},
	}
	return run(ctx, t.runner, p, items)
}

// Phases returns the telemetry of the phases that ran.
func (t *Translator) Phases() []*stats.Phase {
	if t.opts.SkipVerification {
		return []*stats.Phase{t.TranslateStats}
	}
	return []*stats.Phase{t.TranslateStats, t.VerifyStats}
}
