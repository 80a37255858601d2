package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/progress"
	"github.com/valpere/batchtran/internal/prompt"
	"github.com/valpere/batchtran/internal/rubric"
	"github.com/valpere/batchtran/internal/schema"
	"github.com/valpere/batchtran/internal/stats"
	"github.com/valpere/batchtran/internal/tokens"
)

// GradeOptions configures a Grader.
type GradeOptions struct {
	InputLanguage  string
	OutputLanguage string

	BatchSize      int
	BatchMaxTokens int
	// Prompt optionally replaces the built-in grading template.
	Prompt string
	Rubric rubric.Rubric

	Counter    tokens.Counter
	RetryDelay time.Duration
	Logger     zerolog.Logger
	Progress   progress.Sink
	Checkpoint Checkpointer
}

// Grader scores existing translations against a rubric.
type Grader struct {
	opts    GradeOptions
	runner  *runner
	session chat.Session
	prompt  *prompt.Builder

	Stats *stats.Phase
}

// NewGrader validates the prompt up front.
func NewGrader(session chat.Session, opts GradeOptions) (*Grader, error) {
	if len(opts.Rubric) == 0 {
		opts.Rubric = rubric.Default()
	}
	pb, err := prompt.NewGrading(opts.Prompt, opts.InputLanguage, opts.OutputLanguage, opts.Rubric)
	if err != nil {
		return nil, fmt.Errorf("grading prompt: %w", err)
	}
	log := opts.Logger.With().Str("output_language", opts.OutputLanguage).Logger()
	return &Grader{
		opts:    opts,
		runner:  newRunner(log, opts.Counter, opts.Progress, opts.Checkpoint, opts.RetryDelay, opts.BatchSize, opts.BatchMaxTokens),
		session: session,
		prompt:  pb,
		Stats:   stats.NewPhase(PhaseGrade + " " + opts.OutputLanguage),
	}, nil
}

// Run grades items and returns them ordered by ID, each with an in-range
// grade.
func (g *Grader) Run(ctx context.Context, items []*GradeItem) ([]*GradeItem, error) {
	p := &phase[*GradeItem]{
		label:     PhaseGrade,
		session:   g.session,
		format:    schema.Grading(g.opts.Rubric.Keys()),
		prompt:    g.prompt,
		reasoning: true,
		stats:     g.Stats,
		entry:     toReviewEntry,
		reconcile: func(b []*GradeItem, replies []gjson.Result) []Outcome[*GradeItem] {
			return ReconcileGrades(g.opts.Rubric, b, replies)
		},
		grade: func(it *GradeItem) *Grade { return it.Grading },
	}
	done, err := run(ctx, g.runner, p, items)
	SortByID(done)
	return done, err
}
