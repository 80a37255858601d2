// Package orchestrator runs independent pipelines, one per target language,
// with bounded concurrency and collects their outcomes.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type OrchestratorConfig struct {
	// Concurrency caps the pipelines running at once; 0 means 1.
	Concurrency int
	// FailFast cancels the remaining pipelines after the first failure.
	FailFast bool
	Logger   zerolog.Logger
}

// Pipeline is the unit of work for one target.
type Pipeline[R any] struct {
	Name string
	Run  func(ctx context.Context) (R, error)
}

// PipelineResult is the outcome of one pipeline.
type PipelineResult[R any] struct {
	Name    string
	Value   R
	Err     error
	Latency time.Duration
}

type OrchestratorResult[R any] struct {
	// Results is in pipeline order.
	Results   []PipelineResult[R]
	Errors    []error
	Succeeded int
	Failed    int
}

type Orchestrator[R any] struct {
	config OrchestratorConfig
}

func New[R any](config OrchestratorConfig) *Orchestrator[R] {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Orchestrator[R]{config: config}
}

// Execute runs pipelines and waits for all of them. A failed pipeline does
// not stop the others unless FailFast is set.
func (o *Orchestrator[R]) Execute(ctx context.Context, pipelines []Pipeline[R]) *OrchestratorResult[R] {
	results := make([]PipelineResult[R], len(pipelines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, p := range pipelines {
		g.Go(func() error {
			results[i] = o.run(gctx, p)
			if o.config.FailFast {
				return results[i].Err
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &OrchestratorResult[R]{Results: results}
	for _, r := range results {
		if r.Err != nil {
			out.Errors = append(out.Errors, fmt.Errorf("%s: %w", r.Name, r.Err))
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	return out
}

func (o *Orchestrator[R]) run(ctx context.Context, p Pipeline[R]) PipelineResult[R] {
	res := PipelineResult[R]{Name: p.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	log := o.config.Logger.With().Str("pipeline", p.Name).Logger()
	log.Debug().Msg("pipeline started")
	start := time.Now()
	res.Value, res.Err = p.Run(ctx)
	res.Latency = time.Since(start)

	if res.Err != nil {
		log.Error().Err(res.Err).Dur("latency", res.Latency).Msg("pipeline failed")
	} else {
		log.Info().Dur("latency", res.Latency).Msg("pipeline finished")
	}
	return res
}
