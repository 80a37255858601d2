/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal"
	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/config"
	"github.com/valpere/batchtran/internal/detector"
	"github.com/valpere/batchtran/internal/flatjson"
	"github.com/valpere/batchtran/internal/job"
	"github.com/valpere/batchtran/internal/langtag"
	"github.com/valpere/batchtran/internal/progress"
	"github.com/valpere/batchtran/internal/prompt"
	"github.com/valpere/batchtran/internal/rubric"
	"github.com/valpere/batchtran/internal/stats"
	"github.com/valpere/batchtran/internal/store"
	"github.com/valpere/batchtran/internal/tokens"
	"github.com/valpere/batchtran/internal/validator"
)

// pipelineDeps are shared by all pipelines of one command.
type pipelineDeps struct {
	config   *config.Config
	log      zerolog.Logger
	db       *store.Store
	detector *detector.Detector
	progress progress.Sink
}

type translateOptions struct {
	Think            bool
	SkipVerification bool
	EnsureChanged    bool
	CheckLanguage    bool
	Prompts          prompt.Overrides
	// ReportFile may contain the language placeholder.
	ReportFile string
}

type translationOutcome struct {
	Request internal.TranslationRequest
	Items   []*job.Item
	Resumed int
	Report  *stats.Report
}

// reportItem is one entry of a translation or grading report.
type reportItem struct {
	Key        string     `json:"key"`
	Original   string     `json:"original"`
	Translated string     `json:"translated"`
	Grading    *job.Grade `json:"grading,omitempty"`
}

type translationReport struct {
	Request   internal.TranslationRequest `json:"request"`
	Items     []reportItem                `json:"items"`
	Telemetry *stats.Report               `json:"telemetry"`
}

// journalFor opens the journal of run id, creating the run when id is empty.
// It returns nil without a database.
func journalFor(ctx context.Context, db *store.Store, run store.Run, id string) (*store.Journal, string, error) {
	if db == nil {
		return nil, "", nil
	}
	if id == "" {
		created, err := db.CreateRun(ctx, run)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create run: %w", err)
		}
		return db.Journal(created), created, nil
	}
	existing, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if existing.Kind != run.Kind || existing.TargetLang != run.TargetLang {
		return nil, "", fmt.Errorf("run %s is a %s run into %s, cannot resume it as %s into %s",
			id, existing.Kind, existing.TargetLang, run.Kind, run.TargetLang)
	}
	if err := db.SetStatus(ctx, id, store.StatusRunning); err != nil {
		return nil, "", err
	}
	return db.Journal(id), id, nil
}

func finishRun(ctx context.Context, deps pipelineDeps, id string, err error) {
	if deps.db == nil || id == "" {
		return
	}
	status := store.StatusCompleted
	if err != nil {
		status = store.StatusFailed
	}
	if serr := deps.db.SetStatus(context.WithoutCancel(ctx), id, status); serr != nil {
		deps.log.Warn().Err(serr).Str("run", id).Msg("failed to update run status")
	}
}

// translateDocument translates doc into req.TargetLang and writes the
// result to req.OutputFile.
func translateDocument(ctx context.Context, deps pipelineDeps, doc *document, contexts map[string]string, req internal.TranslationRequest, opts translateOptions) (_ *translationOutcome, err error) {
	c := deps.config
	log := deps.log.With().Str("target", req.TargetLang).Logger()
	m := c.Matcher()
	items := job.NewItems(doc.entries, contexts, m, tokens.Default)

	journal, runID, err := journalFor(ctx, deps.db, store.Run{
		Kind:       store.KindTranslate,
		InputFile:  req.InputFile,
		OutputFile: req.OutputFile,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Engine:     string(c.Engine),
		Model:      c.Model,
	}, req.ID)
	if err != nil {
		return nil, err
	}
	req.ID = runID
	defer func() { finishRun(ctx, deps, runID, err) }()

	pending, translated, done := items, []*job.Item(nil), []*job.Item(nil)
	var checkpoint job.Checkpointer
	if journal != nil {
		checkpoint = journal
		if pending, translated, done, err = journal.Split(ctx, items, !opts.SkipVerification); err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		log.Info().Str("run", runID).Int("done", len(done)).Int("translated", len(translated)).
			Int("pending", len(pending)).Msg("checkpoint journal opened")
	}

	vopts := validator.Options{EnsureChanged: opts.EnsureChanged}
	if opts.CheckLanguage && deps.detector != nil {
		vopts.TargetLanguage = langtag.Base(req.TargetLang)
		vopts.Detector = deps.detector
	}

	ts, err := newSession(c, log, job.PhaseTranslate)
	if err != nil {
		return nil, err
	}
	var vs chat.Session
	if !opts.SkipVerification {
		if vs, err = newSession(c, log, job.PhaseVerify); err != nil {
			return nil, err
		}
	}

	tr, err := job.NewTranslator(ts, vs, job.Options{
		InputLanguage:    req.SourceLang,
		OutputLanguage:   req.TargetLang,
		BatchSize:        c.BatchSize,
		BatchMaxTokens:   c.BatchMaxTokens,
		Think:            opts.Think,
		SkipVerification: opts.SkipVerification,
		Prompts:          opts.Prompts,
		Matcher:          m,
		Validator:        validator.New(m, vopts),
		Counter:          tokens.Default,
		RetryDelay:       c.RetryDelay,
		Logger:           log,
		Progress:         deps.progress,
		Checkpoint:       checkpoint,
	})
	if err != nil {
		return nil, err
	}

	out, err := tr.Run(ctx, pending, translated)
	if err != nil {
		return nil, err
	}
	all := append(done, out...)
	job.SortByID(all)

	values := make(map[string]string, len(all))
	for _, it := range all {
		values[it.Key] = it.Translated
	}
	data, err := flatjson.Apply(doc.raw, doc.entries, values)
	if err != nil {
		return nil, err
	}
	if err := writeOutput(req.OutputFile, data); err != nil {
		return nil, err
	}

	outcome := &translationOutcome{
		Request: req,
		Items:   all,
		Resumed: len(done) + len(translated),
		Report:  stats.NewReport(string(c.Engine), c.Model, c.Prices, tr.Phases()...),
	}
	if opts.ReportFile != "" {
		rep := translationReport{Request: req, Telemetry: outcome.Report}
		for _, it := range all {
			rep.Items = append(rep.Items, reportItem{Key: it.Key, Original: it.Original, Translated: it.Translated})
		}
		if err := writeJSON(outputPath(opts.ReportFile, req.TargetLang), rep); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

type gradeOptions struct {
	Prompt string
	Rubric rubric.Rubric
}

type gradingSummary struct {
	Items   int     `json:"items"`
	Invalid int     `json:"invalid"`
	Skipped int     `json:"skipped"`
	Average float64 `json:"averageScore"`
	Maximum float64 `json:"maximumScore"`
}

type gradingReport struct {
	Request   internal.GradingRequest `json:"request"`
	Summary   gradingSummary          `json:"summary"`
	Items     []reportItem            `json:"items"`
	Skipped   []string                `json:"skipped,omitempty"`
	Telemetry *stats.Report           `json:"telemetry"`
}

// gradeDocument scores the translation of src and writes the report to
// req.OutputFile.
func gradeDocument(ctx context.Context, deps pipelineDeps, src, translation *document, contexts map[string]string, req internal.GradingRequest, opts gradeOptions) (_ *gradingReport, err error) {
	c := deps.config
	log := deps.log.With().Str("target", req.TargetLang).Logger()
	if len(opts.Rubric) == 0 {
		opts.Rubric = rubric.Default()
	}
	items, skipped := job.NewGradeItems(src.entries, flatjson.Values(translation.entries), contexts, c.Matcher(), tokens.Default)
	if len(skipped) > 0 {
		log.Warn().Int("skipped", len(skipped)).Msg("entries without a translation are not graded")
	}

	journal, runID, err := journalFor(ctx, deps.db, store.Run{
		Kind:       store.KindGrade,
		InputFile:  req.InputFile,
		OutputFile: req.OutputFile,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Engine:     string(c.Engine),
		Model:      c.Model,
	}, req.ID)
	if err != nil {
		return nil, err
	}
	req.ID = runID
	defer func() { finishRun(ctx, deps, runID, err) }()

	pending, done := items, []*job.GradeItem(nil)
	var checkpoint job.Checkpointer
	if journal != nil {
		checkpoint = journal
		if pending, done, err = journal.SplitGrades(ctx, items); err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
	}

	sess, err := newSession(c, log, job.PhaseGrade)
	if err != nil {
		return nil, err
	}
	g, err := job.NewGrader(sess, job.GradeOptions{
		InputLanguage:  req.SourceLang,
		OutputLanguage: req.TargetLang,
		BatchSize:      c.BatchSize,
		BatchMaxTokens: c.BatchMaxTokens,
		Prompt:         opts.Prompt,
		Rubric:         opts.Rubric,
		Counter:        tokens.Default,
		RetryDelay:     c.RetryDelay,
		Logger:         log,
		Progress:       deps.progress,
		Checkpoint:     checkpoint,
	})
	if err != nil {
		return nil, err
	}

	out, err := g.Run(ctx, pending)
	if err != nil {
		return nil, err
	}
	all := append(done, out...)
	job.SortByID(all)

	rep := &gradingReport{
		Request:   req,
		Skipped:   skipped,
		Telemetry: stats.NewReport(string(c.Engine), c.Model, c.Prices, g.Stats),
	}
	var total float64
	for _, it := range all {
		rep.Items = append(rep.Items, reportItem{Key: it.Key, Original: it.Original, Translated: it.Translated, Grading: it.Grading})
		total += it.Grading.Total()
		if !it.Grading.Valid {
			rep.Summary.Invalid++
		}
	}
	rep.Summary.Items = len(all)
	rep.Summary.Skipped = len(skipped)
	rep.Summary.Maximum = opts.Rubric.Total()
	if len(all) > 0 {
		rep.Summary.Average = total / float64(len(all))
	}

	if err := writeJSON(req.OutputFile, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// logFatal logs the state of the item that aborted a run.
func logFatal(log zerolog.Logger, err error) {
	var fatal *job.FatalItemError
	if !errors.As(err, &fatal) {
		return
	}
	ev := log.Error().Str("phase", fatal.Phase).Int("id", fatal.ID)
	if json.Valid([]byte(fatal.State)) {
		ev = ev.RawJSON("item", []byte(fatal.State))
	} else {
		ev = ev.Str("item", fatal.State)
	}
	ev.Msg("item exceeded the retry ceiling")
}
