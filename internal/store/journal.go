package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valpere/batchtran/internal/job"
)

// Journal binds a Store to one run. It implements job.Checkpointer.
type Journal struct {
	store *Store
	runID string
}

// Journal returns the journal of runID.
func (s *Store) Journal(runID string) *Journal {
	return &Journal{store: s, runID: runID}
}

// RunID returns the id of the journaled run.
func (j *Journal) RunID() string { return j.runID }

// Accepted records an item accepted by phase.
func (j *Journal) Accepted(ctx context.Context, phase string, it *job.Item, g *job.Grade) error {
	saved := SavedItem{Key: it.Key, Original: it.Original, Translated: it.Translated}
	if g != nil {
		b, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode grade: %w", err)
		}
		saved.Grading = b
	}
	return j.store.SaveItem(ctx, j.runID, phase, saved)
}

// matches reports whether a journaled entry still describes it: an edited
// source string must be translated again.
func matches(saved SavedItem, ok bool, it *job.Item) bool {
	return ok && saved.Original == normalizeText(it.Original)
}

// Split sorts fresh intake items by journaled progress. done items finished
// every phase and carry their journaled translation; translated items only
// need verification; pending items start from scratch. Without verify, a
// journaled translation finishes an item.
func (j *Journal) Split(ctx context.Context, items []*job.Item, verify bool) (pending, translated, done []*job.Item, err error) {
	tr, err := j.store.Items(ctx, j.runID, job.PhaseTranslate)
	if err != nil {
		return nil, nil, nil, err
	}
	vf := map[string]SavedItem{}
	if verify {
		if vf, err = j.store.Items(ctx, j.runID, job.PhaseVerify); err != nil {
			return nil, nil, nil, err
		}
	}

	for _, it := range items {
		if saved, ok := vf[it.Key]; matches(saved, ok, it) {
			it.Translated = saved.Translated
			done = append(done, it)
			continue
		}
		if saved, ok := tr[it.Key]; matches(saved, ok, it) {
			it.Translated = saved.Translated
			if verify {
				translated = append(translated, it)
			} else {
				done = append(done, it)
			}
			continue
		}
		pending = append(pending, it)
	}
	return pending, translated, done, nil
}

// SplitGrades separates items with a journaled grade from those still to
// grade.
func (j *Journal) SplitGrades(ctx context.Context, items []*job.GradeItem) (pending, done []*job.GradeItem, err error) {
	gr, err := j.store.Items(ctx, j.runID, job.PhaseGrade)
	if err != nil {
		return nil, nil, err
	}
	for _, it := range items {
		saved, ok := gr[it.Key]
		if !matches(saved, ok, &it.Item) || saved.Translated != it.Translated || len(saved.Grading) == 0 {
			pending = append(pending, it)
			continue
		}
		var g job.Grade
		if err := json.Unmarshal(saved.Grading, &g); err != nil {
			pending = append(pending, it)
			continue
		}
		g.ID = it.ID
		it.Grading = &g
		done = append(done, it)
	}
	return pending, done, nil
}
