// Package store journals accepted items of a run in SQLite so that an
// interrupted run can resume without re-sending finished work.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	KindTranslate = "translate"
	KindGrade     = "grade"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		input_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		engine TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- run_items holds every item accepted by a phase; original is NFC-normalized
	CREATE TABLE IF NOT EXISTS run_items (
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		item_key TEXT NOT NULL,
		original TEXT NOT NULL,
		translated TEXT NOT NULL,
		grading TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, phase, item_key),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_run_items ON run_items(run_id, phase);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Run is a journaled run.
type Run struct {
	ID         string
	Kind       string
	InputFile  string
	OutputFile string
	SourceLang string
	TargetLang string
	Engine     string
	Model      string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Items counts journaled items over all phases.
	Items int
}

// CreateRun records a new run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, r Run) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, input_file, output_file, source_lang, target_lang, engine, model, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Kind, r.InputFile, r.OutputFile, r.SourceLang, r.TargetLang, r.Engine, r.Model, StatusRunning, now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

const runColumns = `r.id, r.kind, r.input_file, r.output_file, r.source_lang, r.target_lang, r.engine, r.model, r.status, r.created_at, r.updated_at,
	(SELECT COUNT(*) FROM run_items i WHERE i.run_id = r.id)`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	err := sc.Scan(&r.ID, &r.Kind, &r.InputFile, &r.OutputFile, &r.SourceLang, &r.TargetLang,
		&r.Engine, &r.Model, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.Items)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// SetStatus updates the status of a run.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return mustAffect(res, id)
}

// DeleteRun removes a run and its items.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_items WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := mustAffect(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

func mustAffect(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SavedItem is a journaled item.
type SavedItem struct {
	Key        string
	Original   string
	Translated string
	// Grading is the JSON-encoded grade, empty outside the grade phase.
	Grading []byte
}

// SaveItem journals an accepted item. Saving the same key twice in a phase
// keeps the latest.
func (s *Store) SaveItem(ctx context.Context, runID, phase string, it SavedItem) error {
	var grading any
	if len(it.Grading) > 0 {
		grading = string(it.Grading)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_items (run_id, phase, item_key, original, translated, grading) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, phase, it.Key, normalizeText(it.Original), it.Translated, grading)
	return err
}

// Items returns the journaled items of one phase keyed by item key.
func (s *Store) Items(ctx context.Context, runID, phase string) (map[string]SavedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_key, original, translated, grading FROM run_items WHERE run_id = ? AND phase = ?`,
		runID, phase)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string]SavedItem)
	for rows.Next() {
		var it SavedItem
		var grading sql.NullString
		if err := rows.Scan(&it.Key, &it.Original, &it.Translated, &grading); err != nil {
			return nil, err
		}
		if grading.Valid {
			it.Grading = []byte(grading.String)
		}
		items[it.Key] = it
	}
	return items, rows.Err()
}

// PhaseCounts returns the number of journaled items per phase.
func (s *Store) PhaseCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, COUNT(*) FROM run_items WHERE run_id = ? GROUP BY phase`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var phase string
		var n int
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, err
		}
		counts[phase] = n
	}
	return counts, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText makes journaled originals comparable regardless of the
// Unicode normalization form of the input file.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}
