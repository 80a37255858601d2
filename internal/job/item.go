// Package job runs the batch control loop: it plans token-bounded batches,
// sends them through a chat session, validates every returned item and
// requeues the failures with a note describing what to fix.
package job

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/valpere/batchtran/internal/flatjson"
	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/tokens"
)

// Item is one string to translate. ID is a dense 1-based index assigned at
// intake in document order; Key addresses the string in the source document.
type Item struct {
	ID          int      `json:"id"`
	Key         string   `json:"key"`
	Original    string   `json:"original"`
	Translated  string   `json:"translated"`
	Context     string   `json:"context,omitempty"`
	Variables   []string `json:"templateStrings,omitempty"`
	Tokens      int      `json:"tokens"`
	Attempts    int      `json:"attempts"`
	LastFailure string   `json:"lastFailure,omitempty"`
}

func (it *Item) CachedTokens() int { return it.Tokens }
func (it *Item) Failure() string   { return it.LastFailure }
func (it *Item) AttemptCount() int { return it.Attempts }
func (it *Item) item() *Item       { return it }

// Grade is a parsed rubric result. Scores are keyed by rubric category.
type Grade struct {
	ID        int                `json:"id"`
	Rationale string             `json:"rationale"`
	Scores    map[string]float64 `json:"scores"`
	Valid     bool               `json:"valid"`
}

// Total sums the scores.
func (g *Grade) Total() float64 {
	var t float64
	for _, v := range g.Scores {
		t += v
	}
	return t
}

// GradeItem is an existing translation to grade.
type GradeItem struct {
	Item
	Grading *Grade `json:"grading,omitempty"`
}

// translateEntry is an item as the model sees it during translation. Field
// order is part of the prompt and must stay stable.
type translateEntry struct {
	ID       int    `json:"id"`
	Original string `json:"original"`
	Context  string `json:"context,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

// reviewEntry is an item as the model sees it during verification and
// grading.
type reviewEntry struct {
	ID         int    `json:"id"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	Context    string `json:"context,omitempty"`
	Failure    string `json:"failure,omitempty"`
}

func toTranslateEntry(it *Item) any {
	return translateEntry{ID: it.ID, Original: it.Original, Context: it.Context, Failure: it.LastFailure}
}

func toReviewEntry(it *Item) any {
	return reviewEntry{ID: it.ID, Original: it.Original, Translated: it.Translated, Context: it.Context, Failure: it.LastFailure}
}

// marshalInput encodes v without HTML escaping, so markup in strings reaches
// the model verbatim.
func marshalInput(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}

// NewItems builds translation items from document entries, numbered from 1.
// Blank strings are skipped: there is nothing to translate and they would
// never validate. contexts optionally maps keys to context notes.
func NewItems(entries []flatjson.Entry, contexts map[string]string, m *placeholder.Matcher, count tokens.Counter) []*Item {
	items := make([]*Item, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		it := &Item{
			ID:        len(items) + 1,
			Key:       e.Key,
			Original:  e.Value,
			Context:   contexts[e.Key],
			Variables: m.Extract(e.Value),
		}
		it.Tokens = count(marshalInput(toTranslateEntry(it)))
		items = append(items, it)
	}
	return items
}

// NewGradeItems pairs source entries with their translations by key. Keys
// without a non-blank translation are returned in skipped.
func NewGradeItems(originals []flatjson.Entry, translations, contexts map[string]string, m *placeholder.Matcher, count tokens.Counter) (items []*GradeItem, skipped []string) {
	for _, e := range originals {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		tr, ok := translations[e.Key]
		if !ok || strings.TrimSpace(tr) == "" {
			skipped = append(skipped, e.Key)
			continue
		}
		it := &GradeItem{Item: Item{
			ID:         len(items) + 1,
			Key:        e.Key,
			Original:   e.Value,
			Translated: tr,
			Context:    contexts[e.Key],
			Variables:  m.Extract(e.Value),
		}}
		it.Tokens = count(marshalInput(toReviewEntry(&it.Item)))
		items = append(items, it)
	}
	return items, skipped
}

// SortByID orders items by ID in place.
func SortByID[T interface{ item() *Item }](items []T) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].item().ID < items[j].item().ID })
}
