package job

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/rubric"
	"github.com/valpere/batchtran/internal/validator"
)

// Verdict is the result of checking one returned item.
type Verdict int

const (
	// Requeued items stay pending with LastFailure set.
	Requeued Verdict = iota
	// Accepted items move to the output.
	Accepted
)

func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "requeued"
}

// Outcome pairs an item with its verdict. Items the model left out of its
// reply get no outcome and stay pending untouched.
type Outcome[T any] struct {
	Item    T
	Verdict Verdict
	Failure string
}

func verdict[T any](it T, failure string) Outcome[T] {
	if failure == "" {
		return Outcome[T]{Item: it, Verdict: Accepted}
	}
	return Outcome[T]{Item: it, Verdict: Requeued, Failure: failure}
}

// EmptyFix is the note for a rejected translation that came without a fix.
const EmptyFix = "The translation was marked invalid, 'fixedTranslation' must contain the corrected translation and cannot be empty"

// matchReplies calls fn once for every reply whose id belongs to batch.
// Duplicate ids after the first are ignored.
func matchReplies[T workItem](b []T, replies []gjson.Result, fn func(T, gjson.Result)) {
	byID := make(map[int]T, len(b))
	for _, it := range b {
		byID[it.item().ID] = it
	}
	seen := make(map[int]bool, len(replies))
	for _, r := range replies {
		id := int(r.Get("id").Int())
		it, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		fn(it, r)
	}
}

// ReconcileTranslations stores each returned translation on its item and
// validates it.
func ReconcileTranslations(v *validator.Validator, b []*Item, replies []gjson.Result) []Outcome[*Item] {
	var out []Outcome[*Item]
	matchReplies(b, replies, func(it *Item, r gjson.Result) {
		it.Translated = r.Get("translated").String()
		it.LastFailure = v.Check(it.Original, it.Translated, it.Variables)
		out = append(out, verdict(it, it.LastFailure))
	})
	return out
}

// ReconcileVerifications applies verification verdicts. A valid item is
// accepted. An invalid one takes the proposed fix, provided it is non-empty
// and keeps every variable, and goes back for another verification with the
// reported issue attached.
func ReconcileVerifications(v *validator.Validator, b []*Item, replies []gjson.Result) []Outcome[*Item] {
	var out []Outcome[*Item]
	matchReplies(b, replies, func(it *Item, r gjson.Result) {
		if r.Get("isValid").Bool() {
			it.LastFailure = ""
			out = append(out, verdict(it, ""))
			return
		}

		fixed := r.Get("fixedTranslation").String()
		switch {
		case strings.TrimSpace(fixed) == "":
			it.LastFailure = EmptyFix
		case len(v.MissingVariables(it.Variables, fixed)) > 0:
			it.LastFailure = placeholder.FailureMessage(v.MissingVariables(it.Variables, fixed))
		default:
			it.Translated = fixed
			it.LastFailure = fmt.Sprintf("Previous issue that should be corrected: '%s'", r.Get("issue").String())
		}
		out = append(out, verdict(it, it.LastFailure))
	})
	return out
}

// ReconcileGrade copies g into it and checks every score against its
// category bounds in rubric order. The first violation becomes the item's
// failure note; otherwise the failure is cleared.
func ReconcileGrade(r rubric.Rubric, it *GradeItem, g *Grade) Outcome[*GradeItem] {
	it.Grading = g
	it.LastFailure = r.Check(g.Scores)
	return verdict(it, it.LastFailure)
}

// ReconcileGrades decodes grading replies and reconciles each matched item.
func ReconcileGrades(r rubric.Rubric, b []*GradeItem, replies []gjson.Result) []Outcome[*GradeItem] {
	var out []Outcome[*GradeItem]
	matchReplies(b, replies, func(it *GradeItem, res gjson.Result) {
		out = append(out, ReconcileGrade(r, it, decodeGrade(r, res)))
	})
	return out
}

func decodeGrade(r rubric.Rubric, res gjson.Result) *Grade {
	g := &Grade{
		ID:        int(res.Get("id").Int()),
		Rationale: res.Get("rationale").String(),
		Valid:     res.Get("valid").Bool(),
		Scores:    make(map[string]float64, len(r)),
	}
	for _, key := range r.Keys() {
		if v := res.Get(key); v.Exists() && v.Type == gjson.Number {
			g.Scores[key] = v.Float()
		}
	}
	return g
}
