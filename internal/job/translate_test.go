package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/prompt"
)

func newTestTranslator(t *testing.T, tr, vr *scripted, opts Options) (*Translator, *chat.Chat, *chat.Chat) {
	t.Helper()
	opts.InputLanguage = "en"
	opts.OutputLanguage = "fr"
	opts.Logger = zerolog.Nop()
	ts := newSession(t, tr)
	var vs *chat.Chat
	if vr != nil {
		vs = newSession(t, vr)
	} else {
		opts.SkipVerification = true
	}
	x, err := NewTranslator(ts, vs, opts)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	return x, ts, vs
}

func TestTranslateRequeuesMissingVariable(t *testing.T) {
	backend := &scripted{reply: replies(
		`{"items":[{"id":1,"translated":"Bonjour"}]}`,
		`{"items":[{"id":1,"translated":"Bonjour {{name}}"}]}`,
	)}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "Hello {{name}}")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || out[0].Translated != "Bonjour {{name}}" {
		t.Fatalf("got %+v", out)
	}
	if out[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", out[0].Attempts)
	}
	if backend.calls() != 2 {
		t.Fatalf("calls = %d, want 2", backend.calls())
	}
	if strings.Contains(backend.prompt(1), `"failure"`) {
		t.Error("first prompt should not carry a failure note")
	}
	second := backend.prompt(2)
	if !strings.Contains(second, "Ensure all variables are included") || !strings.Contains(second, "{{name}}") {
		t.Errorf("second prompt lacks the missing variable note:\n%s", second)
	}
}

func TestTranslateLeavesOmittedItemsUntouched(t *testing.T) {
	backend := &scripted{}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})

	two := newItem(2, "two")
	var seen []string
	backend.reply = func(call int, prompt string) string {
		if call == 2 {
			seen = append(seen, two.Translated, two.LastFailure)
			if ids := promptIDs(prompt); len(ids) != 1 || ids[0] != 2 {
				t.Errorf("second batch ids = %v, want [2]", ids)
			}
			return `{"items":[{"id":2,"translated":"deux"}]}`
		}
		return `{"items":[{"id":1,"translated":"un"}]}`
	}

	out, err := x.Run(context.Background(), []*Item{newItem(1, "one"), two}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen[0] != "" || seen[1] != "" {
		t.Errorf("omitted item was modified: translated=%q failure=%q", seen[0], seen[1])
	}
	if out[0].Translated != "un" || out[1].Translated != "deux" {
		t.Errorf("got %q, %q", out[0].Translated, out[1].Translated)
	}
}

func TestTranslateIgnoresUnknownAndDuplicateIDs(t *testing.T) {
	backend := &scripted{reply: replies(
		`{"items":[{"id":7,"translated":"x"},{"id":1,"translated":"un"},{"id":1,"translated":""}]}`,
	)}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "one")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || out[0].Translated != "un" {
		t.Fatalf("got %+v", out)
	}
}

func TestRetryCeilingIsFatalBeforeDispatch(t *testing.T) {
	backend := &scripted{reply: replies(`{"items":[]}`)}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})

	it := newItem(1, "stuck")
	it.Attempts = RetryCeiling
	_, err := x.Run(context.Background(), []*Item{it}, nil)

	var fatal *FatalItemError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want FatalItemError", err)
	}
	if !errors.Is(err, ErrRetryCeiling) {
		t.Error("FatalItemError should wrap ErrRetryCeiling")
	}
	if fatal.ID != 1 || fatal.Phase != PhaseTranslate {
		t.Errorf("fatal = %+v", fatal)
	}
	if !strings.Contains(fatal.State, `"original":"stuck"`) {
		t.Errorf("state = %s", fatal.State)
	}
	if backend.calls() != 0 {
		t.Errorf("calls = %d, want 0", backend.calls())
	}
}

func TestPersistentRejectionHitsCeiling(t *testing.T) {
	backend := &scripted{reply: replies(`{"items":[{"id":1,"translated":"Bonjour"}]}`)}
	x, ts, _ := newTestTranslator(t, backend, nil, Options{})

	_, err := x.Run(context.Background(), []*Item{newItem(1, "Hello {{name}}")}, nil)
	if !errors.Is(err, ErrRetryCeiling) {
		t.Fatalf("err = %v, want ErrRetryCeiling", err)
	}
	if backend.calls() != RetryCeiling {
		t.Errorf("calls = %d, want %d", backend.calls(), RetryCeiling)
	}

	styled := false
	for _, m := range ts.History() {
		if m.Role == chat.RoleSystem && strings.Contains(m.Content, "styling") {
			styled = true
		}
	}
	if !styled {
		t.Error("expected the invalid styling note after fully rejected rounds")
	}
}

func TestGenerationFailureResetsHistory(t *testing.T) {
	backend := &scripted{reply: replies("this is not json")}
	x, ts, _ := newTestTranslator(t, backend, nil, Options{})

	_, err := x.Run(context.Background(), []*Item{newItem(1, "one")}, nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	// maxGenerateRetries failures trigger the reset, then one more attempt.
	if want := maxGenerateRetries + 2; backend.calls() != want {
		t.Errorf("calls = %d, want %d", backend.calls(), want)
	}
	if len(ts.History()) != 0 {
		t.Errorf("history should be reset, got %d messages", len(ts.History()))
	}
}

func TestMalformedRepliesAddInvalidTranslationNote(t *testing.T) {
	backend := &scripted{}
	backend.reply = func(call int, _ string) string {
		if call <= maxGenerateRetries/2+1 {
			return "```json\n{broken"
		}
		return "```json\n{\"items\":[{\"id\":1,\"translated\":\"un\"}]}\n```"
	}
	x, ts, _ := newTestTranslator(t, backend, nil, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "one")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0].Translated != "un" {
		t.Errorf("translated = %q", out[0].Translated)
	}
	notes := 0
	for _, m := range ts.History() {
		if m.Role == chat.RoleSystem {
			notes++
		}
	}
	if notes != 1 {
		t.Errorf("system notes = %d, want 1", notes)
	}
}

func TestEmptyRepliesAreRolledBack(t *testing.T) {
	backend := &scripted{reply: replies("", "", `{"items":[{"id":1,"translated":"un"}]}`)}
	x, ts, _ := newTestTranslator(t, backend, nil, Options{})

	if _, err := x.Run(context.Background(), []*Item{newItem(1, "one")}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	h := ts.History()
	if len(h) != 2 || h[0].Role != chat.RoleUser || h[1].Role != chat.RoleAssistant {
		t.Errorf("history = %+v, want one exchange", h)
	}
}

func TestTranslationKeepsFencesAndTagsInValues(t *testing.T) {
	translated := "Entourez le code de ```js``` blocs, pas de <think>balises</think>"
	backend := &scripted{reply: replies(`{"items":[{"id":1,"translated":"` + translated + `"}]}`)}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "Wrap code in ```js``` blocks, no <think>tags</think>")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.calls() != 1 {
		t.Errorf("calls = %d, want 1", backend.calls())
	}
	if len(out) != 1 || out[0].Translated != translated {
		t.Errorf("got %+v", out)
	}
}

func TestVerificationAppliesFix(t *testing.T) {
	tr := &scripted{reply: replies(`{"items":[{"id":1,"translated":"Bonjour {{name}}"}]}`)}
	vr := &scripted{reply: replies(
		`{"items":[{"id":1,"isValid":false,"issue":"too formal","fixedTranslation":"Salut {{name}}"}]}`,
		`{"items":[{"id":1,"isValid":true}]}`,
	)}
	x, _, _ := newTestTranslator(t, tr, vr, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "Hello {{name}}")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0].Translated != "Salut {{name}}" {
		t.Errorf("translated = %q", out[0].Translated)
	}
	if out[0].Attempts != 2 {
		t.Errorf("verification attempts = %d, want 2", out[0].Attempts)
	}
	if !strings.Contains(vr.prompt(2), "Previous issue that should be corrected: 'too formal'") {
		t.Errorf("second verification prompt lacks the issue:\n%s", vr.prompt(2))
	}
	if !strings.Contains(vr.prompt(1), `"translated":"Bonjour {{name}}"`) {
		t.Errorf("verification prompt lacks the translation:\n%s", vr.prompt(1))
	}
}

func TestVerificationRejectsBadFixes(t *testing.T) {
	tr := &scripted{reply: replies(`{"items":[{"id":1,"translated":"Bonjour {{name}}"}]}`)}
	vr := &scripted{reply: replies(
		`{"items":[{"id":1,"isValid":false,"issue":"x","fixedTranslation":"  "}]}`,
		`{"items":[{"id":1,"isValid":false,"issue":"x","fixedTranslation":"Salut"}]}`,
		`{"items":[{"id":1,"isValid":true}]}`,
	)}
	x, _, _ := newTestTranslator(t, tr, vr, Options{})

	out, err := x.Run(context.Background(), []*Item{newItem(1, "Hello {{name}}")}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0].Translated != "Bonjour {{name}}" {
		t.Errorf("translated = %q, bad fixes must not be applied", out[0].Translated)
	}
	if !strings.Contains(vr.prompt(2), "cannot be empty") {
		t.Errorf("second prompt lacks the empty fix note:\n%s", vr.prompt(2))
	}
	if !strings.Contains(vr.prompt(3), "Ensure all variables are included") {
		t.Errorf("third prompt lacks the missing variable note:\n%s", vr.prompt(3))
	}
}

func TestVerificationIncludesResumedItems(t *testing.T) {
	tr := &scripted{reply: replies(`{"items":[{"id":1,"translated":"un"}]}`)}
	vr := &scripted{reply: func(_ int, prompt string) string {
		var parts []string
		for _, id := range promptIDs(prompt) {
			parts = append(parts, fmt.Sprintf(`{"id":%d,"isValid":true}`, id))
		}
		return `{"items":[` + strings.Join(parts, ",") + `]}`
	}}
	x, _, _ := newTestTranslator(t, tr, vr, Options{})

	resumed := newItem(2, "two")
	resumed.Translated = "deux"
	resumed.Attempts = 20

	out, err := x.Run(context.Background(), []*Item{newItem(1, "one")}, []*Item{resumed})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 2 {
		t.Fatalf("got %+v", out)
	}
	if out[1].Attempts != 1 {
		t.Errorf("attempts should restart per phase, got %d", out[1].Attempts)
	}
}

func TestProgressAndPermutation(t *testing.T) {
	const n = 40
	// Every third item is rejected on its first attempt.
	attempts := make(map[int]int)
	backend := &scripted{}
	backend.reply = func(_ int, prompt string) string {
		var parts []string
		for _, id := range promptIDs(prompt) {
			attempts[id]++
			tr := fmt.Sprintf("t%d", id)
			if id%3 == 0 && attempts[id] == 1 {
				tr = ""
			}
			parts = append(parts, fmt.Sprintf(`{"id":%d,"translated":%q}`, id, tr))
		}
		return `{"items":[` + strings.Join(parts, ",") + `]}`
	}
	rec := &recorder{}
	x, _, _ := newTestTranslator(t, backend, nil, Options{BatchSize: 7, Progress: rec})

	var in []*Item
	for i := 1; i <= n; i++ {
		in = append(in, newItem(i, fmt.Sprintf("source %d", i)))
	}
	out, err := x.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != n {
		t.Fatalf("len = %d, want %d", len(out), n)
	}
	for i, it := range out {
		if it.ID != i+1 || it.Translated != fmt.Sprintf("t%d", it.ID) {
			t.Fatalf("out[%d] = %+v", i, it)
		}
	}

	last := 0
	for _, r := range rec.reports {
		if r[0] != n || r[1] < last || r[1] > n {
			t.Fatalf("bad report %v after %d", r, last)
		}
		last = r[1]
	}
	if last != n {
		t.Errorf("final processed = %d, want %d", last, n)
	}
	if x.TranslateStats.ProcessedItems != n || x.TranslateStats.Requests != backend.calls() {
		t.Errorf("stats = %+v", x.TranslateStats)
	}
}

type memCheckpoint struct {
	accepted map[string][]int
}

func (m *memCheckpoint) Accepted(_ context.Context, phase string, it *Item, _ *Grade) error {
	if m.accepted == nil {
		m.accepted = make(map[string][]int)
	}
	m.accepted[phase] = append(m.accepted[phase], it.ID)
	return nil
}

func TestCheckpointSeesAcceptedItems(t *testing.T) {
	tr := &scripted{reply: replies(`{"items":[{"id":1,"translated":"un"},{"id":2,"translated":""}]}`,
		`{"items":[{"id":2,"translated":"deux"}]}`)}
	vr := &scripted{reply: replies(`{"items":[{"id":1,"isValid":true},{"id":2,"isValid":true}]}`)}
	cp := &memCheckpoint{}
	x, _, _ := newTestTranslator(t, tr, vr, Options{Checkpoint: cp})

	if _, err := x.Run(context.Background(), []*Item{newItem(1, "one"), newItem(2, "two")}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cp.accepted[PhaseTranslate]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("translate journal = %v", got)
	}
	if got := cp.accepted[PhaseVerify]; len(got) != 2 {
		t.Errorf("verify journal = %v", got)
	}
}

func TestNewTranslatorRejectsBrokenOverride(t *testing.T) {
	s := newSession(t, &scripted{reply: replies("")})
	_, err := NewTranslator(s, nil, Options{SkipVerification: true, Prompts: prompt.Overrides{Translation: "Translate ${inputLanguage} to ${outputLanguage}."}})
	if err == nil {
		t.Fatal("expected an error for a template without ${input}")
	}
}

func TestCanceledContext(t *testing.T) {
	backend := &scripted{reply: replies(`{"items":[]}`)}
	x, _, _ := newTestTranslator(t, backend, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := x.Run(ctx, []*Item{newItem(1, "one")}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
