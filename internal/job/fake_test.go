package job

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/tokens"
)

// scripted is a chat.Backend answering with a function of the request.
type scripted struct {
	mu       sync.Mutex
	reply    func(call int, prompt string) string
	requests []*chat.Request
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Create(_ context.Context, req *chat.Request) (*chat.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	text := s.reply(call, req.Messages[len(req.Messages)-1].Content)
	if text == "" {
		return nil, errors.New("scripted failure")
	}
	return &chat.Response{Text: text, PromptTokens: 10, CompletionTokens: 5}, nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scripted) prompt(call int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.requests[call-1].Messages
	return msgs[len(msgs)-1].Content
}

// replies returns fixed replies in order, repeating the last one.
func replies(texts ...string) func(int, string) string {
	return func(call int, _ string) string {
		if call > len(texts) {
			return texts[len(texts)-1]
		}
		return texts[call-1]
	}
}

var idRe = regexp.MustCompile(`"id":(\d+)`)

// promptIDs lists the item ids of the batch embedded in a rendered prompt.
func promptIDs(prompt string) []int {
	var ids []int
	for _, m := range idRe.FindAllStringSubmatch(prompt, -1) {
		n, _ := strconv.Atoi(m[1])
		ids = append(ids, n)
	}
	return ids
}

func newSession(t *testing.T, b chat.Backend) *chat.Chat {
	t.Helper()
	c := chat.NewChat(b, chat.Config{Logger: zerolog.Nop()})
	c.StartSession(chat.Params{Model: "test-model", Seed: 1})
	return c
}

func newItem(id int, original string) *Item {
	m := placeholder.New("", "")
	it := &Item{ID: id, Key: "k" + strconv.Itoa(id), Original: original, Variables: m.Extract(original)}
	it.Tokens = tokens.Default(marshalInput(toTranslateEntry(it)))
	return it
}

// recorder collects progress reports.
type recorder struct {
	mu      sync.Mutex
	reports [][2]int
}

func (r *recorder) Report(_ string, _ time.Duration, total, processed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, [2]int{total, processed})
}
