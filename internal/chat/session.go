// Package chat keeps one stateful conversation with a model backend and
// exposes the rollback and reset hooks the batch controllers use to recover
// from failed exchanges.
package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal/ratelimit"
	"github.com/valpere/batchtran/internal/schema"
	"github.com/valpere/batchtran/internal/stats"
	"github.com/valpere/batchtran/internal/tokens"
)

// MaxHistory is the number of most recent history entries kept before each
// dispatch.
const MaxHistory = 10

const (
	invalidTranslationNote = "The previous replies could not be used. Re-attempt the task from the original prompt, follow its rules exactly and return only JSON matching the requested structure."
	invalidStylingNote     = "The previous translations were rejected because they did not keep the original styling. Preserve variables, case, punctuation and whitespace exactly as in the original and re-attempt."
)

// Session is a conversation with one backend. Failures never surface as
// errors: SendMessage returns "" and the caller decides whether to roll
// back, reset or retry.
type Session interface {
	StartSession(params Params)
	SendMessage(ctx context.Context, text string, st *stats.Phase, format *schema.Schema) string
	ResetChatHistory()
	RollbackLastMessage()
	InvalidTranslation()
	InvalidStyling()
	History() []Message
}

// Params configures a started session.
type Params struct {
	Model string
	// History seeds the conversation, e.g. with a system message.
	History []Message
	Seed    int64
}

// Config holds the collaborators of a Chat.
type Config struct {
	Limiter *ratelimit.Limiter
	Counter tokens.Counter
	Logger  zerolog.Logger
	// LatestOnly sends only the newest message instead of the history.
	// History is still recorded and trimmed.
	LatestOnly bool
}

// Chat is the Session implementation shared by every backend.
type Chat struct {
	backend    Backend
	limiter    *ratelimit.Limiter
	count      tokens.Counter
	base       zerolog.Logger
	log        zerolog.Logger
	latestOnly bool

	params  Params
	history []Message
	started bool
}

// NewChat wraps b. The session must be started before use.
func NewChat(b Backend, cfg Config) *Chat {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(0)
	}
	if cfg.Counter == nil {
		cfg.Counter = tokens.Default
	}
	log := cfg.Logger.With().Str("engine", b.Name()).Logger()
	return &Chat{
		backend:    b,
		limiter:    cfg.Limiter,
		count:      cfg.Counter,
		base:       log,
		log:        log,
		latestOnly: cfg.LatestOnly,
	}
}

// Backend returns the wrapped backend.
func (c *Chat) Backend() Backend { return c.backend }

// StartSession sets the model and seeds history.
func (c *Chat) StartSession(params Params) {
	c.params = params
	c.history = append([]Message(nil), params.History...)
	c.started = true
	c.log = c.base.With().Str("model", params.Model).Logger()
}

// SendMessage sends text as a user turn and returns the raw reply, or "" on
// any failure. The user turn stays in history after a failure so that
// RollbackLastMessage can remove it.
func (c *Chat) SendMessage(ctx context.Context, text string, st *stats.Phase, format *schema.Schema) string {
	if !c.started {
		c.log.Error().Msg("chat session used before StartSession")
		return ""
	}

	if len(c.history) > MaxHistory {
		c.history = append([]Message(nil), c.history[len(c.history)-MaxHistory:]...)
	}

	if st != nil {
		st.Requests++
		st.EnqueuedTokens += c.count(text)
		st.EnqueuedHistoryTokens += c.count(joinContents(c.history))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.log.Error().Err(err).Msg("rate limiter wait aborted")
		c.failed(st)
		return ""
	}
	c.limiter.RecordCall()

	c.history = append(c.history, Message{Role: RoleUser, Content: text})

	messages := c.history
	if c.latestOnly {
		messages = c.history[len(c.history)-1:]
	}

	resp, err := c.backend.Create(ctx, &Request{
		Model:    c.params.Model,
		Messages: append([]Message(nil), messages...),
		Schema:   format,
		Seed:     c.params.Seed,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("chat request failed")
		c.failed(st)
		return ""
	}
	if strings.TrimSpace(resp.Text) == "" {
		c.log.Warn().Msg("chat request returned an empty reply")
		c.failed(st)
		return ""
	}

	if st != nil {
		st.ReceivedTokens += c.count(resp.Text)
		st.PromptTokens += resp.PromptTokens
		st.CompletionTokens += resp.CompletionTokens
	}
	c.history = append(c.history, Message{Role: RoleAssistant, Content: resp.Text})
	return resp.Text
}

func (c *Chat) failed(st *stats.Phase) {
	if st != nil {
		st.FailedRequests++
	}
}

// ResetChatHistory drops the whole conversation, including seeded history.
func (c *Chat) ResetChatHistory() {
	c.history = nil
}

// RollbackLastMessage undoes the latest exchange: two entries when the tail
// is an assistant reply, one when it is an unanswered user message. Any
// other tail, or an empty history, is left alone.
func (c *Chat) RollbackLastMessage() {
	n := len(c.history)
	if n == 0 {
		return
	}
	switch c.history[n-1].Role {
	case RoleAssistant:
		c.history = c.history[:max(0, n-2)]
	case RoleUser:
		c.history = c.history[:n-1]
	}
}

// InvalidTranslation appends a corrective note after repeated unusable
// replies.
func (c *Chat) InvalidTranslation() {
	c.history = append(c.history, Message{Role: RoleSystem, Content: invalidTranslationNote})
}

// InvalidStyling appends a corrective note after a round where every item
// was rejected.
func (c *Chat) InvalidStyling() {
	c.history = append(c.history, Message{Role: RoleSystem, Content: invalidStylingNote})
}

// History returns a copy of the conversation.
func (c *Chat) History() []Message {
	return append([]Message(nil), c.history...)
}

func joinContents(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
	}
	return b.String()
}

// splitSystem separates system messages, which several providers take as a
// dedicated field, from conversation turns.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

// alternate merges consecutive turns of the same role and drops leading
// assistant turns, for providers requiring a user-first alternating history.
func alternate(turns []Message) []Message {
	var out []Message
	for _, m := range turns {
		if len(out) == 0 && m.Role != RoleUser {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			out[len(out)-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
