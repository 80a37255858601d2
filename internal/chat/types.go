package chat

import (
	"context"
	"fmt"

	"github.com/valpere/batchtran/internal/schema"
)

// Role is the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one history entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is what a Backend sends in one call.
type Request struct {
	Model    string
	Messages []Message
	// Schema constrains the reply when set.
	Schema *schema.Schema
	Seed   int64
}

// Response is a backend reply. Token counts are zero when the backend does
// not report usage.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Backend adapts one provider API. Implementations return errors for every
// failure; the session above turns them into empty replies.
type Backend interface {
	Name() string
	Create(ctx context.Context, req *Request) (*Response, error)
}

// UpstreamError is a non-2xx reply from a provider.
type UpstreamError struct {
	Engine string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Engine, e.Status, body)
}

// Temporary reports whether retrying may help.
func (e *UpstreamError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}
