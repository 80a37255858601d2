package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend talks to a local Ollama server through /api/chat.
type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

func NewOllamaBackend(baseURL string, client *http.Client) *OllamaBackend {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  defaultClient(client),
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   any            `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (b *OllamaBackend) Create(ctx context.Context, req *Request) (*Response, error) {
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
	}
	if req.Schema != nil {
		body.Format = req.Schema.JSONSchema()
	}
	if req.Seed != 0 {
		body.Options = map[string]any{"seed": req.Seed}
	}

	var out ollamaChatResponse
	if err := postJSON(ctx, b.client, b.Name(), fmt.Sprintf("%s/api/chat", b.baseURL), nil, body, &out); err != nil {
		return nil, err
	}
	return &Response{
		Text:             out.Message.Content,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}
