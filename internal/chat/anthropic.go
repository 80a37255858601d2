package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultAnthropicURL       = "https://api.anthropic.com"
	anthropicVersion          = "2023-06-01"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicBackend calls the Messages API. Structured output is obtained by
// forcing a single tool whose input schema is the reply schema.
type AnthropicBackend struct {
	apiKey    string
	baseURL   string
	maxTokens int
	client    *http.Client
}

func NewAnthropicBackend(apiKey, baseURL string, maxTokens int, client *http.Client) *AnthropicBackend {
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicBackend{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: maxTokens,
		client:    defaultClient(client),
	}
}

func (b *AnthropicBackend) Name() string { return "claude" }

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model      string            `json:"model"`
	MaxTokens  int               `json:"max_tokens"`
	System     string            `json:"system,omitempty"`
	Messages   []Message         `json:"messages"`
	Tools      []anthropicTool   `json:"tools,omitempty"`
	ToolChoice map[string]string `json:"tool_choice,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (b *AnthropicBackend) Create(ctx context.Context, req *Request) (*Response, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("claude: API key required")
	}

	system, turns := splitSystem(req.Messages)
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: b.maxTokens,
		System:    system,
		Messages:  alternate(turns),
	}
	if req.Schema != nil {
		name := req.Schema.Name
		if name == "" {
			name = "reply"
		}
		body.Tools = []anthropicTool{{Name: name, Description: req.Schema.Description, InputSchema: req.Schema.JSONSchema()}}
		body.ToolChoice = map[string]string{"type": "tool", "name": name}
	}

	headers := map[string]string{
		"x-api-key":         b.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var out anthropicResponse
	if err := postJSON(ctx, b.client, b.Name(), b.baseURL+"/v1/messages", headers, body, &out); err != nil {
		return nil, err
	}

	resp := &Response{PromptTokens: out.Usage.InputTokens, CompletionTokens: out.Usage.OutputTokens}
	var text strings.Builder
	for _, c := range out.Content {
		switch c.Type {
		case "tool_use":
			resp.Text = string(c.Input)
			return resp, nil
		case "text":
			text.WriteString(c.Text)
		}
	}
	resp.Text = text.String()
	return resp, nil
}
