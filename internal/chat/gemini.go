package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls the Gemini generateContent REST endpoint.
type GeminiBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGeminiBackend(apiKey, baseURL string, client *http.Client) *GeminiBackend {
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}
	return &GeminiBackend{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  defaultClient(client),
	}
}

func (b *GeminiBackend) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Seed             int64          `json:"seed,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (b *GeminiBackend) Create(ctx context.Context, req *Request) (*Response, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("gemini: API key required")
	}

	system, turns := splitSystem(req.Messages)
	body := geminiRequest{}
	for _, m := range alternate(turns) {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if req.Schema != nil {
		body.GenerationConfig.ResponseMimeType = "application/json"
		body.GenerationConfig.ResponseSchema = req.Schema.GeminiSchema()
	}
	body.GenerationConfig.Seed = req.Seed

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", b.baseURL, url.PathEscape(req.Model))
	headers := map[string]string{"x-goog-api-key": b.apiKey}

	var out geminiResponse
	if err := postJSON(ctx, b.client, b.Name(), endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return &Response{
		Text:             text.String(),
		PromptTokens:     out.UsageMetadata.PromptTokenCount,
		CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
	}, nil
}
