package chat

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal/ratelimit"
	"github.com/valpere/batchtran/internal/tokens"
)

// Engine selects a backend.
type Engine string

const (
	ChatGPT Engine = "chatgpt"
	Gemini  Engine = "gemini"
	Ollama  Engine = "ollama"
	Claude  Engine = "claude"
)

// Engines lists the supported engines, default first.
var Engines = []Engine{ChatGPT, Gemini, Ollama, Claude}

// ParseEngine validates an engine name.
func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Engines {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown engine %q (supported: chatgpt, gemini, ollama, claude)", s)
}

// EngineDefaults are the per-engine settings used when nothing is configured.
type EngineDefaults struct {
	Model          string
	RateLimit      time.Duration
	BatchMaxTokens int
}

// Defaults returns the defaults of e.
func Defaults(e Engine) EngineDefaults {
	switch e {
	case Gemini:
		return EngineDefaults{Model: "gemini-2.0-flash-exp", RateLimit: 6000 * time.Millisecond, BatchMaxTokens: 4096}
	case Ollama:
		return EngineDefaults{Model: "llama3.3", RateLimit: 0, BatchMaxTokens: 2048}
	case Claude:
		return EngineDefaults{Model: "claude-3-5-sonnet-latest", RateLimit: 1200 * time.Millisecond, BatchMaxTokens: 4096}
	default:
		return EngineDefaults{Model: "gpt-4o", RateLimit: 120 * time.Millisecond, BatchMaxTokens: 4096}
	}
}

// DefaultSeed keeps replies reproducible on backends that support seeding.
const DefaultSeed = 69420

// Options configures New.
type Options struct {
	Engine    Engine
	Model     string
	APIKey    string
	BaseURL   string
	RateLimit time.Duration
	Seed      int64
	// MaxTokens caps the reply length where the API requires it (claude).
	MaxTokens  int
	Counter    tokens.Counter
	Logger     zerolog.Logger
	HTTPClient *http.Client
}

// New builds the backend selected by opts.Engine and returns a started
// session on it. Each call creates its own rate limiter, so independent
// sessions do not share spacing.
func New(opts Options) (*Chat, error) {
	b, err := NewBackend(opts)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = Defaults(opts.Engine).Model
	}

	c := NewChat(b, Config{
		Limiter: ratelimit.New(opts.RateLimit),
		Counter: opts.Counter,
		Logger:  opts.Logger,
		// Small local models degrade quickly with long histories.
		LatestOnly: opts.Engine == Ollama,
	})
	c.StartSession(Params{Model: model, Seed: opts.Seed})
	return c, nil
}

// NewBackend builds the backend adapter for opts.Engine.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Engine {
	case ChatGPT, "":
		return NewOpenAIBackend(opts.APIKey, opts.BaseURL, opts.HTTPClient)
	case Gemini:
		return NewGeminiBackend(opts.APIKey, opts.BaseURL, opts.HTTPClient), nil
	case Ollama:
		return NewOllamaBackend(opts.BaseURL, opts.HTTPClient), nil
	case Claude:
		return NewAnthropicBackend(opts.APIKey, opts.BaseURL, opts.MaxTokens, opts.HTTPClient), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
}
