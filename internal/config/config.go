// Package config resolves run settings from flags, environment, .env files
// and an optional batchtran.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/flatjson"
	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/rubric"
	"github.com/valpere/batchtran/internal/stats"
)

// KeyDelimiter separates nested keys. Model names in the price table contain
// dots, so the viper default cannot be used.
const KeyDelimiter = "::"

// EnvPrefix prefixes every environment override, e.g. BATCHTRAN_ENGINE.
const EnvPrefix = "BATCHTRAN"

// Keys shared by flags, environment and config file.
const (
	KeyEngine         = "engine"
	KeyModel          = "model"
	KeyRateLimit      = "rate_limit"
	KeyBatchSize      = "batch_size"
	KeyBatchMaxTokens = "batch_max_tokens"
	KeyRetryDelay     = "retry_delay"
	KeySeed           = "seed"
	KeyDelimiterFlat  = "delimiter"
	KeyPrefix         = "template_prefix"
	KeySuffix         = "template_suffix"
	KeyConcurrency    = "concurrency"
	KeyVerbose        = "verbose"
	KeyLogJSON        = "log_json"
	KeyOpenAIKey      = "openai_api_key"
	KeyGeminiKey      = "gemini_api_key"
	KeyAnthropicKey   = "anthropic_api_key"
	KeyOllamaHost     = "ollama_host"
	KeyBaseURL        = "base_url"
	KeyPrices         = "prices"
	KeyRubric         = "rubric"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	Engine         chat.Engine   `mapstructure:"-"`
	EngineName     string        `mapstructure:"engine"`
	Model          string        `mapstructure:"model"`
	RateLimit      time.Duration `mapstructure:"rate_limit"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchMaxTokens int           `mapstructure:"batch_max_tokens"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Seed           int64         `mapstructure:"seed"`
	Delimiter      string        `mapstructure:"delimiter"`
	TemplatePrefix string        `mapstructure:"template_prefix"`
	TemplateSuffix string        `mapstructure:"template_suffix"`
	Concurrency    int           `mapstructure:"concurrency"`
	Verbose        bool          `mapstructure:"verbose"`
	LogJSON        bool          `mapstructure:"log_json"`

	OpenAIKey    string `mapstructure:"openai_api_key"`
	GeminiKey    string `mapstructure:"gemini_api_key"`
	AnthropicKey string `mapstructure:"anthropic_api_key"`
	OllamaHost   string `mapstructure:"ollama_host"`
	// BaseURL overrides the endpoint of the selected engine.
	BaseURL string `mapstructure:"base_url"`

	Prices stats.Prices        `mapstructure:"prices"`
	Rubric map[string]float64 `mapstructure:"rubric"`
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
	v.SetDefault(KeyEngine, string(chat.ChatGPT))
	v.SetDefault(KeyBatchSize, 16)
	v.SetDefault(KeyRetryDelay, 500*time.Millisecond)
	v.SetDefault(KeySeed, chat.DefaultSeed)
	v.SetDefault(KeyDelimiterFlat, flatjson.DefaultDelimiter)
	v.SetDefault(KeyPrefix, placeholder.DefaultPrefix)
	v.SetDefault(KeySuffix, placeholder.DefaultSuffix)
	v.SetDefault(KeyConcurrency, 2)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_", "-", "_"))
	v.AutomaticEnv()

	// Provider credentials keep their conventional names.
	_ = v.BindEnv(KeyOpenAIKey, EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv(KeyGeminiKey, EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv(KeyAnthropicKey, EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv(KeyOllamaHost, EnvPrefix+"_OLLAMA_HOST", "OLLAMA_HOSTNAME")
	return v
}

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads file, or batchtran.yaml from the working directory and
// $HOME/.config/batchtran when file is empty, and resolves the
// configuration. A missing default config file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("batchtran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "batchtran"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	engine, err := chat.ParseEngine(c.EngineName)
	if err != nil {
		return nil, err
	}
	c.Engine = engine

	def := chat.Defaults(engine)
	if c.Model == "" {
		c.Model = def.Model
	}
	if !v.IsSet(KeyRateLimit) {
		c.RateLimit = def.RateLimit
	}
	if c.BatchMaxTokens <= 0 {
		c.BatchMaxTokens = def.BatchMaxTokens
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyBatchSize, c.BatchSize)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}

	prices := stats.DefaultPrices()
	for model, p := range c.Prices {
		prices[model] = p
	}
	c.Prices = prices

	if _, err := c.RubricTable(); err != nil {
		return nil, err
	}
	return &c, nil
}

// APIKey returns the credential of the selected engine.
func (c *Config) APIKey() string {
	switch c.Engine {
	case chat.Gemini:
		return c.GeminiKey
	case chat.Claude:
		return c.AnthropicKey
	case chat.Ollama:
		return ""
	default:
		return c.OpenAIKey
	}
}

// Endpoint returns the base URL of the selected engine, empty for the
// backend default.
func (c *Config) Endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Engine == chat.Ollama {
		return c.OllamaHost
	}
	return ""
}

// ChatOptions returns the options of a backend session for this
// configuration.
func (c *Config) ChatOptions() chat.Options {
	return chat.Options{
		Engine:    c.Engine,
		Model:     c.Model,
		APIKey:    c.APIKey(),
		BaseURL:   c.Endpoint(),
		RateLimit: c.RateLimit,
		Seed:      c.Seed,
	}
}

// Matcher returns the placeholder matcher for the configured delimiters.
func (c *Config) Matcher() *placeholder.Matcher {
	return placeholder.New(c.TemplatePrefix, c.TemplateSuffix)
}

// RubricTable returns the default rubric with configured maxima applied.
func (c *Config) RubricTable() (rubric.Rubric, error) {
	r, err := rubric.Default().WithMaxima(c.Rubric)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyRubric, err)
	}
	return r, nil
}
