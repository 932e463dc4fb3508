// Package config materializes the process configuration into an immutable
// Settings value. It is constructed once in the cmd layer and handed to
// every component constructor; nothing below the cmd layer reads viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLM providers accepted for llm.provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Storage backends accepted for storage.type.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// ModelAuto asks the bot to pick a model from the backend's installed list.
const ModelAuto = "auto"

// ImageProviderStableDiffusion is the only diffusion backend currently wired.
const ImageProviderStableDiffusion = "stable_diffusion"

type TelegramSettings struct {
	BotToken          string
	WebhookURL        string
	WebhookListenAddr string
	MaxConnections    int
	PollTimeout       time.Duration
	MaxConcurrency    int
}

type LLMSettings struct {
	Provider       string
	Model          string
	Endpoint       string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	TopP           float64
	AutoSelect     bool
	MaxHistory     int
	RequestTimeout time.Duration
}

type ImageSettings struct {
	Enabled     bool
	Provider    string
	Model       string
	Endpoint    string
	OutputDir   string
	SafetyCheck bool
}

type StorageSettings struct {
	Type             string
	DataDir          string
	RedisAddr        string
	MaxConversations int
}

// ConversationsDir is where the file backend keeps per-chat JSON documents.
func (s StorageSettings) ConversationsDir() string {
	return filepath.Join(s.DataDir, "conversations")
}

// StateDir holds runtime state such as the poll offset snapshot.
func (s StorageSettings) StateDir() string {
	return filepath.Join(s.DataDir, "state")
}

// SQLitePath is the database file used by the sqlite backend.
func (s StorageSettings) SQLitePath() string {
	return filepath.Join(s.DataDir, "alice.sqlite")
}

type AppSettings struct {
	Debug            bool
	LogLevel         string
	LogFormat        string
	LogFile          string
	RateLimit        int
	TelemetryEnabled bool

	// CharacterFile points at a persona markdown file; empty means the
	// built-in persona.
	CharacterFile string
}

// Settings is the process-wide configuration. The value is read-only after
// FromViper returns.
type Settings struct {
	Telegram TelegramSettings
	LLM      LLMSettings
	Image    ImageSettings
	Storage  StorageSettings
	App      AppSettings
}

// FromViper reads, normalizes, and validates the full configuration.
// Validation failures here are fatal: the process must not start with a
// missing bot token or an unknown enum value. Numeric ranges are clamped,
// not rejected.
func FromViper(v *viper.Viper) (Settings, error) {
	s := Settings{
		Telegram: TelegramSettings{
			BotToken:          strings.TrimSpace(v.GetString("telegram.bot_token")),
			WebhookURL:        strings.TrimSpace(v.GetString("telegram.webhook_url")),
			WebhookListenAddr: strings.TrimSpace(v.GetString("telegram.webhook_listen_addr")),
			MaxConnections:    v.GetInt("telegram.max_connections"),
			PollTimeout:       v.GetDuration("telegram.poll_timeout"),
			MaxConcurrency:    v.GetInt("telegram.max_concurrency"),
		},
		LLM: LLMSettings{
			Provider:       strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Model:          strings.TrimSpace(v.GetString("llm.model")),
			Endpoint:       strings.TrimSpace(v.GetString("llm.endpoint")),
			APIKey:         strings.TrimSpace(v.GetString("llm.api_key")),
			Temperature:    v.GetFloat64("llm.temperature"),
			MaxTokens:      v.GetInt("llm.max_tokens"),
			TopP:           v.GetFloat64("llm.top_p"),
			AutoSelect:     v.GetBool("llm.auto_select"),
			MaxHistory:     v.GetInt("llm.max_history"),
			RequestTimeout: v.GetDuration("llm.request_timeout"),
		},
		Image: ImageSettings{
			Enabled:     v.GetBool("image.enabled"),
			Provider:    strings.ToLower(strings.TrimSpace(v.GetString("image.provider"))),
			Model:       strings.TrimSpace(v.GetString("image.model")),
			Endpoint:    strings.TrimSpace(v.GetString("image.endpoint")),
			OutputDir:   strings.TrimSpace(v.GetString("image.output_dir")),
			SafetyCheck: v.GetBool("image.safety_check"),
		},
		Storage: StorageSettings{
			Type:             strings.ToLower(strings.TrimSpace(v.GetString("storage.type"))),
			DataDir:          strings.TrimSpace(v.GetString("storage.data_dir")),
			RedisAddr:        strings.TrimSpace(v.GetString("storage.redis_addr")),
			MaxConversations: v.GetInt("storage.max_conversations"),
		},
		App: AppSettings{
			Debug:            v.GetBool("debug"),
			LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("logging.level"))),
			LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("logging.format"))),
			LogFile:          strings.TrimSpace(v.GetString("logging.file")),
			RateLimit:        v.GetInt("rate_limit"),
			TelemetryEnabled: v.GetBool("telemetry.enabled"),
			CharacterFile:    strings.TrimSpace(v.GetString("character.file")),
		},
	}

	s = normalize(s)
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func normalize(s Settings) Settings {
	if s.Telegram.WebhookListenAddr == "" {
		s.Telegram.WebhookListenAddr = ":8443"
	}
	if s.Telegram.MaxConnections <= 0 {
		s.Telegram.MaxConnections = 40
	}
	// Telegram caps setWebhook max_connections at 100.
	if s.Telegram.MaxConnections > 100 {
		s.Telegram.MaxConnections = 100
	}
	if s.Telegram.PollTimeout <= 0 {
		s.Telegram.PollTimeout = 30 * time.Second
	}
	if s.Telegram.MaxConcurrency <= 0 {
		s.Telegram.MaxConcurrency = 3
	}

	if s.LLM.Provider == "" {
		s.LLM.Provider = ProviderOllama
	}
	if s.LLM.Model == "" {
		s.LLM.Model = ModelAuto
	}
	if s.LLM.Temperature < 0 {
		s.LLM.Temperature = 0
	}
	if s.LLM.Temperature > 1 {
		s.LLM.Temperature = 1
	}
	if s.LLM.MaxTokens <= 0 {
		s.LLM.MaxTokens = 200
	}
	if s.LLM.TopP <= 0 || s.LLM.TopP > 1 {
		s.LLM.TopP = 0.9
	}
	if s.LLM.MaxHistory <= 0 {
		s.LLM.MaxHistory = 10
	}
	if s.LLM.RequestTimeout <= 0 {
		s.LLM.RequestTimeout = 60 * time.Second
	}

	if s.Image.Provider == "" {
		s.Image.Provider = ImageProviderStableDiffusion
	}
	if s.Image.OutputDir == "" {
		s.Image.OutputDir = filepath.Join("data", "generated_images")
	}

	if s.Storage.Type == "" {
		s.Storage.Type = StorageMemory
	}
	if s.Storage.DataDir == "" {
		s.Storage.DataDir = "data"
	}
	if s.Storage.RedisAddr == "" {
		s.Storage.RedisAddr = "127.0.0.1:6379"
	}
	if s.Storage.MaxConversations <= 0 {
		s.Storage.MaxConversations = 1000
	}

	if s.App.LogLevel == "" {
		s.App.LogLevel = "info"
	}
	if s.App.Debug {
		s.App.LogLevel = "debug"
	}
	if s.App.LogFormat == "" {
		s.App.LogFormat = "text"
	}
	if s.App.RateLimit < 0 {
		s.App.RateLimit = 0
	}
	return s
}

func (s Settings) validate() error {
	if s.Telegram.BotToken == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --bot-token or BOT_TOKEN)")
	}
	switch s.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("unknown llm.provider %q (valid: ollama, openai, anthropic, none)", s.LLM.Provider)
	}
	switch s.Storage.Type {
	case StorageMemory, StorageFile, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage.type %q (valid: memory, file, redis, sqlite)", s.Storage.Type)
	}
	if s.Image.Provider != ImageProviderStableDiffusion {
		return fmt.Errorf("unknown image.provider %q (valid: stable_diffusion)", s.Image.Provider)
	}
	return nil
}
