// Package bot is the Telegram runtime: update intake over long polling or a
// webhook, per-chat serialized workers with a global concurrency cap, the
// LLM reply pipeline with its template fallback, and the slash-command
// surface.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimanchick22/alicebot/character"
	"github.com/dimanchick22/alicebot/conversation"
	"github.com/dimanchick22/alicebot/imagegen"
	"github.com/dimanchick22/alicebot/internal/config"
	"github.com/dimanchick22/alicebot/internal/ratelimit"
	"github.com/dimanchick22/alicebot/internal/retryutil"
	"github.com/dimanchick22/alicebot/internal/telegram"
	"github.com/dimanchick22/alicebot/internal/telemetry"
	"github.com/dimanchick22/alicebot/llm"
	"github.com/dimanchick22/alicebot/providers/ollama"
)

// Deps are the constructed collaborators. LLM is nil for the none provider,
// Ollama is non-nil only for the ollama provider, Images is nil when image
// generation is disabled, Telemetry is nil when telemetry is off.
type Deps struct {
	Logger    *slog.Logger
	API       *telegram.Client
	Store     conversation.Store
	Persona   character.Persona
	LLM       llm.Client
	Ollama    *ollama.Client
	Images    *imagegen.Service
	Telemetry *telemetry.Telemetry
}

type Bot struct {
	cfg     config.Settings
	logger  *slog.Logger
	api     *telegram.Client
	store   conversation.Store
	persona character.Persona
	llm     llm.Client
	ollama  *ollama.Client
	images  *imagegen.Service
	metrics *telemetry.Telemetry
	limiter *ratelimit.PerChat

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	workers  map[int64]*chatWorker
	states   map[int64]*character.State
	template map[int64]bool
	model    string

	llmReady atomic.Bool
	botUser  string
}

func New(cfg config.Settings, deps Deps) *Bot {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:      cfg,
		logger:   logger,
		api:      deps.API,
		store:    deps.Store,
		persona:  deps.Persona,
		llm:      deps.LLM,
		ollama:   deps.Ollama,
		images:   deps.Images,
		metrics:  deps.Telemetry,
		limiter:  ratelimit.NewPerChat(cfg.App.RateLimit, time.Minute),
		sem:      make(chan struct{}, cfg.Telegram.MaxConcurrency),
		workers:  make(map[int64]*chatWorker),
		states:   make(map[int64]*character.State),
		template: make(map[int64]bool),
		model:    cfg.LLM.Model,
	}
}

// Run blocks until ctx is canceled. Intake stops first, then queued jobs
// drain before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.Me(ctx)
	if err != nil {
		return err
	}
	b.botUser = me.Username

	b.resolveModel(ctx)
	b.probeLLM(ctx)

	b.logger.Info("telegram_start",
		"bot_username", b.botUser,
		"bot_id", me.ID,
		"provider", b.cfg.LLM.Provider,
		"model", b.Model(),
		"llm_ready", b.llmReady.Load(),
		"images_enabled", b.images != nil,
		"poll_timeout", b.cfg.Telegram.PollTimeout.String(),
		"max_concurrency", b.cfg.Telegram.MaxConcurrency,
		"history_max_messages", b.cfg.LLM.MaxHistory,
	)

	if b.cfg.Telegram.WebhookURL != "" {
		err = b.runWebhook(ctx)
	} else {
		err = b.runPolling(ctx)
	}

	b.shutdownWorkers()
	b.logger.Info("telegram_stopped")
	return err
}

// resolveModel replaces the "auto" model sentinel with a concrete name. For
// ollama the installed list is consulted; an explicitly configured model is
// kept when installed and replaced only when AutoSelect is on and the
// backend does not have it. An unreachable backend keeps the configured
// string and the bot starts degraded. Remote providers get a fixed
// chat-tuned default.
func (b *Bot) resolveModel(ctx context.Context) {
	wantAuto := strings.EqualFold(b.cfg.LLM.Model, config.ModelAuto)

	switch b.cfg.LLM.Provider {
	case config.ProviderOllama:
		models, err := b.ollama.ListModels(ctx)
		if err != nil || len(models) == 0 {
			b.logger.Warn("llm_models_error", "provider", b.cfg.LLM.Provider, "error", errString(err))
			if wantAuto {
				retryutil.AsyncRetry(b.logger, "llm_model_select", 0, 0, func(ctx context.Context) error {
					models, err := b.ollama.ListModels(ctx)
					if err != nil {
						return err
					}
					if name, ok := ollama.SelectModel(models); ok {
						b.setModel(name)
						b.logger.Info("llm_model_selected", "model", name)
					}
					return nil
				})
			}
			return
		}
		if !wantAuto {
			if name, ok := ollama.FindModel(models, b.cfg.LLM.Model); ok {
				b.setModel(name)
				return
			}
			b.logger.Warn("llm_model_missing", "model", b.cfg.LLM.Model)
			if !b.cfg.LLM.AutoSelect {
				return
			}
		}
		if name, ok := ollama.SelectModel(models); ok {
			b.setModel(name)
			b.logger.Info("llm_model_selected", "model", name)
		}
	case config.ProviderOpenAI:
		if wantAuto {
			b.setModel("gpt-4o-mini")
		}
	case config.ProviderAnthropic:
		if wantAuto {
			b.setModel("claude-3-5-haiku-latest")
		}
	}
}

// probeLLM sets the availability flag shown by /stats. Dispatch never
// consults it; every message tries the LLM again.
func (b *Bot) probeLLM(ctx context.Context) {
	switch b.cfg.LLM.Provider {
	case config.ProviderNone:
		b.llmReady.Store(false)
	case config.ProviderOllama:
		err := b.ollama.CheckRunning(ctx)
		b.llmReady.Store(err == nil)
		if err != nil {
			b.logger.Warn("llm_probe_error", "provider", b.cfg.LLM.Provider, "error", err.Error())
			retryutil.AsyncRetry(b.logger, "llm_probe", 0, 0, func(ctx context.Context) error {
				if err := b.ollama.CheckRunning(ctx); err != nil {
					return err
				}
				b.llmReady.Store(true)
				return nil
			})
		}
	default:
		// Remote providers are assumed reachable until a call fails.
		b.llmReady.Store(true)
	}
}

// Model is the active model name. /switch changes it at runtime.
func (b *Bot) Model() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

func (b *Bot) setModel(name string) {
	b.mu.Lock()
	b.model = name
	b.mu.Unlock()
}

// withState runs fn with the chat's persona state. States are mutated from
// both the intake goroutine and workers, so access stays under b.mu.
func (b *Bot) withState(chatID int64, fn func(st *character.State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[chatID]
	if !ok {
		fresh := character.NewState()
		st = &fresh
		b.states[chatID] = st
	}
	fn(st)
}

// templateMode reports whether the chat toggled /mode to template replies.
func (b *Bot) templateMode(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.template[chatID]
}

// toggleTemplateMode flips the chat's reply mode and reports whether
// template mode is now active.
func (b *Bot) toggleTemplateMode(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.template[chatID] = !b.template[chatID]
	return b.template[chatID]
}

// resetChat clears stored history and bumps the worker version so in-flight
// jobs for the old conversation do not append to the new one.
func (b *Bot) resetChat(ctx context.Context, chatID int64) error {
	b.mu.Lock()
	if w, ok := b.workers[chatID]; ok && w != nil {
		w.Version++
	}
	err := b.store.Clear(ctx, chatID)
	b.mu.Unlock()
	return err
}

func (b *Bot) startTyping(ctx context.Context, chatID int64) func() {
	return telegram.StartTypingTicker(ctx, b.api, chatID, 4*time.Second)
}

func errString(err error) string {
	if err == nil {
		return "empty model list"
	}
	return err.Error()
}
