package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dimanchick22/alicebot/conversation"
	"github.com/dimanchick22/alicebot/imagegen"
	"github.com/dimanchick22/alicebot/internal/config"
	"github.com/dimanchick22/alicebot/providers/ollama"
)

// fakeOllamaTags serves a fixed /api/tags model list.
func fakeOllamaTags(t *testing.T, names ...string) *ollama.Client {
	t.Helper()
	var models []string
	for _, n := range names {
		models = append(models, `{"name":"`+n+`","size":2019393189}`)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"models":[`+strings.Join(models, ",")+`]}`)
	}))
	t.Cleanup(srv.Close)
	return ollama.New(srv.URL, time.Second)
}

func seedHistory(t *testing.T, store conversation.Store, chatID int64) {
	t.Helper()
	err := store.Append(context.Background(), chatID,
		conversation.UserTurn("привет"),
		conversation.AssistantTurn("Привет-привет! 😊"),
	)
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}
}

func TestStartSendsWelcome(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/start"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(texts))
	}
	got := texts[0].Text
	if !strings.Contains(got, "Меня зовут Алиса") {
		t.Fatalf("welcome does not introduce the persona: %q", got)
	}
	if !strings.Contains(got, "Дима") {
		t.Fatalf("welcome does not address the user: %q", got)
	}
	if strings.Contains(got, "IMAGE_PROMPT") {
		t.Fatalf("image prompt leaked into the welcome: %q", got)
	}
}

func TestStartGeneratesWelcomePhoto(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		deps.Images = imagegen.NewService(gen, t.TempDir(), false)
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/start"))
	tb.drain()

	prompts := gen.prompts()
	if len(prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(prompts))
	}
	if !strings.Contains(prompts[0].Text, "waving hello") {
		t.Fatalf("unexpected welcome image prompt: %q", prompts[0].Text)
	}
	if len(tb.tg.sentPhotos()) != 1 {
		t.Fatalf("welcome photo not sent")
	}
}

func TestHelpListsAvailableCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mut         func(t *testing.T, cfg *config.Settings, deps *Deps)
		wantLines   []string
		absentLines []string
	}{
		{
			name:        "templates_only",
			mut:         nil,
			wantLines:   []string{"/start", "/question"},
			absentLines: []string{"/mode", "/models", "/image"},
		},
		{
			name: "with_llm",
			mut: func(t *testing.T, cfg *config.Settings, deps *Deps) {
				cfg.LLM.Provider = config.ProviderOpenAI
				deps.LLM = &fakeLLM{}
			},
			wantLines:   []string{"/clear", "/mode", "/stats"},
			absentLines: []string{"/models", "/switch"},
		},
		{
			name: "with_ollama",
			mut: func(t *testing.T, cfg *config.Settings, deps *Deps) {
				cfg.LLM.Provider = config.ProviderOllama
				deps.LLM = &fakeLLM{}
				deps.Ollama = fakeOllamaTags(t, "llama3.2:3b")
			},
			wantLines: []string{"/models", "/switch"},
		},
		{
			name: "with_images",
			mut: func(t *testing.T, cfg *config.Settings, deps *Deps) {
				deps.Images = imagegen.NewService(&fakeGenerator{}, t.TempDir(), false)
			},
			wantLines: []string{"/image"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var mut func(cfg *config.Settings, deps *Deps)
			if tt.mut != nil {
				mut = func(cfg *config.Settings, deps *Deps) { tt.mut(t, cfg, deps) }
			}
			tb := newTestBot(t, mut)
			tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/help"))

			texts := tb.tg.sentTexts()
			if len(texts) != 1 {
				t.Fatalf("sent %d messages, want 1", len(texts))
			}
			for _, want := range tt.wantLines {
				if !strings.Contains(texts[0].Text, want) {
					t.Fatalf("help misses %q:\n%s", want, texts[0].Text)
				}
			}
			for _, absent := range tt.absentLines {
				if strings.Contains(texts[0].Text, absent) {
					t.Fatalf("help lists unavailable %q:\n%s", absent, texts[0].Text)
				}
			}
		})
	}
}

func TestClearEmptiesHistory(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)
	seedHistory(t, tb.store, 100)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/clear"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 || texts[0].Text != "История очищена! 🧹✨" {
		t.Fatalf("unexpected /clear reply: %+v", texts)
	}
	turns, err := tb.store.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("history has %d turns after /clear, want 0", len(turns))
	}
}

func TestModeTogglesToTemplates(t *testing.T) {
	t.Parallel()

	fake := &fakeLLM{script: []llmCall{{text: "LLMTEXT"}}}
	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOpenAI
		deps.LLM = fake
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/mode"))
	tb.bot.handleUpdate(context.Background(), textUpdate(2, 100, "привет"))
	tb.drain()

	texts := tb.tg.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(texts))
	}
	if texts[0].Text != "Режим изменен на: 📝 Шаблоны" {
		t.Fatalf("toggle reply = %q", texts[0].Text)
	}
	if texts[1].Text == "LLMTEXT" {
		t.Fatalf("template mode still used the LLM")
	}
	if got := len(fake.requests()); got != 0 {
		t.Fatalf("LLM called %d times in template mode, want 0", got)
	}
}

func TestModeToggleRoundTrip(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOpenAI
		deps.LLM = &fakeLLM{}
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/mode"))
	tb.bot.handleUpdate(context.Background(), textUpdate(2, 100, "/mode"))

	texts := tb.tg.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(texts))
	}
	if texts[0].Text != "Режим изменен на: 📝 Шаблоны" || texts[1].Text != "Режим изменен на: 🤖 LLM" {
		t.Fatalf("unexpected toggle sequence: %+v", texts)
	}
}

func TestModeWithoutLLM(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/mode"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 || texts[0].Text != "LLM не подключена 🤷‍♀️" {
		t.Fatalf("unexpected /mode reply: %+v", texts)
	}
}

func TestStatsReportsState(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)
	seedHistory(t, tb.store, 100)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/stats"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(texts))
	}
	got := texts[0].Text
	for _, want := range []string{
		"🧠 LLM: отключена",
		"💾 Хранилище: ✅ memory, 1 диалогов, 2 сообщений",
		"📜 Максимум истории: 10 сообщений",
		"Режим: 📝 Шаблоны",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats misses %q:\n%s", want, got)
		}
	}
}

func TestModelsListsInstalled(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOllama
		deps.LLM = &fakeLLM{}
		deps.Ollama = fakeOllamaTags(t, "llama3.2:3b", "mistral:7b")
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/models"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(texts))
	}
	got := texts[0].Text
	if !strings.Contains(got, "llama3.2:3b") || !strings.Contains(got, "mistral:7b") {
		t.Fatalf("models list incomplete:\n%s", got)
	}
	if !strings.Contains(got, "🎯 Текущая модель: test-model") {
		t.Fatalf("models list misses the active model:\n%s", got)
	}
}

func TestModelsWithoutOllama(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(cfg *config.Settings, deps *Deps)
		want string
	}{
		{
			name: "no_llm",
			mut:  nil,
			want: "LLM не подключена 🤷‍♀️",
		},
		{
			name: "remote_provider",
			mut: func(cfg *config.Settings, deps *Deps) {
				cfg.LLM.Provider = config.ProviderOpenAI
				deps.LLM = &fakeLLM{}
			},
			want: "❌ Список моделей доступен только с Ollama",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := newTestBot(t, tt.mut)
			tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/models"))

			texts := tb.tg.sentTexts()
			if len(texts) != 1 || texts[0].Text != tt.want {
				t.Fatalf("got %+v, want %q", texts, tt.want)
			}
		})
	}
}

func TestSwitchChangesModelAndClearsHistory(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOllama
		deps.LLM = &fakeLLM{}
		deps.Ollama = fakeOllamaTags(t, "llama3.2:3b", "mistral:7b")
	})
	seedHistory(t, tb.store, 100)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/switch mistral"))

	if got := tb.bot.Model(); got != "mistral:7b" {
		t.Fatalf("active model = %q, want mistral:7b", got)
	}
	texts := tb.tg.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(texts))
	}
	if !strings.Contains(texts[0].Text, "✅ Модель изменена!") ||
		!strings.Contains(texts[0].Text, "Было: test-model") ||
		!strings.Contains(texts[0].Text, "Стало: mistral:7b") {
		t.Fatalf("unexpected /switch reply: %q", texts[0].Text)
	}
	turns, err := tb.store.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("history has %d turns after /switch, want 0", len(turns))
	}
}

func TestSwitchUnknownModel(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOllama
		deps.LLM = &fakeLLM{}
		deps.Ollama = fakeOllamaTags(t, "llama3.2:3b")
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/switch gpt-5"))

	if got := tb.bot.Model(); got != "test-model" {
		t.Fatalf("model changed to %q on a failed switch", got)
	}
	texts := tb.tg.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0].Text, "❌ Модель 'gpt-5' не найдена") {
		t.Fatalf("unexpected reply: %+v", texts)
	}
}

func TestImageCommandValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		images  bool
		command string
		want    string
	}{
		{
			name:    "disabled",
			images:  false,
			command: "/image закат",
			want:    "❌ Генерация изображений недоступна",
		},
		{
			name:    "missing_description",
			images:  true,
			command: "/image",
			want:    "📝 Использование: /image <описание>\n\nПример: /image красивый закат над морем",
		},
		{
			name:    "description_too_long",
			images:  true,
			command: "/image " + strings.Repeat("ы", 501),
			want:    "❌ Описание слишком длинное (максимум 500 символов)",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
				if tt.images {
					deps.Images = imagegen.NewService(&fakeGenerator{}, t.TempDir(), false)
				}
			})
			tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, tt.command))

			texts := tb.tg.sentTexts()
			if len(texts) != 1 {
				t.Fatalf("sent %d messages, want 1", len(texts))
			}
			if texts[0].Text != tt.want {
				t.Fatalf("got %q, want %q", texts[0].Text, tt.want)
			}
		})
	}
}

func TestImageCommandSendsPhotoWithCaption(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		deps.Images = imagegen.NewService(gen, t.TempDir(), false)
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/image закат над морем"))
	tb.drain()

	texts := tb.tg.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want the status only: %+v", len(texts), texts)
	}
	if texts[0].Text != "🎨 Генерирую изображение... Это может занять несколько минут" {
		t.Fatalf("status message = %q", texts[0].Text)
	}

	photos := tb.tg.sentPhotos()
	if len(photos) != 1 {
		t.Fatalf("sent %d photos, want 1", len(photos))
	}
	if photos[0].Caption != "🎨 Промпт: закат над морем\n⏱️ Время: 1.5с" {
		t.Fatalf("caption = %q", photos[0].Caption)
	}
	if photos[0].Size == 0 {
		t.Fatalf("photo upload is empty")
	}
	if got := gen.prompts(); len(got) != 1 || got[0].Text != "закат над морем" {
		t.Fatalf("generator prompts = %+v", got)
	}
}

func TestImageCommandRejectedContent(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		deps.Images = imagegen.NewService(gen, t.TempDir(), true)
	})

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/image nsfw scene"))
	tb.drain()

	texts := tb.tg.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("sent %d messages, want status plus rejection", len(texts))
	}
	if texts[1].Text != "❌ Описание не прошло проверку. Попробуй другое!" {
		t.Fatalf("rejection reply = %q", texts[1].Text)
	}
	if len(gen.prompts()) != 0 {
		t.Fatalf("backend called for a rejected prompt")
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)

	tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, "/frobnicate"))

	texts := tb.tg.sentTexts()
	if len(texts) != 1 || texts[0].Text != "🤔 Не знаю такую команду. Загляни в /help!" {
		t.Fatalf("unexpected reply: %+v", texts)
	}
}

func TestResolveModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		model      string
		autoSelect bool
		installed  []string
		want       string
	}{
		{
			name:      "auto_prefers_ranked",
			model:     "auto",
			installed: []string{"qwen2.5:7b", "llama3.2:3b"},
			want:      "llama3.2:3b",
		},
		{
			name:      "explicit_resolved_against_installed",
			model:     "mistral",
			installed: []string{"llama3.2:3b", "mistral:7b"},
			want:      "mistral:7b",
		},
		{
			name:      "explicit_missing_kept",
			model:     "gemma",
			installed: []string{"llama3.2:3b"},
			want:      "gemma",
		},
		{
			name:       "explicit_missing_autoselect_replaces",
			model:      "gemma",
			autoSelect: true,
			installed:  []string{"llama3.2:3b"},
			want:       "llama3.2:3b",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
				cfg.LLM.Provider = config.ProviderOllama
				cfg.LLM.Model = tt.model
				cfg.LLM.AutoSelect = tt.autoSelect
				deps.LLM = &fakeLLM{}
				deps.Ollama = fakeOllamaTags(t, tt.installed...)
			})
			tb.bot.resolveModel(context.Background())
			if got := tb.bot.Model(); got != tt.want {
				t.Fatalf("resolved model = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveModelRemoteProviders(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderOpenAI
		cfg.LLM.Model = "auto"
		deps.LLM = &fakeLLM{}
	})
	tb.bot.resolveModel(context.Background())
	if got := tb.bot.Model(); got != "gpt-4o-mini" {
		t.Fatalf("resolved model = %q, want gpt-4o-mini", got)
	}

	tb = newTestBot(t, func(cfg *config.Settings, deps *Deps) {
		cfg.LLM.Provider = config.ProviderAnthropic
		cfg.LLM.Model = "claude-3-7-sonnet-latest"
		deps.LLM = &fakeLLM{}
	})
	tb.bot.resolveModel(context.Background())
	if got := tb.bot.Model(); got != "claude-3-7-sonnet-latest" {
		t.Fatalf("explicit remote model replaced with %q", got)
	}
}

func TestCommandAddressing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		command   string
		wantReply bool
	}{
		{name: "own_suffix", command: "/clear@alice_test_bot", wantReply: true},
		{name: "own_suffix_mixed_case", command: "/clear@Alice_Test_Bot", wantReply: true},
		{name: "foreign_suffix", command: "/clear@other_bot", wantReply: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tb := newTestBot(t, nil)
			tb.bot.handleUpdate(context.Background(), textUpdate(1, 100, tt.command))

			texts := tb.tg.sentTexts()
			if tt.wantReply && len(texts) != 1 {
				t.Fatalf("sent %d messages, want 1", len(texts))
			}
			if !tt.wantReply && len(texts) != 0 {
				t.Fatalf("replied to a command addressed elsewhere: %+v", texts)
			}
		})
	}
}
