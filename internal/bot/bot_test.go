package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dimanchick22/alicebot/character"
	"github.com/dimanchick22/alicebot/conversation"
	"github.com/dimanchick22/alicebot/internal/config"
	"github.com/dimanchick22/alicebot/internal/telegram"
	"github.com/dimanchick22/alicebot/llm"
)

type sentText struct {
	ChatID int64
	Text   string
}

type sentPhoto struct {
	ChatID  int64
	Caption string
	Size    int
}

// fakeTelegram is an httptest-backed Bot API that records outgoing calls.
type fakeTelegram struct {
	srv *httptest.Server

	mu      sync.Mutex
	texts   []sentText
	photos  []sentPhoto
	updates []telegram.Update
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{}

	mux := http.NewServeMux()
	mux.HandleFunc("/botTEST/getMe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"username":"alice_test_bot","first_name":"Алиса"}}`)
	})
	mux.HandleFunc("/botTEST/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ChatID int64  `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.texts = append(f.texts, sentText{ChatID: req.ChatID, Text: req.Text})
		f.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{}}`)
	})
	mux.HandleFunc("/botTEST/sendChatAction", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":true}`)
	})
	mux.HandleFunc("/botTEST/sendPhoto", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
		size := 0
		if file, _, err := r.FormFile("photo"); err == nil {
			raw, _ := io.ReadAll(file)
			size = len(raw)
			file.Close()
		}
		f.mu.Lock()
		f.photos = append(f.photos, sentPhoto{ChatID: chatID, Caption: r.FormValue("caption"), Size: size})
		f.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{}}`)
	})
	mux.HandleFunc("/botTEST/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		batch := f.updates
		f.updates = nil
		f.mu.Unlock()
		if len(batch) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		raw, _ := json.Marshal(batch)
		io.WriteString(w, `{"ok":true,"result":`+string(raw)+`}`)
	})
	mux.HandleFunc("/botTEST/deleteWebhook", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":true}`)
	})
	mux.HandleFunc("/botTEST/setWebhook", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":true}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) client() *telegram.Client {
	return telegram.New(f.srv.Client(), f.srv.URL, "TEST")
}

func (f *fakeTelegram) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...)
}

func (f *fakeTelegram) sentPhotos() []sentPhoto {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPhoto(nil), f.photos...)
}

// queueUpdates stages updates for the next getUpdates poll.
func (f *fakeTelegram) queueUpdates(us ...telegram.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, us...)
}

type llmCall struct {
	text string
	err  error
}

// fakeLLM replays a script of calls; the last entry repeats. started and
// gate, when set, let a test observe and hold an in-flight call.
type fakeLLM struct {
	mu      sync.Mutex
	reqs    []llm.Request
	script  []llmCall
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	call := llmCall{text: "ок"}
	if len(f.script) > 0 {
		call = f.script[0]
		if len(f.script) > 1 {
			f.script = f.script[1:]
		}
	}
	if call.err != nil {
		return llm.Result{}, call.err
	}
	return llm.Result{Text: call.text}, nil
}

func (f *fakeLLM) requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.reqs...)
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	return config.Settings{
		Telegram: config.TelegramSettings{
			BotToken:       "TEST",
			PollTimeout:    time.Second,
			MaxConnections: 40,
			MaxConcurrency: 2,
		},
		LLM: config.LLMSettings{
			Provider:       config.ProviderNone,
			Model:          "test-model",
			Temperature:    0.8,
			TopP:           0.9,
			MaxTokens:      200,
			MaxHistory:     10,
			RequestTimeout: time.Second,
		},
		Storage: config.StorageSettings{
			Type:             config.StorageMemory,
			DataDir:          t.TempDir(),
			MaxConversations: 100,
		},
	}
}

type testBot struct {
	bot   *Bot
	tg    *fakeTelegram
	store conversation.Store
}

// newTestBot wires a Bot against the fake Telegram API and a memory store.
// mut adjusts settings and deps before construction.
func newTestBot(t *testing.T, mut func(cfg *config.Settings, deps *Deps)) *testBot {
	t.Helper()
	cfg := testSettings(t)
	tg := newFakeTelegram(t)
	store := conversation.NewMemory(conversation.Limits{
		MaxTurns:         cfg.LLM.MaxHistory,
		MaxConversations: cfg.Storage.MaxConversations,
	})
	deps := Deps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		API:     tg.client(),
		Store:   store,
		Persona: character.Alice(),
	}
	if mut != nil {
		mut(&cfg, &deps)
	}
	b := New(cfg, deps)
	b.botUser = "alice_test_bot"
	return &testBot{bot: b, tg: tg, store: deps.Store}
}

// drain waits for every queued job to finish. The bot accepts no more work
// afterwards.
func (tb *testBot) drain() {
	tb.bot.shutdownWorkers()
}

func textUpdate(id, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			Chat:      &telegram.Chat{ID: chatID, Type: "private"},
			From:      &telegram.User{ID: 7, FirstName: "Дима"},
			Text:      text,
		},
	}
}

func stickerUpdate(id, chatID int64) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			Chat:      &telegram.Chat{ID: chatID, Type: "private"},
			From:      &telegram.User{ID: 7, FirstName: "Дима"},
			Sticker:   &telegram.Sticker{FileID: "st1"},
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
