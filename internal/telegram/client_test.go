package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getMe" {
			t.Errorf("path = %q, want /botTOKEN/getMe", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"username":"alice_bot","first_name":"Alice"}}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if me.ID != 42 || me.Username != "alice_bot" {
		t.Fatalf("Me() = %+v, want id=42 username=alice_bot", me)
	}
}

func TestUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "7" {
			t.Errorf("offset = %q, want 7", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"text":"hi"}},
			{"update_id":11,"message":{"message_id":2,"chat":{"id":5,"type":"private"},"text":"again"}}
		]}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	updates, next, err := c.Updates(context.Background(), 7, time.Second)
	if err != nil {
		t.Fatalf("Updates() error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(updates))
	}
	if next != 12 {
		t.Fatalf("next offset = %d, want 12", next)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "hi" {
		t.Fatalf("first update = %+v, want text hi", updates[0])
	}
}

func TestUpdatesKeepsOffsetOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	_, next, err := c.Updates(context.Background(), 7, time.Second)
	if err == nil {
		t.Fatal("Updates() error = nil, want error")
	}
	if next != 7 {
		t.Fatalf("next offset = %d, want unchanged 7", next)
	}
}

func TestSendMessageFallsBackToPlain(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var modes, texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ParseMode string `json:"parse_mode"`
			Text      string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		modes = append(modes, body.ParseMode)
		texts = append(texts, body.Text)
		mu.Unlock()
		if body.ParseMode != "" {
			http.Error(w, `{"ok":false,"description":"can't parse entities"}`, http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	if err := c.SendMessage(context.Background(), 5, "Стало: llama3.2:3b_q4"); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"MarkdownV2", ""}
	if len(modes) != len(want) {
		t.Fatalf("parse modes = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Fatalf("parse modes = %v, want %v", modes, want)
		}
	}
	if texts[0] != "Стало: llama3.2:3b\\_q4" {
		t.Fatalf("MarkdownV2 attempt text = %q, want escaped underscore", texts[0])
	}
	if texts[1] != "Стало: llama3.2:3b_q4" {
		t.Fatalf("plain fallback text = %q, want the original unescaped text", texts[1])
	}
}

func TestSendMessageChunkedKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var chunks []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		chunks = append(chunks, body.Text)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	long := strings.Repeat("привет как дела ", 300) // ~9 KB of two-byte runes
	c := New(srv.Client(), srv.URL, "TOKEN")
	if err := c.SendMessageChunked(context.Background(), 5, long); err != nil {
		t.Fatalf("SendMessageChunked() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) < 2 {
		t.Fatalf("message was not chunked: %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if !utf8.ValidString(ch) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
		if len(ch) > 3500 {
			t.Fatalf("chunk %d is %d bytes, want <= 3500", i, len(ch))
		}
	}
}

func TestSendPhoto(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG fake image bytes")
	dir := t.TempDir()
	path := filepath.Join(dir, "img_1700000000_deadbeef.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendPhoto" {
			t.Errorf("path = %q, want /botTOKEN/sendPhoto", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "5" {
			t.Errorf("chat_id = %q, want 5", got)
		}
		if got := r.FormValue("caption"); got != "Вот! 🎨" {
			t.Errorf("caption = %q, want Вот! 🎨", got)
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part: %v", err)
		} else {
			got, _ := io.ReadAll(f)
			_ = f.Close()
			if string(got) != string(png) {
				t.Errorf("photo bytes do not match fixture")
			}
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	if err := c.SendPhoto(context.Background(), 5, path, "Вот! 🎨"); err != nil {
		t.Fatalf("SendPhoto() error: %v", err)
	}
}

func TestSetWebhook(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/setWebhook" {
			t.Errorf("path = %q, want /botTOKEN/setWebhook", r.URL.Path)
		}
		var body struct {
			URL            string `json:"url"`
			MaxConnections int    `json:"max_connections"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.URL != "https://bot.example/telegram/webhook/abc" {
			t.Errorf("url = %q", body.URL)
		}
		if body.MaxConnections != 40 {
			t.Errorf("max_connections = %d, want 40", body.MaxConnections)
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	if err := c.SetWebhook(context.Background(), "https://bot.example/telegram/webhook/abc", 40); err != nil {
		t.Fatalf("SetWebhook() error: %v", err)
	}
}

func TestDeleteWebhookReportsAPIFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "TOKEN")
	err := c.DeleteWebhook(context.Background(), true)
	if err == nil {
		t.Fatal("DeleteWebhook() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("error %q does not carry the API description", err)
	}
}

func TestWebhookSecret(t *testing.T) {
	t.Parallel()

	token := "123456:ABC-secret"
	s := WebhookSecret(token)
	if len(s) != 32 {
		t.Fatalf("len(secret) = %d, want 32", len(s))
	}
	if s != WebhookSecret(token) {
		t.Fatal("secret is not stable for the same token")
	}
	if s == WebhookSecret("another:token") {
		t.Fatal("different tokens produced the same secret")
	}
	if strings.Contains(s, "ABC-secret") {
		t.Fatal("secret leaks the raw token")
	}
}

func TestEscapeMarkdownUnderscores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain_identifier",
			in:   "dolphin_llama3",
			want: "dolphin\\_llama3",
		},
		{
			name: "inside_inline_code",
			in:   "`stable_diffusion`",
			want: "`stable_diffusion`",
		},
		{
			name: "already_escaped",
			in:   "a\\_b",
			want: "a\\_b",
		},
		{
			name: "no_underscores",
			in:   "привет мир",
			want: "привет мир",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := escapeMarkdownUnderscores(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
