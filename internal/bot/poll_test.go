package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOffsetRoundTrip(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)

	if got := tb.bot.loadOffset(); got != 0 {
		t.Fatalf("fresh offset = %d, want 0", got)
	}
	tb.bot.saveOffset(1234)
	if got := tb.bot.loadOffset(); got != 1234 {
		t.Fatalf("loaded offset = %d, want 1234", got)
	}
}

func TestOffsetCorruptFileStartsFromZero(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)

	path := tb.bot.offsetPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt offset: %v", err)
	}

	if got := tb.bot.loadOffset(); got != 0 {
		t.Fatalf("offset from corrupt file = %d, want 0", got)
	}
}

func TestPollingAnswersAndAdvancesOffset(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, nil)
	tb.tg.queueUpdates(textUpdate(41, 100, "/info"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tb.bot.runPolling(ctx)
	}()

	waitFor(t, "the /info reply", func() bool { return len(tb.tg.sentTexts()) == 1 })
	cancel()
	<-done

	texts := tb.tg.sentTexts()
	if !strings.Contains(texts[0].Text, "Меня зовут Алиса") {
		t.Fatalf("unexpected /info reply: %q", texts[0].Text)
	}
	if got := tb.bot.loadOffset(); got != 42 {
		t.Fatalf("persisted offset = %d, want 42", got)
	}
}
