package bot

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dimanchick22/alicebot/internal/fsstore"
)

type offsetState struct {
	Offset    int64     `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Bot) offsetPath() string {
	return filepath.Join(b.cfg.Storage.StateDir(), "telegram_offset.json")
}

// loadOffset restores the last confirmed getUpdates offset so a restart
// does not replay already-answered messages. Any load problem starts from
// zero.
func (b *Bot) loadOffset() int64 {
	var st offsetState
	ok, err := fsstore.ReadJSON(b.offsetPath(), &st)
	if err != nil {
		b.logger.Warn("telegram_offset_load_error", "error", err.Error())
		return 0
	}
	if !ok {
		return 0
	}
	return st.Offset
}

func (b *Bot) saveOffset(offset int64) {
	st := offsetState{Offset: offset, UpdatedAt: time.Now().UTC()}
	if err := fsstore.WriteJSONAtomic(b.offsetPath(), st); err != nil {
		b.logger.Warn("telegram_offset_save_error", "error", err.Error())
	}
}

// runPolling drives the getUpdates long-poll loop until ctx is canceled.
// A stale webhook registration blocks polling, so it is removed first.
func (b *Bot) runPolling(ctx context.Context) error {
	if err := b.api.DeleteWebhook(ctx, false); err != nil {
		b.logger.Warn("telegram_webhook_delete_error", "error", err.Error())
	}

	offset := b.loadOffset()
	for {
		select {
		case <-ctx.Done():
			b.saveOffset(offset)
			return nil
		default:
		}

		updates, nextOffset, err := b.api.Updates(ctx, offset, b.cfg.Telegram.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.saveOffset(offset)
				return nil
			}
			b.logger.Warn("telegram_get_updates_error", "error", err.Error())
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				b.saveOffset(offset)
				return nil
			}
			continue
		}

		for _, u := range updates {
			b.handleUpdate(ctx, u)
		}
		if nextOffset != offset {
			offset = nextOffset
			b.saveOffset(offset)
		}
	}
}
