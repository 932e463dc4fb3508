package bot

import (
	"context"
	"time"

	"github.com/dimanchick22/alicebot/conversation"
)

// jobTimeout bounds one job end to end, including a diffusion round trip.
const jobTimeout = 5 * time.Minute

type jobKind int

const (
	// jobText is a free-text message routed through the reply pipeline.
	jobText jobKind = iota
	// jobMedia is a non-text message; Text carries the media kind.
	jobMedia
	// jobImageCommand is an explicit /image request; errors go to the user.
	jobImageCommand
	// jobImageReply is an image prompt extracted from a reply or greeting;
	// errors are logged, never surfaced.
	jobImageReply
)

type job struct {
	Kind     jobKind
	ChatID   int64
	Text     string
	UserName string
	Version  uint64
}

// chatWorker serializes one chat's jobs. Version is bumped on /clear and
// /switch so jobs queued before the reset do not write stale history.
type chatWorker struct {
	Jobs    chan job
	Version uint64
}

// getOrStartWorkerLocked returns the chat's worker, starting one on first
// use. Caller holds b.mu.
func (b *Bot) getOrStartWorkerLocked(chatID int64) *chatWorker {
	if w, ok := b.workers[chatID]; ok && w != nil {
		return w
	}
	w := &chatWorker{Jobs: make(chan job, 16)}
	b.workers[chatID] = w

	go func(chatID int64, w *chatWorker) {
		for j := range w.Jobs {
			// Global concurrency limit.
			b.sem <- struct{}{}
			func() {
				defer b.wg.Done()
				defer func() { <-b.sem }()
				b.processJob(chatID, w, j)
			}()
		}
	}(chatID, w)

	return w
}

// enqueue hands a job to the chat's worker. Per chat serial, across chats
// parallel. Returns false once shutdown has begun.
func (b *Bot) enqueue(j job) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	w := b.getOrStartWorkerLocked(j.ChatID)
	j.Version = w.Version
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Info("telegram_task_enqueued",
		"chat_id", j.ChatID,
		"kind", j.Kind.String(),
		"text_len", len(j.Text),
	)
	w.Jobs <- j
	return true
}

// shutdownWorkers stops intake, waits for queued and running jobs, then
// releases the worker goroutines.
func (b *Bot) shutdownWorkers() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	for _, w := range b.workers {
		close(w.Jobs)
	}
	b.workers = make(map[int64]*chatWorker)
	b.mu.Unlock()
}

func (k jobKind) String() string {
	switch k {
	case jobText:
		return "text"
	case jobMedia:
		return "media"
	case jobImageCommand:
		return "image_command"
	case jobImageReply:
		return "image_reply"
	default:
		return "unknown"
	}
}

func (b *Bot) processJob(chatID int64, w *chatWorker, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	switch j.Kind {
	case jobText, jobMedia:
		b.processMessageJob(ctx, chatID, w, j)
	case jobImageCommand:
		b.processImageCommand(ctx, chatID, j)
	case jobImageReply:
		b.processImageReply(ctx, chatID, j)
	}
}

func (b *Bot) processMessageJob(ctx context.Context, chatID int64, w *chatWorker, j job) {
	stopTyping := b.startTyping(ctx, chatID)
	defer stopTyping()

	userText := j.Text
	if j.Kind == jobMedia {
		userText = mediaPrompt(j.Text)
	}

	reply, imagePrompt, viaLLM := b.produceReply(ctx, chatID, j, userText)
	stopTyping()

	if err := b.api.SendMessageChunked(ctx, chatID, reply); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		return
	}
	b.metrics.RecordMessage(ctx, replySource(viaLLM))

	// Record the turns only for the conversation the reply belongs to: a
	// /clear or /switch while the job ran bumps the version, and stale
	// turns must not reappear in the fresh history.
	if j.Kind == jobText || viaLLM {
		b.mu.Lock()
		if w.Version == j.Version {
			if err := b.store.Append(ctx, chatID,
				conversation.UserTurn(userText),
				conversation.AssistantTurn(reply),
			); err != nil {
				b.logger.Warn("history_append_error", "chat_id", chatID, "error", err.Error())
			}
		}
		b.mu.Unlock()
	}

	if imagePrompt != "" && b.images != nil {
		b.enqueueFromWorker(job{Kind: jobImageReply, ChatID: chatID, Text: imagePrompt})
	}
}

// enqueueFromWorker re-queues a follow-up job without blocking the worker
// that produced it. A full queue drops the follow-up.
func (b *Bot) enqueueFromWorker(j job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	w := b.getOrStartWorkerLocked(j.ChatID)
	j.Version = w.Version
	b.wg.Add(1)
	select {
	case w.Jobs <- j:
	default:
		b.wg.Done()
		b.logger.Debug("image_reply_dropped", "chat_id", j.ChatID)
	}
}
