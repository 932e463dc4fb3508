package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dimanchick22/alicebot/character"
	"github.com/dimanchick22/alicebot/imagegen"
	"github.com/dimanchick22/alicebot/internal/telegram"
	"github.com/dimanchick22/alicebot/llm"
)

const rateLimitReply = "Эй, помедленнее! 😅 Дай мне секундочку перевести дух!"

// handleUpdate routes one update: slash commands are answered inline, text
// and media go through the rate limit to the chat's worker.
func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.TextOrCaption())
	userName := callerName(msg)

	if strings.HasPrefix(text, "/") {
		cmd, args := splitCommand(text)
		b.handleCommand(ctx, chatID, userName, b.normalizeCommand(cmd), args)
		return
	}

	kind := mediaClass(msg.MediaKind())
	switch {
	case text != "":
		if !b.allowMessage(ctx, chatID) {
			return
		}
		b.enqueue(job{Kind: jobText, ChatID: chatID, Text: text, UserName: userName})
	case kind != "":
		if !b.allowMessage(ctx, chatID) {
			return
		}
		b.enqueue(job{Kind: jobMedia, ChatID: chatID, Text: kind, UserName: userName})
	}
}

// allowMessage applies the per-chat rate limit to text and media messages.
// Commands are not limited.
func (b *Bot) allowMessage(ctx context.Context, chatID int64) bool {
	if b.limiter.Allow(chatID) {
		return true
	}
	b.logger.Info("telegram_rate_limited", "chat_id", chatID)
	if err := b.api.SendMessage(ctx, chatID, rateLimitReply); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}
	return false
}

// chatLLM runs one LLM round trip: persona system prompt, stored history,
// then the new user text. ok is false on any failure, including an empty
// completion, and the caller degrades to the template responder.
func (b *Bot) chatLLM(ctx context.Context, chatID int64, userName, userText string) (string, bool) {
	history, err := b.store.Get(ctx, chatID)
	if err != nil {
		b.logger.Warn("history_load_error", "chat_id", chatID, "error", err.Error())
		history = nil
	}

	var system string
	b.withState(chatID, func(st *character.State) {
		st.Messages++
		st.UpdateRelationship()
		b.persona.RotateMood(st)
		system = b.persona.SystemPrompt(userName, *st, b.images != nil)
	})

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})

	opts := llm.Options{
		Temperature: b.cfg.LLM.Temperature,
		TopP:        b.cfg.LLM.TopP,
		MaxTokens:   b.cfg.LLM.MaxTokens,
	}.Clamp()

	start := time.Now()
	res, err := b.llm.Chat(ctx, llm.Request{Model: b.Model(), Messages: msgs, Options: opts})
	if err != nil {
		if llm.IsUnavailable(err) || llm.IsModelNotFound(err) {
			b.llmReady.Store(false)
		}
		b.logger.Warn("llm_chat_error", "chat_id", chatID, "model", b.Model(), "error", err.Error())
		b.metrics.RecordFallback(ctx)
		return "", false
	}
	if strings.TrimSpace(res.Text) == "" {
		b.logger.Warn("llm_chat_error", "chat_id", chatID, "model", b.Model(), "error", "empty completion")
		b.metrics.RecordFallback(ctx)
		return "", false
	}

	b.llmReady.Store(true)
	b.metrics.RecordLLMLatency(ctx, time.Since(start))
	return strings.TrimSpace(res.Text), true
}

// produceReply picks the reply source for a text or media job: the LLM when
// one is configured and the chat is not in template mode, the persona's
// template tables otherwise.
func (b *Bot) produceReply(ctx context.Context, chatID int64, j job, userText string) (reply, imagePrompt string, viaLLM bool) {
	if b.llm != nil && !b.templateMode(chatID) {
		if text, ok := b.chatLLM(ctx, chatID, j.UserName, userText); ok {
			reply, imagePrompt = character.ExtractImagePrompt(text)
			return reply, imagePrompt, true
		}
	}

	if j.Kind == jobMedia {
		return b.persona.MediaReply(j.Text), "", false
	}
	b.withState(chatID, func(st *character.State) {
		st.Messages++
		st.UpdateRelationship()
		reply, imagePrompt = b.persona.Respond(userText, j.UserName, st)
	})
	return reply, imagePrompt, false
}

func (b *Bot) processImageCommand(ctx context.Context, chatID int64, j job) {
	if err := b.api.SendChatAction(ctx, chatID, "upload_photo"); err != nil {
		b.logger.Debug("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}

	res, err := b.images.Generate(ctx, j.Text)
	if err != nil {
		b.logger.Warn("image_generation_failed", "chat_id", chatID, "error", err.Error())
		reply := "❌ Ошибка генерации изображения. Попробуй позже!"
		if imagegen.IsRejectedContent(err) {
			reply = "❌ Описание не прошло проверку. Попробуй другое!"
		}
		if err := b.api.SendMessage(ctx, chatID, reply); err != nil {
			b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
		return
	}

	caption := fmt.Sprintf("🎨 Промпт: %s\n⏱️ Время: %.1fс", j.Text, res.Duration.Seconds())
	if err := b.api.SendPhoto(ctx, chatID, res.Path, caption); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		return
	}
	b.logger.Info("image_generated",
		"chat_id", chatID,
		"duration", res.Duration.String(),
		"path", res.Path,
	)
}

// processImageReply renders the [IMAGE_PROMPT: ...] block that rode along
// with a reply or greeting. Best effort: failures are logged only.
func (b *Bot) processImageReply(ctx context.Context, chatID int64, j job) {
	if err := b.api.SendChatAction(ctx, chatID, "upload_photo"); err != nil {
		b.logger.Debug("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}

	res, err := b.images.Generate(ctx, j.Text)
	if err != nil {
		b.logger.Warn("image_generation_failed", "chat_id", chatID, "error", err.Error())
		return
	}
	if err := b.api.SendPhoto(ctx, chatID, res.Path, ""); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		return
	}
	b.logger.Info("image_generated",
		"chat_id", chatID,
		"duration", res.Duration.String(),
		"path", res.Path,
	)
}

// callerName is the informal name the persona addresses the user by.
func callerName(msg *telegram.Message) string {
	if msg.From == nil {
		return "друг"
	}
	if name := strings.TrimSpace(msg.From.FirstName); name != "" {
		return name
	}
	if name := strings.TrimSpace(msg.From.Username); name != "" {
		return name
	}
	return "друг"
}

// mediaClass folds Telegram media kinds into the persona's reply classes.
func mediaClass(kind string) string {
	if kind == "video_note" {
		return "video"
	}
	return kind
}

// mediaPrompt is the pseudo user message routed to the LLM for a non-text
// message. Nothing is downloaded; the model only learns the media kind.
func mediaPrompt(kind string) string {
	switch kind {
	case "sticker":
		return "Пользователь прислал стикер"
	case "photo":
		return "Пользователь прислал фото"
	case "voice":
		return "Пользователь прислал голосовое сообщение"
	case "video":
		return "Пользователь прислал видео"
	default:
		return "Пользователь прислал файл"
	}
}

func replySource(viaLLM bool) string {
	if viaLLM {
		return "llm"
	}
	return "template"
}
