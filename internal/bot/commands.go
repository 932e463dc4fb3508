package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dimanchick22/alicebot/character"
	"github.com/dimanchick22/alicebot/providers/ollama"
)

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeCommand lowercases a slash command and strips an "@BotName"
// suffix. A suffix naming a different bot yields "" so group commands
// addressed elsewhere are ignored.
func (b *Bot) normalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		if b.botUser != "" && !strings.EqualFold(cmd[at+1:], b.botUser) {
			return ""
		}
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, userName, cmd, args string) {
	switch cmd {
	case "":
		// Addressed to another bot.
	case "/start":
		b.cmdStart(ctx, chatID, userName)
	case "/help":
		b.cmdHelp(ctx, chatID)
	case "/info":
		b.cmdInfo(ctx, chatID)
	case "/question":
		b.cmdQuestion(ctx, chatID)
	case "/clear":
		b.cmdClear(ctx, chatID)
	case "/mode":
		b.cmdMode(ctx, chatID)
	case "/stats":
		b.cmdStats(ctx, chatID)
	case "/models":
		b.cmdModels(ctx, chatID)
	case "/switch":
		b.cmdSwitch(ctx, chatID, args)
	case "/image":
		b.cmdImage(ctx, chatID, userName, args)
	default:
		b.send(ctx, chatID, "🤔 Не знаю такую команду. Загляни в /help!")
	}
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64, userName string) {
	var welcome string
	b.withState(chatID, func(st *character.State) {
		welcome = b.persona.Welcome(userName, st)
	})
	visible, prompt := character.ExtractImagePrompt(welcome)
	b.send(ctx, chatID, visible)
	if prompt != "" && b.images != nil {
		b.enqueue(job{Kind: jobImageReply, ChatID: chatID, Text: prompt, UserName: userName})
	}
	b.logger.Info("telegram_new_chat", "chat_id", chatID, "user", userName)
}

func (b *Bot) cmdHelp(ctx context.Context, chatID int64) {
	commands := []string{
		"/start - Познакомиться со мной",
		"/help - Показать эту справку",
		"/info - Узнать больше обо мне",
		"/question - Случайный вопрос",
	}
	if b.llm != nil {
		commands = append(commands,
			"/clear - Очистить историю",
			"/mode - Переключить режим",
			"/stats - Статистика",
		)
	}
	if b.ollama != nil {
		commands = append(commands,
			"/models - Список моделей",
			"/switch - Сменить модель",
		)
	}
	if b.images != nil {
		commands = append(commands, "/image <описание> - Генерация изображения")
	}

	text := fmt.Sprintf(`🤖 Справка по боту

Привет! Я %s, твой виртуальный друг!

Команды:
%s

Просто пиши мне сообщения! 💬`, b.persona.Name, strings.Join(commands, "\n"))
	b.send(ctx, chatID, text)
}

func (b *Bot) cmdInfo(ctx context.Context, chatID int64) {
	var text string
	b.withState(chatID, func(st *character.State) {
		text = b.persona.Info(*st)
	})
	b.send(ctx, chatID, text)
}

func (b *Bot) cmdQuestion(ctx context.Context, chatID int64) {
	question, prompt := b.persona.Starter()
	b.send(ctx, chatID, question)
	if prompt != "" && b.images != nil {
		b.enqueue(job{Kind: jobImageReply, ChatID: chatID, Text: prompt})
	}
}

func (b *Bot) cmdClear(ctx context.Context, chatID int64) {
	if err := b.resetChat(ctx, chatID); err != nil {
		b.logger.Warn("history_clear_error", "chat_id", chatID, "error", err.Error())
		b.send(ctx, chatID, b.persona.ErrorReply())
		return
	}
	b.logger.Info("history_cleared", "chat_id", chatID)
	b.send(ctx, chatID, "История очищена! 🧹✨")
}

func (b *Bot) cmdMode(ctx context.Context, chatID int64) {
	if b.llm == nil {
		b.send(ctx, chatID, "LLM не подключена 🤷‍♀️")
		return
	}
	mode := "🤖 LLM"
	if b.toggleTemplateMode(chatID) {
		mode = "📝 Шаблоны"
	}
	b.send(ctx, chatID, "Режим изменен на: "+mode)
}

func (b *Bot) cmdStats(ctx context.Context, chatID int64) {
	st, err := b.store.Stats(ctx)
	if err != nil {
		b.logger.Warn("store_stats_error", "chat_id", chatID, "error", err.Error())
		b.send(ctx, chatID, b.persona.ErrorReply())
		return
	}

	var bld strings.Builder
	bld.WriteString("📊 Статистика:\n\n")
	switch {
	case b.llm == nil:
		bld.WriteString("🧠 LLM: отключена\n")
	case b.llmReady.Load():
		fmt.Fprintf(&bld, "🧠 LLM: ✅ %s\n", b.Model())
	default:
		fmt.Fprintf(&bld, "🧠 LLM: ❌ Недоступно (%s)\n", b.Model())
	}
	if b.images != nil {
		bld.WriteString("🎨 Изображения: ✅\n")
	} else {
		bld.WriteString("🎨 Изображения: ❌ Неактивно\n")
	}
	fmt.Fprintf(&bld, "💾 Хранилище: ✅ %s, %d диалогов, %d сообщений\n", st.Backend, st.Conversations, st.Turns)
	fmt.Fprintf(&bld, "👥 Активных сегодня: %d\n", st.ActiveToday)
	fmt.Fprintf(&bld, "📜 Максимум истории: %d сообщений\n", b.cfg.LLM.MaxHistory)
	mode := "🤖 LLM"
	if b.llm == nil || b.templateMode(chatID) {
		mode = "📝 Шаблоны"
	}
	bld.WriteString("Режим: " + mode)
	b.send(ctx, chatID, bld.String())
}

func (b *Bot) cmdModels(ctx context.Context, chatID int64) {
	if b.ollama == nil {
		if b.llm == nil {
			b.send(ctx, chatID, "LLM не подключена 🤷‍♀️")
		} else {
			b.send(ctx, chatID, "❌ Список моделей доступен только с Ollama")
		}
		return
	}
	models, err := b.ollama.ListModels(ctx)
	if err != nil {
		b.logger.Warn("llm_models_error", "error", err.Error())
		b.send(ctx, chatID, "❌ Ошибка получения списка моделей")
		return
	}
	text := ollama.FormatModels(models, b.Model()) +
		fmt.Sprintf("\n\n🎯 Текущая модель: %s", b.Model())
	b.send(ctx, chatID, text)
}

func (b *Bot) cmdSwitch(ctx context.Context, chatID int64, args string) {
	if b.ollama == nil {
		if b.llm == nil {
			b.send(ctx, chatID, "LLM не подключена 🤷‍♀️")
		} else {
			b.send(ctx, chatID, "❌ Смена модели доступна только с Ollama")
		}
		return
	}

	models, err := b.ollama.ListModels(ctx)
	if err != nil {
		b.logger.Warn("llm_models_error", "error", err.Error())
		b.send(ctx, chatID, "❌ Ошибка получения списка моделей")
		return
	}

	if args == "" {
		text := ollama.FormatModels(models, b.Model()) + `

💡 Для смены модели используйте:
/switch <имя_модели>

Например:
/switch llama3.2:3b
/switch mistral`
		b.send(ctx, chatID, text)
		return
	}

	name, ok := ollama.FindModel(models, args)
	if !ok {
		var first []string
		for i := 0; i < len(models) && i < 3; i++ {
			first = append(first, models[i].Name)
		}
		b.send(ctx, chatID, fmt.Sprintf(
			"❌ Модель '%s' не найдена\n\nДоступные: %s...\nИспользуйте /models для полного списка",
			args, strings.Join(first, ", ")))
		return
	}

	old := b.Model()
	b.setModel(name)
	if err := b.resetChat(ctx, chatID); err != nil {
		b.logger.Warn("history_clear_error", "chat_id", chatID, "error", err.Error())
	}
	b.logger.Info("model_switched", "chat_id", chatID, "old", old, "new", name)
	b.send(ctx, chatID, fmt.Sprintf(
		"✅ Модель изменена!\n\nБыло: %s\nСтало: %s\n\nИстория диалога очищена 🧹", old, name))
}

func (b *Bot) cmdImage(ctx context.Context, chatID int64, userName, args string) {
	if b.images == nil {
		b.send(ctx, chatID, "❌ Генерация изображений недоступна")
		return
	}
	if args == "" {
		b.send(ctx, chatID, "📝 Использование: /image <описание>\n\nПример: /image красивый закат над морем")
		return
	}
	if utf8.RuneCountInString(args) > 500 {
		b.send(ctx, chatID, "❌ Описание слишком длинное (максимум 500 символов)")
		return
	}
	b.send(ctx, chatID, "🎨 Генерирую изображение... Это может занять несколько минут")
	b.enqueue(job{Kind: jobImageCommand, ChatID: chatID, Text: args, UserName: userName})
}

// send delivers a reply, chunking when it exceeds the Telegram size limit.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessageChunked(ctx, chatID, text); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
	}
}
