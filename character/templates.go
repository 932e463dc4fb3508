package character

import (
	"math/rand"
	"strings"
)

type templateReply struct {
	text        string
	imagePrompt string
}

type templateRule struct {
	keywords []string
	mood     string
	scene    string
	replies  []templateReply
}

func (r templateRule) matches(lower string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Rules are checked in order; the first match wins. Keyword matching is
// substring-based over the lowercased message.
var templateRules = []templateRule{
	{
		keywords: []string{"привет", "хай", "hello", "йо", "здарова"},
		mood:     "веселая",
		scene:    "приветствие",
		replies: []templateReply{
			{"Привет-привет, {name}! 😊 Как дела? Что хорошего происходит в твоей жизни?",
				"young woman waving enthusiastically, bright smile, casual greeting"},
			{"Йо, {name}! 🤗 Рада тебя видеть! Расскажи, как прошел день?",
				"cheerful girl saying hello, happy expression, friendly atmosphere"},
			{"Хеллоу! 👋 {name}, ты как раз вовремя! Думала о чем поговорить, а тут ты! Какие планы?",
				"excited young woman, thoughtful but happy mood, welcoming gesture"},
		},
	},
	{
		keywords: []string{"грустно", "плохо", "расстроен", "печально", "депресс"},
		mood:     "сочувствующая",
		scene:    "утешение",
		replies: []templateReply{
			{"Ой, не грусти! 🤗 Расскажи мне, что случилось? Я хорошо слушаю и всегда готова поддержать!",
				"caring young woman, gentle expression, comforting gesture, warm lighting"},
			{"Эй, {name}... 💕 Что-то тебя расстроило? Давай поговорим об этом, может станет легче?",
				"empathetic girl, soft concerned look, reaching out supportively"},
			{"Хм, слышу грустные нотки... 😔 А что если попробуем это исправить? Расскажи, что тебя беспокоит?",
				"young woman listening intently, caring expression, intimate conversation setting"},
		},
	},
	{
		keywords: []string{"отлично", "супер", "классно", "круто", "здорово"},
		mood:     "восхищенная",
		scene:    "радость",
		replies: []templateReply{
			{"Вау, как здорово! 🎉 Я так рада за тебя! Обязательно расскажи подробности!",
				"excited young woman celebrating, joyful expression, energetic pose"},
			{"Ого, это же потрясающе! ✨ А что именно тебя так вдохновило? Поделись энергией!",
				"amazed cheerful girl, sparkling eyes, enthusiastic gesture"},
			{"Класс! 🌟 Мне нравятся такие позитивные люди! Что еще крутого планируешь?",
				"vibrant young woman, big smile, positive energy, bright atmosphere"},
		},
	},
	{
		keywords: []string{"скучно", "нечего делать", "занят"},
		mood:     "игривая",
		scene:    "развлечения",
		replies: []templateReply{
			{"Скучно? Это же преступление! 😄 Давай что-нибудь придумаем! Может, сыграем в вопросы?",
				"playful young woman, mischievous smile, thinking pose, fun atmosphere"},
			{"А давай развеем скуку! 🎭 Расскажи мне самую странную вещь, которая случилась с тобой на этой неделе!",
				"curious girl with playful expression, gesturing excitedly, colorful background"},
			{"Нечего делать? А я как раз думала о путешествиях! 🌍 Куда бы ты отправился прямо сейчас?",
				"dreamy young woman, thoughtful expression, travel-inspired background"},
		},
	},
	{
		keywords: []string{"спасибо", "благодарю", "пасибо"},
		mood:     "довольная",
		scene:    "благодарность",
		replies: []templateReply{
			{"Ой, пожалуйста! 💖 Мне было приятно! А теперь расскажи, что дальше планируешь?",
				"grateful young woman, warm smile, gentle expression, cozy setting"},
			{"Не за что! 😊 Я всегда рада помочь! Кстати, а что тебя еще интересует?",
				"helpful cheerful girl, caring gesture, friendly atmosphere"},
			{"Рада стараться! ✨ А ты часто благодаришь людей? Мне нравятся вежливые люди!",
				"pleased young woman, appreciative expression, positive vibe"},
		},
	},
	{
		keywords: []string{"пока", "до свидания", "бай"},
		mood:     "грустная",
		scene:    "прощание",
		replies: []templateReply{
			{"Ох, уже уходишь? 😢 Было так классно общаться! Когда снова увидимся?",
				"sad young woman waving goodbye, longing expression, melancholic atmosphere"},
			{"До встречи! 👋 Надеюсь, скоро поговорим еще! Что будешь делать дальше?",
				"girl saying farewell, bittersweet smile, waving gesture"},
			{"Пока-пока! 💫 Было супер! А напоследок - расскажи, что больше всего запомнилось из нашей беседы?",
				"cheerful goodbye, nostalgic but positive expression, friendly wave"},
		},
	},
	{
		keywords: []string{"кто ты", "расскажи о себе", "что ты"},
		mood:     "кокетливая",
		scene:    "знакомство",
		replies: []templateReply{
			{"Я {bot}! 😊 {age} лет, обожаю музыку и интересных людей! А ты что за человек, {name}?",
				"confident young woman introducing herself, charming smile, casual pose"},
			{"Я просто живая девчонка, которая любит общаться! 🌸 А что тебя во мне заинтересовало?",
				"mysterious young woman, intriguing expression, slightly flirtatious pose"},
			{"Хм, любопытный! 😄 Я {bot}, и мне нравится узнавать людей! Расскажи лучше о себе!",
				"curious girl with questioning look, engaging expression, intimate setting"},
		},
	},
}

// defaultRule answers anything no keyword rule matched, so the responder
// is total.
var defaultRule = templateRule{
	mood:  "заинтересованная",
	scene: "беседа",
	replies: []templateReply{
		{"Интересно! 🤔 А расскажи больше подробностей! Мне правда любопытно!",
			"engaged young woman listening intently, curious expression, focused attention"},
		{"Ого, звучит круто! ✨ А что ты по этому поводу думаешь? Какие ощущения?",
			"fascinated girl, bright interested eyes, leaning forward in conversation"},
		{"Вау! 🌟 Никогда не слышала такого! А что было дальше? Рассказывай!",
			"amazed young woman, surprised expression, encouraging gesture"},
		{"Хм, а я вот что думаю... 💭 Но сначала скажи, а ты часто об этом размышляешь?",
			"thoughtful girl, contemplative mood, philosophical conversation setting"},
	},
}

// Respond is the template fallback. It matches keyword rules over the
// lowercased message, updates the chat's mood and scene, and returns the
// reply text plus the image prompt paired with it.
func (p Persona) Respond(message, userName string, st *State) (string, string) {
	lower := strings.ToLower(message)
	rule := defaultRule
	for _, r := range templateRules {
		if r.matches(lower) {
			rule = r
			break
		}
	}
	if st != nil {
		st.Mood = rule.mood
		st.Scene = rule.scene
	}
	reply := rule.replies[rand.Intn(len(rule.replies))]
	return p.render(reply.text, userName), reply.imagePrompt
}

var starters = []templateReply{
	{"Кстати, а что ты думаешь о современной музыке? 🎵 Есть любимые исполнители?",
		"young woman with headphones, music theme, curious expression"},
	{"А ты когда-нибудь мечтал просто взять и уехать куда-то далеко? 🌍 Куда бы поехал?",
		"dreamy girl looking at horizon, travel mood, adventure feeling"},
	{"Интересно, а какой у тебя был самый счастливый день в жизни? 😊 Поделишься?",
		"happy young woman reminiscing, joyful expression, warm memories"},
	{"А что тебя сейчас больше всего вдохновляет в жизни? ✨ Мне правда интересно!",
		"inspired girl, dreamy expression, creative atmosphere"},
	{"Если бы у тебя была суперсила, какую бы выбрал? 🦸‍♀️ И что бы с ней делал?",
		"playful young woman in superhero pose, imaginative setting"},
}

// Starter picks a random conversation opener for /question.
func (p Persona) Starter() (string, string) {
	s := starters[rand.Intn(len(starters))]
	return s.text, s.imagePrompt
}

var errorReplies = []string{
	"Упс! 🙈 Что-то с моими мыслями... Попробуй еще раз!",
	"Хм, кажется я задумалась 🤔 Повтори, пожалуйста?",
	"Ой, произошла небольшая ошибка 😅 Давай еще раз!",
	"Моя нейросеть немного подвисла 🤖 Попробуй снова!",
}

// ErrorReply is the in-character apology sent when processing fails.
func (p Persona) ErrorReply() string {
	return errorReplies[rand.Intn(len(errorReplies))]
}

var mediaReplies = map[string][]string{
	"sticker": {"Классный стикер! 😄", "Люблю стикеры! 🤩"},
	"photo":   {"Красивое фото! 📸✨", "Вау! 🤩"},
	"voice":   {"Получила голосовое! 🎤 Но пока не понимаю речь 😅"},
	"video":   {"Интересное видео! 🎥", "Классно! ✨"},
}

var mediaDefaultReplies = []string{"Получила файл! 📎", "Спасибо! 😊"}

// MediaReply reacts to a non-text message by media kind (sticker, photo,
// voice, video; anything else counts as a file). Nothing is downloaded.
func (p Persona) MediaReply(kind string) string {
	replies, ok := mediaReplies[kind]
	if !ok {
		replies = mediaDefaultReplies
	}
	return replies[rand.Intn(len(replies))]
}
