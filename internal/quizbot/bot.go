// Package quizbot runs the plant quiz in Telegram chats with inline
// keyboards. One session is kept per chat.
package quizbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	tg "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/callbacks"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/commands"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/format"
	tghelpers "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/helpers"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/diagnosis"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
)

const (
	textWelcome    = "Привет! Я Доктор Растение. Ответьте на несколько вопросов, и я подскажу, что случилось с вашим растением. Выберите тест:"
	textNoSession  = "Тест не запущен. Нажмите /quiz, чтобы начать."
	textStale      = "Этот вопрос уже пройден"
	textExpired    = "Сессия устарела, начните заново"
	textUseButtons = "Отвечайте кнопками под вопросом или нажмите /quiz."
	textNoPhotos   = "Я пока не умею ставить диагноз по фото. Пройдите тест: /quiz"
	textNoStats    = "Журнал диагнозов отключён."
	textNoQuiz     = "Такого теста нет."
	textFailed     = "Что-то пошло не так, попробуйте ещё раз."
	textStatsTitle = "Статистика диагнозов"
	textStatsEmpty = "пока нет"
	textHistory    = "Ваши последние диагнозы"
	textNoHistory  = "Вы ещё не проходили тест. Нажмите /quiz, чтобы начать."
)

// historyLimit caps the /history listing.
const historyLimit = 5

// StatsSource reads the diagnosis log.
type StatsSource interface {
	CountByResult(ctx context.Context, quizID string) ([]diagnosis.ResultCount, error)
	RecentByUser(ctx context.Context, userID int64, limit int) ([]diagnosis.Entry, error)
}

// Options configures the bot handlers.
type Options struct {
	Service   *service.Quiz
	Resolver  *assets.Resolver
	Stats     StatsSource
	WebAppURL string
}

// Bot holds the quiz handlers.
type Bot struct {
	svc       *service.Quiz
	resolver  *assets.Resolver
	stats     StatsSource
	webAppURL string
}

// New builds the handlers. A nil Stats disables /stats and /history output.
func New(opts Options) *Bot {
	r := opts.Resolver
	if r == nil {
		r = assets.NewResolver("", nil, false)
	}
	return &Bot{svc: opts.Service, resolver: r, stats: opts.Stats, webAppURL: opts.WebAppURL}
}

// Register adds the quiz commands, callbacks and fallbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":   {Handler: b.onStart, Description: "Выбрать тест"},
		"/quiz":    {Handler: b.onQuiz, Description: "Начать диагностику", Aliases: []string{"тест"}},
		"/back":    {Handler: b.onBack, Description: "Вернуться к предыдущему вопросу", Aliases: []string{"назад"}},
		"/restart": {Handler: b.onRestart, Description: "Пройти тест заново"},
		"/history": {Handler: b.onHistory, Description: "Мои последние диагнозы"},
		"/stats":   {Handler: b.onStats, Description: "Статистика диагнозов", AdminOnly: true},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}
	cbs := map[string]tele.HandlerFunc{
		keyStart:   b.onStartCallback,
		keyOption:  b.onOption,
		keyBack:    b.onBack,
		keyRestart: b.onRestart,
		keyMenu:    b.onStart,
	}
	for key, h := range cbs {
		errs = append(errs, reg.RegisterCallback(key, h))
	}
	reg.SetTextFallback(func(c tele.Context) error { return tghelpers.SendText(c, textUseButtons) })
	return errors.Join(errs...)
}

// OnMedia answers photos and documents.
func (b *Bot) OnMedia(c tele.Context) error {
	return tghelpers.SendText(c, textNoPhotos)
}

func sessionKey(c tele.Context) string {
	if chat := c.Chat(); chat != nil {
		return "chat:" + strconv.FormatInt(chat.ID, 10)
	}
	if u := c.Sender(); u != nil {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	return "anon"
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func (b *Bot) onStart(c tele.Context) error {
	if c.Callback() != nil {
		_ = c.Respond()
	}
	return b.showMenu(c)
}

func (b *Bot) showMenu(c tele.Context) error {
	s, err := menu(b.svc.Catalog(), textWelcome, b.webAppURL)
	if err != nil {
		return err
	}
	return b.show(c, s)
}

func (b *Bot) onQuiz(c tele.Context) error {
	quizID := ""
	if args := c.Args(); len(args) > 0 {
		quizID = args[0]
	}
	return b.start(c, quizID)
}

func (b *Bot) onStartCallback(c tele.Context) error {
	_ = c.Respond()
	return b.start(c, callbacks.Payload(c))
}

func (b *Bot) start(c tele.Context, quizID string) error {
	ctx := tghelpers.BuildContext(c)
	v, err := b.svc.Start(ctx, sessionKey(c), quizID, senderID(c))
	if errors.Is(err, service.ErrQuizNotFound) {
		return tghelpers.SendText(c, textNoQuiz)
	}
	if err != nil {
		return b.fail(ctx, c, "start", err)
	}
	return b.showView(c, v)
}

func (b *Bot) onOption(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	parts, err := callbacks.Parts(c, 2)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: textStale})
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: textStale})
	}

	v, err := b.svc.AnswerAt(ctx, sessionKey(c), parts[0], index)
	switch {
	case errors.Is(err, service.ErrStaleOption), errors.Is(err, quiz.ErrInvalidOption):
		return c.Respond(&tele.CallbackResponse{Text: textStale})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrQuizNotFound):
		_ = c.Respond(&tele.CallbackResponse{Text: textExpired})
		return b.showMenu(c)
	case err != nil:
		_ = c.Respond()
		return b.fail(ctx, c, "answer", err)
	}
	_ = c.Respond()
	return b.showView(c, v)
}

func (b *Bot) onBack(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if c.Callback() != nil {
		_ = c.Respond()
	}
	v, moved, err := b.svc.Back(ctx, sessionKey(c))
	if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrQuizNotFound) {
		return tghelpers.SendText(c, textNoSession)
	}
	if err != nil {
		return b.fail(ctx, c, "back", err)
	}
	if !moved {
		return b.showMenu(c)
	}
	return b.showView(c, v)
}

func (b *Bot) onRestart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if c.Callback() != nil {
		_ = c.Respond()
	}
	v, err := b.svc.Restart(ctx, sessionKey(c))
	if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrQuizNotFound) {
		return b.start(c, "")
	}
	if err != nil {
		return b.fail(ctx, c, "restart", err)
	}
	return b.showView(c, v)
}

func (b *Bot) onStats(c tele.Context) error {
	if b.stats == nil {
		return tghelpers.SendText(c, textNoStats)
	}
	ctx := tghelpers.BuildContext(c)
	var out strings.Builder
	out.WriteString(format.Bold(textStatsTitle))
	for _, t := range b.svc.Catalog().List() {
		counts, err := b.stats.CountByResult(ctx, t.ID)
		if err != nil {
			return b.fail(ctx, c, "stats", err)
		}
		out.WriteString("\n\n")
		out.WriteString(format.Bold(t.Title))
		if len(counts) == 0 {
			out.WriteString("\n")
			out.WriteString(format.Italic(textStatsEmpty))
		}
		for _, rc := range counts {
			title := rc.ResultID
			if n, ok := t.Node(rc.ResultID); ok {
				title = resultTitle(n, title)
			}
			out.WriteString("\n")
			out.WriteString(format.V2(fmt.Sprintf("%s: %d", title, rc.Count)))
		}
	}
	return tghelpers.SendMDV2(c, out.String())
}

func (b *Bot) onHistory(c tele.Context) error {
	if b.stats == nil {
		return tghelpers.SendText(c, textNoStats)
	}
	ctx := tghelpers.BuildContext(c)
	entries, err := b.stats.RecentByUser(ctx, senderID(c), historyLimit)
	if err != nil {
		return b.fail(ctx, c, "history", err)
	}
	if len(entries) == 0 {
		return tghelpers.SendText(c, textNoHistory)
	}

	var out strings.Builder
	out.WriteString(format.Bold(textHistory))
	for _, e := range entries {
		title := e.ResultID
		quizTitle := e.QuizID
		if t, ok := b.svc.Catalog().Get(e.QuizID); ok {
			quizTitle = t.Title
			if n, ok := t.Node(e.ResultID); ok {
				title = resultTitle(n, title)
			}
		}
		out.WriteString("\n")
		out.WriteString(format.V2(fmt.Sprintf("%s · %s: %s", e.CreatedAt.Format("02.01.2006"), quizTitle, title)))
	}
	return tghelpers.SendMDV2(c, out.String())
}

func (b *Bot) showView(c tele.Context, v service.View) error {
	s, err := render(v, b.resolver)
	if err != nil {
		return b.fail(tghelpers.BuildContext(c), c, "render", err)
	}
	return b.show(c, s)
}

// show edits the message under a pressed button, or sends a new one.
func (b *Bot) show(c tele.Context, s screen) error {
	if c.Callback() != nil {
		return tghelpers.EditOrSendMDV2(c, s.text, s.markup)
	}
	return tghelpers.SendMDV2(c, s.text, s.markup)
}

func (b *Bot) fail(ctx context.Context, c tele.Context, op string, err error) error {
	logger.Error(ctx, logger.ComponentTG, "quiz."+op,
		slog.String("status", "fail"),
		logger.Err(err),
	)
	return tghelpers.SendText(c, textFailed)
}
