package quizbot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/callbacks"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/format"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/keyboard"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
)

// Callback keys of the quiz keyboards.
const (
	keyStart   = "qz_start"
	keyOption  = "qz_opt"
	keyBack    = "qz_back"
	keyRestart = "qz_restart"
	keyMenu    = "qz_menu"
)

// Button and section labels.
const (
	labelBack     = "⬅️ Назад"
	labelRestart  = "🔄 Пройти ещё раз"
	labelMenu     = "📋 Все тесты"
	labelWebApp   = "🌿 Открыть приложение"
	labelActions  = "Что делать"
	labelProducts = "Рекомендуем"
	labelFert     = "Удобрение"
	labelPhoto    = "фото"
)

// screen is one rendered message: MarkdownV2 text and its keyboard.
type screen struct {
	text   string
	markup *tele.ReplyMarkup
}

// renderer draws the current node of a view. It is the only place that
// switches over node kinds in the bot.
type renderer struct {
	view     service.View
	resolver *assets.Resolver
	out      screen
}

func render(v service.View, r *assets.Resolver) (screen, error) {
	if v.Node == nil {
		return screen{}, fmt.Errorf("quizbot: view has no node")
	}
	rd := &renderer{view: v, resolver: r}
	if err := v.Node.Accept(rd); err != nil {
		return screen{}, err
	}
	return rd.out, nil
}

func (r *renderer) VisitQuestion(q *quiz.Question) error {
	var b strings.Builder
	b.WriteString(format.Bold(r.view.Tree.Title))
	b.WriteString("\n\n")
	b.WriteString(format.V2(q.Text))

	rows := make([][]keyboard.InlineBtn, 0, len(q.Options)+1)
	for i, opt := range q.Options {
		data, err := callbacks.Data(keyOption, r.view.NodeID, strconv.Itoa(i))
		if err != nil {
			return err
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: opt.Text, Unique: keyOption, Data: data}})
	}
	if r.view.CanGoBack() {
		rows = append(rows, []keyboard.InlineBtn{{Text: labelBack, Unique: keyBack}})
	}
	r.out = screen{text: b.String(), markup: keyboard.InlineButtonsRows(rows...)}
	return nil
}

func (r *renderer) VisitResult(res *quiz.Result) error {
	var b strings.Builder
	b.WriteString("🩺 ")
	b.WriteString(format.Bold(res.Title))
	b.WriteString("\n\n")
	b.WriteString(format.V2(res.Diagnosis))

	if len(res.Actions) > 0 {
		b.WriteString("\n\n")
		b.WriteString(format.Bold(labelActions))
		for i, a := range res.Actions {
			fmt.Fprintf(&b, "\n%s %s", format.V2(strconv.Itoa(i+1)+"."), format.V2(a))
		}
	}

	var linkRows [][]keyboard.InlineBtn
	if len(res.Products) > 0 {
		b.WriteString("\n\n")
		b.WriteString(format.Bold(labelProducts))
		for _, p := range res.Products {
			b.WriteString("\n• ")
			b.WriteString(format.Bold(p.Name))
			if p.Description != "" {
				b.WriteString(format.V2(" - " + p.Description))
			}
			if img := r.resolver.Resolve(p.Image); strings.HasPrefix(img, "http") {
				b.WriteString(" ")
				b.WriteString(format.Link(labelPhoto, img))
			}
			for _, l := range p.Links {
				linkRows = append(linkRows, []keyboard.InlineBtn{{Text: l.Title, URL: l.URL}})
			}
		}
	}

	if res.Fertilizer != "" {
		b.WriteString("\n\n")
		b.WriteString(format.Bold(labelFert))
		b.WriteString("\n")
		b.WriteString(format.V2(res.Fertilizer))
	}

	rows := append(linkRows,
		[]keyboard.InlineBtn{{Text: labelRestart, Unique: keyRestart}},
		[]keyboard.InlineBtn{{Text: labelBack, Unique: keyBack}, {Text: labelMenu, Unique: keyMenu}},
	)
	r.out = screen{text: b.String(), markup: keyboard.InlineButtonsRows(rows...)}
	return nil
}

// menu lists the catalog with one start button per quiz, plus the Mini App
// button when a WebApp URL is configured.
func menu(cat *quiz.Catalog, intro, webAppURL string) (screen, error) {
	var b strings.Builder
	b.WriteString(format.V2(intro))

	rows := make([][]keyboard.InlineBtn, 0, cat.Len()+1)
	for _, t := range cat.List() {
		data, err := callbacks.Data(keyStart, t.ID)
		if err != nil {
			return screen{}, err
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: t.Title, Unique: keyStart, Data: data}})
	}
	if webAppURL != "" {
		rows = append(rows, []keyboard.InlineBtn{{Text: labelWebApp, WebApp: webAppURL}})
	}
	return screen{text: b.String(), markup: keyboard.InlineButtonsRows(rows...)}, nil
}

// OversizedNodes lists question ids whose option buttons would not fit
// Telegram's callback data limit.
func OversizedNodes(t *quiz.Tree) []string {
	var out []string
	for id, n := range t.Nodes {
		q, ok := n.(*quiz.Question)
		if !ok {
			continue
		}
		if _, err := callbacks.Data(keyOption, id, strconv.Itoa(len(q.Options)-1)); err != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
