package quizbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/teletest"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/diagnosis"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/session"
)

const doc = `{
  "id": "plant-doctor",
  "title": "Plant doctor",
  "start": "q1",
  "nodes": {
    "q1": {"type": "question", "text": "Leaves yellow?", "options": [
      {"text": "Yes", "next": "r1"},
      {"text": "No", "next": "q2"}
    ]},
    "q2": {"type": "question", "text": "Brown spots?", "options": [
      {"text": "Yes", "next": "r2"},
      {"text": "No", "next": "r1"}
    ]},
    "r1": {"type": "result", "title": "Overwatering", "diagnosis": "Too wet.", "actions": ["Water less"]},
    "r2": {"type": "result", "title": "Leaf spot", "diagnosis": "Fungus.", "actions": [],
      "products": [{"name": "Fungicide", "description": "Spray weekly", "image": "img/f.png", "links": [{"title": "Shop", "url": "https://shop.example/f"}]}]}
  }
}`

const userID = 555

type fakeStats struct {
	counts []diagnosis.ResultCount
	recent []diagnosis.Entry
	err    error
}

func (f fakeStats) CountByResult(context.Context, string) ([]diagnosis.ResultCount, error) {
	return f.counts, f.err
}

func (f fakeStats) RecentByUser(_ context.Context, uid int64, limit int) ([]diagnosis.Entry, error) {
	var out []diagnosis.Entry
	for _, e := range f.recent {
		if e.UserID == uid && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, f.err
}

func newBot(t *testing.T, stats StatsSource) *Bot {
	t.Helper()
	tree, err := quiz.Parse([]byte(doc), quiz.FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cat, err := quiz.NewCatalog("", tree)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	svc := service.NewQuiz(cat, session.NewMemoryStore(), service.Options{Channel: diagnosis.ChannelBot})
	return New(Options{
		Service:   svc,
		Resolver:  assets.NewResolver("https://cdn.example/", nil, false),
		Stats:     stats,
		WebAppURL: "https://app.example/",
	})
}

func lastSent(t *testing.T, c *teletest.Context) teletest.Sent {
	t.Helper()
	s, ok := c.Last()
	if !ok {
		t.Fatal("nothing was sent")
	}
	return s
}

func responds(c *teletest.Context) []string {
	var out []string
	for _, s := range c.Sent() {
		if s.Method == "respond" {
			out = append(out, s.Text())
		}
	}
	return out
}

func press(t *testing.T, b *Bot, h tele.HandlerFunc, key, payload string) *teletest.Context {
	t.Helper()
	c := teletest.NewCallback(2, userID, key, payload)
	if err := h(c); err != nil {
		t.Fatalf("%s: %v", key, err)
	}
	return c
}

func TestRegister(t *testing.T) {
	b := newBot(t, nil)
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"/start", "/quiz", "/back", "/restart", "/history", "/stats"} {
		if _, ok := reg.Commands()[name]; !ok {
			t.Fatalf("command %s not registered", name)
		}
	}
	if reg.Commands()["/history"].AdminOnly {
		t.Fatal("/history must be open to everyone")
	}
	if !reg.Commands()["/stats"].AdminOnly {
		t.Fatal("/stats must be admin only")
	}
	for _, key := range []string{keyStart, keyOption, keyBack, keyRestart, keyMenu} {
		if _, ok := reg.GetCallback(key); !ok {
			t.Fatalf("callback %s not registered", key)
		}
	}
	if reg.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}
	if err := b.Register(reg); err == nil {
		t.Fatal("second register should report duplicates")
	}
}

func TestStartShowsMenu(t *testing.T) {
	b := newBot(t, nil)
	c := teletest.NewMessage(1, userID, "/start")
	if err := b.onStart(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := lastSent(t, c)
	if s.Method != "send" {
		t.Fatalf("method = %s, want send", s.Method)
	}
	kb := s.Markup().InlineKeyboard
	if len(kb) != 2 {
		t.Fatalf("rows = %d, want quiz row and web app row", len(kb))
	}
	if kb[0][0].Unique != keyStart || kb[0][0].Data != "plant-doctor" {
		t.Fatalf("quiz button = %+v", kb[0][0])
	}
	if kb[1][0].WebApp == nil || kb[1][0].WebApp.URL != "https://app.example/" {
		t.Fatalf("web app button = %+v", kb[1][0])
	}
}

func TestQuizFlow(t *testing.T) {
	b := newBot(t, nil)
	c := teletest.NewMessage(1, userID, "/quiz")
	if err := b.onQuiz(c); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	s := lastSent(t, c)
	if !strings.Contains(s.Text(), "Leaves yellow?") {
		t.Fatalf("text = %q", s.Text())
	}
	kb := s.Markup().InlineKeyboard
	if len(kb) != 2 {
		t.Fatalf("rows = %d, want 2 options and no back button", len(kb))
	}
	if kb[1][0].Unique != keyOption || kb[1][0].Data != "q1|1" {
		t.Fatalf("option button = %+v", kb[1][0])
	}

	c = press(t, b, b.onOption, keyOption, "q1|1")
	s = lastSent(t, c)
	if s.Method != "edit" || !strings.Contains(s.Text(), "Brown spots?") {
		t.Fatalf("sent = %s %q", s.Method, s.Text())
	}
	kb = s.Markup().InlineKeyboard
	if got := kb[len(kb)-1][0].Unique; got != keyBack {
		t.Fatalf("last row = %q, want back", got)
	}

	c = press(t, b, b.onOption, keyOption, "q2|0")
	s = lastSent(t, c)
	for _, want := range []string{"Leaf spot", "Fungicide", "https://cdn.example/img/f.png"} {
		if !strings.Contains(s.Text(), want) {
			t.Fatalf("result text %q lacks %q", s.Text(), want)
		}
	}
	kb = s.Markup().InlineKeyboard
	if kb[0][0].URL != "https://shop.example/f" {
		t.Fatalf("link button = %+v", kb[0][0])
	}
	if kb[1][0].Unique != keyRestart || kb[2][1].Unique != keyMenu {
		t.Fatalf("result keyboard = %+v", kb)
	}
}

func TestStaleOptionIgnored(t *testing.T) {
	b := newBot(t, nil)
	if err := b.onQuiz(teletest.NewMessage(1, userID, "/quiz")); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	press(t, b, b.onOption, keyOption, "q1|1")

	c := press(t, b, b.onOption, keyOption, "q1|0")
	if _, ok := c.Last(); ok {
		t.Fatal("stale press must not change the message")
	}
	if got := responds(c); len(got) != 1 || got[0] != textStale {
		t.Fatalf("responds = %v", got)
	}

	c = press(t, b, b.onOption, keyOption, "garbage")
	if got := responds(c); len(got) != 1 || got[0] != textStale {
		t.Fatalf("malformed payload responds = %v", got)
	}
}

func TestOptionWithoutSessionShowsMenu(t *testing.T) {
	b := newBot(t, nil)
	c := press(t, b, b.onOption, keyOption, "q1|0")
	if got := responds(c); len(got) != 1 || got[0] != textExpired {
		t.Fatalf("responds = %v", got)
	}
	s := lastSent(t, c)
	if s.Markup().InlineKeyboard[0][0].Unique != keyStart {
		t.Fatalf("expected menu, got %q", s.Text())
	}
}

func TestBackAtStartShowsMenu(t *testing.T) {
	b := newBot(t, nil)
	if err := b.onQuiz(teletest.NewMessage(1, userID, "/quiz")); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	press(t, b, b.onOption, keyOption, "q1|1")

	c := press(t, b, b.onBack, keyBack, "")
	if s := lastSent(t, c); !strings.Contains(s.Text(), "Leaves yellow?") {
		t.Fatalf("back text = %q", s.Text())
	}

	c = press(t, b, b.onBack, keyBack, "")
	s := lastSent(t, c)
	if s.Method != "edit" || s.Markup().InlineKeyboard[0][0].Unique != keyStart {
		t.Fatalf("expected menu edit, got %s %q", s.Method, s.Text())
	}
}

func TestBackWithoutSession(t *testing.T) {
	b := newBot(t, nil)
	c := teletest.NewMessage(1, userID, "/back")
	if err := b.onBack(c); err != nil {
		t.Fatalf("back: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textNoSession {
		t.Fatalf("text = %q", s.Text())
	}
}

func TestRestart(t *testing.T) {
	b := newBot(t, nil)
	c := press(t, b, b.onRestart, keyRestart, "")
	if s := lastSent(t, c); !strings.Contains(s.Text(), "Leaves yellow?") {
		t.Fatalf("restart without session should start the default quiz, got %q", s.Text())
	}
	press(t, b, b.onOption, keyOption, "q1|0")
	c = press(t, b, b.onRestart, keyRestart, "")
	s := lastSent(t, c)
	if !strings.Contains(s.Text(), "Leaves yellow?") || len(s.Markup().InlineKeyboard) != 2 {
		t.Fatalf("restart = %q", s.Text())
	}
}

func TestStartCallbackUnknownQuiz(t *testing.T) {
	b := newBot(t, nil)
	c := press(t, b, b.onStartCallback, keyStart, "ghost")
	if s := lastSent(t, c); s.Text() != textNoQuiz {
		t.Fatalf("text = %q", s.Text())
	}
}

func TestStats(t *testing.T) {
	c := teletest.NewMessage(1, userID, "/stats")
	if err := newBot(t, nil).onStats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textNoStats {
		t.Fatalf("text = %q", s.Text())
	}

	c = teletest.NewMessage(1, userID, "/stats")
	b := newBot(t, fakeStats{counts: []diagnosis.ResultCount{{ResultID: "r1", Count: 3}, {ResultID: "gone", Count: 1}}})
	if err := b.onStats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	s := lastSent(t, c)
	if !strings.Contains(s.Text(), "Overwatering: 3") || !strings.Contains(s.Text(), "gone: 1") {
		t.Fatalf("text = %q", s.Text())
	}

	c = teletest.NewMessage(1, userID, "/stats")
	b = newBot(t, fakeStats{err: errors.New("db down")})
	if err := b.onStats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textFailed {
		t.Fatalf("text = %q", s.Text())
	}
}

func TestMedia(t *testing.T) {
	b := newBot(t, nil)
	c := teletest.NewMessage(1, userID, "")
	if err := b.OnMedia(c); err != nil {
		t.Fatalf("media: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textNoPhotos {
		t.Fatalf("text = %q", s.Text())
	}
}

func TestOversizedNodes(t *testing.T) {
	long := strings.Repeat("n", 60)
	tree := &quiz.Tree{
		Start: "q1",
		Nodes: map[string]quiz.Node{
			"q1": &quiz.Question{Text: "?", Options: []quiz.Option{{Text: "a", Next: long}}},
			long: &quiz.Question{Text: "?", Options: []quiz.Option{{Text: "a", Next: "r"}}},
			"r":  &quiz.Result{Title: "r"},
		},
	}
	got := OversizedNodes(tree)
	if len(got) != 1 || got[0] != long {
		t.Fatalf("oversized = %v", got)
	}
}

func TestOutOfRangeOptionIsStale(t *testing.T) {
	b := newBot(t, nil)
	if err := b.onQuiz(teletest.NewMessage(1, userID, "/quiz")); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	c := press(t, b, b.onOption, keyOption, "q1|9")
	if got := responds(c); len(got) != 1 || got[0] != textStale {
		t.Fatalf("responds = %v", got)
	}
	if _, ok := c.Last(); ok {
		t.Fatal("out of range press must not send")
	}
}

func TestOptionOnNodeIDWithSeparator(t *testing.T) {
	const piped = `{
  "id": "piped",
  "title": "Piped",
  "start": "a|b",
  "nodes": {
    "a|b": {"type": "question", "text": "Wilting?", "options": [{"text": "Yes", "next": "r"}]},
    "r": {"type": "result", "title": "Thirsty", "diagnosis": "Dry soil.", "actions": []}
  }
}`
	tree, err := quiz.Parse([]byte(piped), quiz.FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cat, err := quiz.NewCatalog("", tree)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	b := New(Options{
		Service:  service.NewQuiz(cat, session.NewMemoryStore(), service.Options{Channel: diagnosis.ChannelBot}),
		Resolver: assets.NewResolver("", nil, false),
	})

	c := teletest.NewMessage(1, userID, "/quiz")
	if err := b.onQuiz(c); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	data := lastSent(t, c).Markup().InlineKeyboard[0][0].Data
	if data != "a|b|0" {
		t.Fatalf("option data = %q", data)
	}

	c = press(t, b, b.onOption, keyOption, data)
	if got := responds(c); len(got) != 1 || got[0] != "" {
		t.Fatalf("responds = %v, want a plain ack", got)
	}
	if s := lastSent(t, c); !strings.Contains(s.Text(), "Thirsty") {
		t.Fatalf("text = %q, want the result", s.Text())
	}
}

func TestHistory(t *testing.T) {
	c := teletest.NewMessage(1, userID, "/history")
	if err := newBot(t, nil).onHistory(c); err != nil {
		t.Fatalf("history: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textNoStats {
		t.Fatalf("text = %q", s.Text())
	}

	c = teletest.NewMessage(1, userID, "/history")
	if err := newBot(t, fakeStats{}).onHistory(c); err != nil {
		t.Fatalf("history: %v", err)
	}
	if s := lastSent(t, c); s.Text() != textNoHistory {
		t.Fatalf("text = %q", s.Text())
	}

	day := time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC)
	stats := fakeStats{recent: []diagnosis.Entry{
		{QuizID: "plant-doctor", ResultID: "r2", UserID: userID, CreatedAt: day},
		{QuizID: "retired", ResultID: "x9", UserID: userID, CreatedAt: day},
		{QuizID: "plant-doctor", ResultID: "r1", UserID: 1, CreatedAt: day},
	}}
	c = teletest.NewMessage(1, userID, "/history")
	if err := newBot(t, stats).onHistory(c); err != nil {
		t.Fatalf("history: %v", err)
	}
	text := lastSent(t, c).Text()
	for _, want := range []string{"03\\.10\\.2026", "Plant doctor: Leaf spot", "retired: x9"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text %q lacks %q", text, want)
		}
	}
	if strings.Contains(text, "Overwatering") {
		t.Fatalf("history leaked another user's entry: %q", text)
	}
}
