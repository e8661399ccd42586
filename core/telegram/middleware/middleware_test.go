package middleware

import (
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	tghelpers "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/helpers"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/teletest"
)

func TestRateLimitMiddleware(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return clock },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(teletest.NewMessage(1, 10, "/start"))
	_ = h(teletest.NewMessage(2, 10, "/quiz"))
	if calls != 1 || limited != 1 {
		t.Fatalf("calls=%d limited=%d, want 1/1", calls, limited)
	}

	_ = h(teletest.NewCallback(3, 10, "qz_back", ""))
	if calls != 2 {
		t.Fatalf("excluded callback was limited")
	}

	_ = h(teletest.NewMessage(4, 11, "/start"))
	if calls != 3 {
		t.Fatalf("other users must not be limited")
	}

	clock = clock.Add(2 * time.Second)
	_ = h(teletest.NewMessage(5, 10, "/back"))
	if calls != 4 {
		t.Fatalf("call after interval was limited")
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 42, OnReject: func(tele.Context) error { rejected++; return nil }})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(teletest.NewMessage(1, 42, "/stats"))
	_ = h(teletest.NewMessage(2, 7, "/stats"))
	if passed != 1 || rejected != 1 {
		t.Fatalf("passed=%d rejected=%d", passed, rejected)
	}

	noAdmin := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	_ = noAdmin(teletest.NewMessage(3, 42, "/stats"))
	if passed != 1 {
		t.Fatal("zero admin id must reject everyone")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(teletest.NewMessage(1, 1, "x"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}

	sentinel := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	if err := h(teletest.NewMessage(2, 1, "x")); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
}

func TestMessageMetricsMiddleware(t *testing.T) {
	c := teletest.NewMessage(1, 1, "/start")
	var msgs int
	var kb bool
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("hello")
		markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{{Text: "x"}}}}
		_ = c.Send("pick", &tele.SendOptions{ReplyMarkup: markup})
		msgs, kb = GetCounters(c)
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d, %v", msgs, kb)
	}
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	c := teletest.NewMessage(9, 5, "/start")
	h := LoggerMiddleware(func(c tele.Context) error { return nil })
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rid := tghelpers.RID(c); rid != "u9-c5-f5" {
		t.Fatalf("rid = %q", rid)
	}
	if m := logger.MetaFrom(tghelpers.BuildContext(c)); m.UpdateID != 9 || m.ChatID != 5 {
		t.Fatalf("meta = %+v", m)
	}
}
