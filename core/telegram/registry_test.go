package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"begin"}}); err != nil {
		t.Fatalf("register start: %v", err)
	}
	if err := reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true}); err != nil {
		t.Fatalf("register stats: %v", err)
	}
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "again"}); err == nil {
		t.Fatal("duplicate command should fail")
	}
	if err := reg.RegisterCommand("quiz", commands.Command{Handler: noop, Description: "Quiz"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("err = %v, want ErrInvalidRegistration", err)
	}

	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "start" {
		t.Fatalf("visible = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 2 {
		t.Fatalf("all = %+v", all)
	}

	cases := map[string]string{
		"/start":           "/start",
		"/start@plant_bot": "/start",
		"/start deep-link": "/start",
		"begin":            "/start",
		"/begin":           "/start",
		"/stats":           "/stats",
	}
	for text, want := range cases {
		key, _, ok := reg.LookupCommand(text)
		if !ok || key != want {
			t.Fatalf("lookup %q = %q,%v want %q", text, key, ok, want)
		}
	}
	if _, _, ok := reg.LookupCommand("hello there"); ok {
		t.Fatal("plain text must not match")
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("qz_back", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("qz_back", noop); err == nil {
		t.Fatal("duplicate callback should fail")
	}
	if err := reg.RegisterCallback("", noop); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("err = %v", err)
	}
	_ = reg.RegisterCallback("qz_opt", noop)
	if got := reg.ListCallbacks(); len(got) != 2 || got[0] != "qz_back" || got[1] != "qz_opt" {
		t.Fatalf("callbacks = %v", got)
	}
	if _, ok := reg.GetCallback("missing"); ok {
		t.Fatal("missing key resolved")
	}
	if reg.CallbackNotFound() == nil {
		t.Fatal("default not-found handler missing")
	}
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...any) error {
	if len(opts) > 0 {
		f.got, _ = opts[0].([]tele.Command)
	}
	return f.err
}

func TestInitBotCommands(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterCommand("/quiz", commands.Command{Handler: noop, Description: "Quiz"})
	_ = reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true})
	s := &fakeSetter{}
	InitBotCommands(s, reg)
	if len(s.got) != 1 || s.got[0].Text != "quiz" {
		t.Fatalf("published = %+v", s.got)
	}
	InitBotCommands(&fakeSetter{err: errors.New("boom")}, reg)
}

func TestDeleteWebhook(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotBody = r.PostForm.Get("drop_pending_updates")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := deleteWebhook(context.Background(), srv.Client(), srv.URL, "123:abc", true); err != nil {
		t.Fatalf("deleteWebhook: %v", err)
	}
	if gotPath != "/bot123:abc/deleteWebhook" || gotBody != "true" {
		t.Fatalf("path=%q body=%q", gotPath, gotBody)
	}
	if err := deleteWebhook(context.Background(), srv.Client(), srv.URL, " ", false); err == nil {
		t.Fatal("empty token should fail")
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failing.Close()
	if err := deleteWebhook(context.Background(), failing.Client(), failing.URL, "t", false); err == nil {
		t.Fatal("non-200 should fail")
	}
}
