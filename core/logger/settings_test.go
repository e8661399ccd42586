package logger

import (
	"context"
	"log/slog"
	"testing"

	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
)

func TestParseRatio(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"", 1, 50},
		{"1/10", 1, 10},
		{"3 / 4", 3, 4},
		{"20", 1, 20},
		{"0", 0, 0},
		{"-5", 0, 0},
		{"abc", 0, 0},
		{"1/x", 0, 0},
	}
	for _, c := range cases {
		num, den := parseRatio(c.in)
		if num != c.num || den != c.den {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", c.in, num, den, c.num, c.den)
		}
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Allow())
	}
	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow sequence = %v", got)
		}
	}
	s.Set(0, 0)
	for i := 0; i < 3; i++ {
		if !s.Allow() {
			t.Fatal("disabled sampler must allow everything")
		}
	}
}

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(coreconfig.LoggingConfig{})
	if s.profile != "prod" || s.format != formatJSON || s.level != slog.LevelInfo || s.stacks {
		t.Fatalf("prod defaults = %+v", s)
	}
	s = settingsFrom(coreconfig.LoggingConfig{Profile: "dev", Level: "debug", KeysOrder: "ts, event"})
	if s.format != formatKV || s.level != slog.LevelDebug || !s.stacks {
		t.Fatalf("dev settings = %+v", s)
	}
	if len(s.keyOrder) != 2 || s.keyOrder[1] != "event" {
		t.Fatalf("key order = %v", s.keyOrder)
	}
	if s = settingsFrom(coreconfig.LoggingConfig{Profile: "dev", Stacks: "off", Format: "json"}); s.stacks || s.format != formatJSON {
		t.Fatalf("overrides = %+v", s)
	}
}

func TestMetaAccessors(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "r"), 3, 4, 5)
	ctx = WithHandler(ctx, "cb:qz_opt")
	ctx = WithSession(ctx, "chat:5", "")
	m := MetaFrom(ctx)
	want := Meta{RID: "r", UpdateID: 3, UserID: 4, ChatID: 5, Handler: "cb:qz_opt", SessionID: "chat:5"}
	if m != want {
		t.Fatalf("meta = %+v", m)
	}
	if RIDFrom(context.TODO()) != "" {
		t.Fatal("empty ctx must have no rid")
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit(" a\tb\n ", 0); got != "a b" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeLimit("растение", 4); got != "раст…" {
		t.Fatalf("got %q", got)
	}
	if got := SummarizeStrings([]string{"a", "b", "c"}, 2); got != "a,b,+1" {
		t.Fatalf("got %q", got)
	}
}
