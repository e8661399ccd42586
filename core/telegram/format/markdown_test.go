package format

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("1. Water (less) - 50%!", MarkdownV2)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	want := `1\. Water \(less\) \- 50%\!`
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
}

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("snake_case *bold* [x]", MarkdownV1)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	want := `snake\_case \*bold\* \[x]`
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestHelpers(t *testing.T) {
	if got := Bold("Root rot!"); got != `*Root rot\!*` {
		t.Fatalf("bold = %q", got)
	}
	if got := Link("Shop.", "https://e.x/a_(b)"); got != `[Shop\.](https://e.x/a_(b\))` {
		t.Fatalf("link = %q", got)
	}
}
