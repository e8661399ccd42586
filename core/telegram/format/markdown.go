package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

// mdV2Specials keeps '-' last so it stays literal inside the character class.
const mdV2Specials = "_*[]()~`>#+=|{}.!\\-"

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([" + regexp.QuoteMeta(mdV2Specials) + "])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// V2 escapes text for MarkdownV2.
func V2(text string) string {
	return mdV2Re.ReplaceAllString(text, `\$1`)
}

// Bold wraps escaped text in MarkdownV2 bold markers.
func Bold(text string) string {
	return "*" + V2(text) + "*"
}

// Italic wraps escaped text in MarkdownV2 italic markers.
func Italic(text string) string {
	return "_" + V2(text) + "_"
}

// Link renders a MarkdownV2 inline link. Inside the URL part only ')' and '\'
// have to be escaped.
func Link(title, url string) string {
	u := strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
	return "[" + V2(title) + "](" + u + ")"
}
