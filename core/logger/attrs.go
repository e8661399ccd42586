package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

const errLimit = 256

// Sanitize replaces control characters with spaces and trims the result.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s))
}

// SanitizeLimit sanitizes s and cuts it to at most limit runes, marking the
// cut with an ellipsis.
func SanitizeLimit(s string, limit int) string {
	s = Sanitize(s)
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// Err renders err under the "err" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("err", SanitizeLimit(err.Error(), errLimit))
}

// BuildRID derives the request id of a Telegram update.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("u%d-c%d-f%d", updateID, chatID, userID)
}

// CompactRID shortens long request ids for text output by keeping the head
// and tail. Ids of 16 bytes or less are returned unchanged.
func CompactRID(rid string) string {
	const keep = 6
	rid = strings.TrimSpace(rid)
	if len(rid) <= 16 {
		return rid
	}
	return rid[:keep] + ".." + rid[len(rid)-keep:]
}

// RoundMS rounds d to whole milliseconds.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins items with commas, listing at most limit of them.
func SummarizeStrings(items []string, limit int) string {
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, ",")
	}
	return fmt.Sprintf("%s,+%d", strings.Join(items[:limit], ","), len(items)-limit)
}
