package callbacks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates the callback key from its payload fields.
const Sep = "|"

// MaxDataLen is the Telegram limit for inline button callback data in bytes.
const MaxDataLen = 64

// ErrTooLong reports callback data that Telegram would reject.
var ErrTooLong = errors.New("callbacks: data exceeds 64 bytes")

// Parse splits telebot callback data into key and payload. Telebot prefixes
// data of unique buttons with '\f' and joins unique and payload with '|'.
// A generic OnCallback handler sees Unique empty and the raw encoding in Data.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ := strings.Cut(raw, Sep)
	return strings.TrimSpace(key), payload
}

// Key returns the callback key of the current update.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Payload returns the payload (everything after the first '|') of the current update.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}

// Parts splits the payload of the current update into exactly n fields.
func Parts(c tele.Context, n int) ([]string, error) {
	return SplitPayload(Payload(c), n)
}

// SplitPayload splits p into exactly n fields. The trailing n-1 fields are
// cut from the right, so only the first field may itself contain Sep.
func SplitPayload(p string, n int) ([]string, error) {
	if p == "" || n < 1 {
		return nil, strconv.ErrSyntax
	}
	parts := make([]string, n)
	rest := p
	for i := n - 1; i > 0; i-- {
		cut := strings.LastIndex(rest, Sep)
		if cut < 0 {
			return nil, fmt.Errorf("callbacks: want %d payload fields, got %d: %w", n, n-i, strconv.ErrSyntax)
		}
		parts[i] = rest[cut+len(Sep):]
		rest = rest[:cut]
	}
	parts[0] = rest
	return parts, nil
}

// PayloadInt parses the payload as an int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(Payload(c))
}

// Data joins payload fields for a button and checks the size limit of the
// encoded "\f<key>|<payload>" form.
func Data(key string, fields ...string) (string, error) {
	payload := strings.Join(fields, Sep)
	size := 1 + len(key)
	if payload != "" {
		size += len(Sep) + len(payload)
	}
	if size > MaxDataLen {
		return "", fmt.Errorf("%w: key %q, %d bytes", ErrTooLong, key, size)
	}
	return payload, nil
}
