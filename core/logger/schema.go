package logger

import (
	"log/slog"
	"strings"
)

// defaultKeyOrder fixes the leading columns of every record; remaining keys
// follow in sort order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status", "outcome",
	"rid", "update_id", "chat_id", "user_id", "handler",
	"quiz_id", "session_id", "node_id", "node_kind", "result_id", "option",
	"moved", "backend", "channel", "duration_ms", "err",
}

// enumField lists the accepted values of a normalised field. Unknown values
// are kept verbatim when keepUnknown is set and dropped otherwise.
type enumField struct {
	values      []string
	keepUnknown bool
}

var enumFields = map[string]enumField{
	"status":    {values: []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}, keepUnknown: true},
	"outcome":   {values: []string{"ok", "fail", "cancelled", "rate_limited"}},
	"node_kind": {values: []string{"question", "result"}},
	"channel":   {values: []string{"bot", "webapp"}},
	"backend":   {values: []string{"memory", "redis"}},
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	}
	return "ERROR"
}

func normalizeEnums(fields map[string]any) {
	for key, rule := range enumFields {
		raw, ok := fields[key].(string)
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		if rule.allows(v) || (rule.keepUnknown && v != "") {
			fields[key] = v
			continue
		}
		delete(fields, key)
	}
}

func (e enumField) allows(v string) bool {
	for _, want := range e.values {
		if v == want {
			return true
		}
	}
	return false
}
