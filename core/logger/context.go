package logger

import (
	"context"
	"log/slog"
)

// Meta is the correlation data carried by a request context. Zero-valued
// fields are omitted from log records.
type Meta struct {
	RID       string
	UpdateID  int
	UserID    int64
	ChatID    int64
	Handler   string
	SessionID string
	QuizID    string
}

type metaKey struct{}
type loggerKey struct{}

// MetaFrom returns the correlation data stored in ctx.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

func withMeta(ctx context.Context, fn func(*Meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := MetaFrom(ctx)
	fn(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithRID stores the request id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *Meta) { m.RID = rid })
}

// RIDFrom returns the request id stored in ctx.
func RIDFrom(ctx context.Context) string { return MetaFrom(ctx).RID }

// WithUpdateMeta stores the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *Meta) {
		m.UpdateID = updateID
		m.UserID = userID
		m.ChatID = chatID
	})
}

// WithHandler records which handler serves the request.
func WithHandler(ctx context.Context, name string) context.Context {
	return withMeta(ctx, func(m *Meta) { m.Handler = name })
}

// WithSession tags records with the quiz session being worked on.
func WithSession(ctx context.Context, sessionID, quizID string) context.Context {
	return withMeta(ctx, func(m *Meta) {
		m.SessionID = sessionID
		if quizID != "" {
			m.QuizID = quizID
		}
	})
}

// WithLogger attaches a request-scoped logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored by WithLogger, falling back to L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// fill copies the non-zero fields of m into fields without overwriting
// explicit attributes.
func (m Meta) fill(fields map[string]any) {
	set := func(k string, v any, empty bool) {
		if empty {
			return
		}
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	set("rid", m.RID, m.RID == "")
	set("update_id", int64(m.UpdateID), m.UpdateID == 0)
	set("user_id", m.UserID, m.UserID == 0)
	set("chat_id", m.ChatID, m.ChatID == 0)
	set("handler", m.Handler, m.Handler == "")
	set("session_id", m.SessionID, m.SessionID == "")
	set("quiz_id", m.QuizID, m.QuizID == "")
}
