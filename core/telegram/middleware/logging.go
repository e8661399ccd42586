package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/callbacks"
	tghelpers "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/helpers"
)

// LoggerMiddleware binds the correlation context of each update and writes a
// sampled update.received line. It runs once per update even when installed
// on several groups.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.Bound(c); ok {
			return next(c)
		}
		ctx := tghelpers.Bind(c)
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, logger.ComponentTG, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if ch := c.Chat(); ch != nil {
		attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
