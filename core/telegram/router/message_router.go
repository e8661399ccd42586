package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/middleware"
)

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// TextRoutes routes free text to commands by name or alias, then to the
// registry text fallback, then to UnknownText. Photos and documents go to
// UnknownMedia.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				name := "command." + normalizeHandlerName(key)
				return handleWithSummary(c, name, start, func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}

		logHandlerSummary(c, "unknown_text", start, statusSkip, nil)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, func() error { return opts.UnknownMedia(c) })
		}
		logHandlerSummary(c, "unexpected_media", start, statusSkip, nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(handler)},
		{Endpoint: tele.OnDocument, Handler: middleware.RecoverMiddleware(mediaHandler)},
		{Endpoint: tele.OnPhoto, Handler: middleware.RecoverMiddleware(mediaHandler)},
	}
}
