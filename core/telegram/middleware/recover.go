package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	tghelpers "github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/helpers"
)

// RecoverMiddleware turns a handler panic into a logged error so one bad
// update cannot stop the bot. The stack is attached when logging.stacks is on.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("telegram: handler panic: %v", r)
			attrs := []slog.Attr{slog.String("status", "fail"), logger.Err(err)}
			if logger.StacksEnabled() {
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
			}
			logger.Error(tghelpers.BuildContext(c), logger.ComponentTG, "tg.panic", attrs...)
		}()
		return next(c)
	}
}
