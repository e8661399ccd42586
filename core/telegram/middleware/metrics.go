package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const statsKey = "send_stats"

// sendStats counts the messages an update produced. Sends may complete on
// dispatcher workers after the handler returned, hence the atomics.
type sendStats struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// countingContext records every successful outbound call made through it.
type countingContext struct {
	tele.Context
	stats *sendStats
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.stats.messages.Add(1)
	if withButtons(opts) {
		c.stats.keyboard.Store(true)
	}
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

func withButtons(opts []any) bool {
	for _, o := range opts {
		var m *tele.ReplyMarkup
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil {
				m = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			m = v
		}
		if m != nil && len(m.InlineKeyboard)+len(m.ReplyKeyboard) > 0 {
			return true
		}
	}
	return false
}

// MessageMetricsMiddleware counts the messages and keyboards sent while
// handling an update; handlers read them back with GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		stats := &sendStats{}
		c.Set(statsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters returns the message count and whether any message carried a
// keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(statsKey).(*sendStats)
	if !ok {
		return 0, false
	}
	return int(stats.messages.Load()), stats.keyboard.Load()
}
