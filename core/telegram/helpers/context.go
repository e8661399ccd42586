package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
)

// Keys used on tele.Context.
const (
	ctxKey = "log_ctx"
	ridKey = "rid"
)

// UpdateIDs returns the update id together with the sender and chat ids;
// absent parts are zero.
func UpdateIDs(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// Bind builds the correlation context of the current update and stores it on
// c together with its rid.
func Bind(c tele.Context) context.Context {
	updateID, userID, chatID := UpdateIDs(c)
	rid := logger.BuildRID(updateID, chatID, userID)
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	if l := logger.Component(logger.ComponentTG); l != nil {
		ctx = logger.WithLogger(ctx, l)
	}
	c.Set(ridKey, rid)
	c.Set(ctxKey, ctx)
	return ctx
}

// Bound returns the context stored by Bind.
func Bound(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the bound context, binding one when no middleware did.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := Bound(c); ok {
		return ctx
	}
	return Bind(c)
}

// RID returns the request id of the current update.
func RID(c tele.Context) string {
	rid, _ := c.Get(ridKey).(string)
	return rid
}

// WithHandler records the serving handler on the bound context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.MetaFrom(ctx).Handler == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}
