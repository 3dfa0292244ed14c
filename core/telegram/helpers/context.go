package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/logger"
)

// ctxStoreKey is where the per-update context lives in tele.Context storage.
const ctxStoreKey = "timebot.ctx"

// StoreContext caches ctx on c so later middleware and handlers share it.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxStoreKey, ctx)
	}
}

func cached(c tele.Context) context.Context {
	if c == nil {
		return nil
	}
	ctx, _ := c.Get(ctxStoreKey).(context.Context)
	return ctx
}

// BuildContext returns the context for the update in c, creating it on first use.
// The context carries the rid, update identity and a "tg" scoped logger.
func BuildContext(c tele.Context) context.Context {
	if ctx := cached(c); ctx != nil {
		return ctx
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the update context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}
