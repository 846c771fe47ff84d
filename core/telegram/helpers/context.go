package helpers

import (
	"context"

	"github.com/m3rciful/studiobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "request_ctx"
	ridKey     = "rid"
)

// StoreContext attaches ctx to the update so later helpers reuse it.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// RID returns the request id of the update, assigning one on first use.
func RID(c tele.Context) string {
	if rid, ok := c.Get(ridKey).(string); ok && rid != "" {
		return rid
	}
	rid := logger.BuildRID(c.Update().ID, ChatID(c), SenderID(c))
	c.Set(ridKey, rid)
	return rid
}

// newRequestContext builds the request context of the update: rid,
// update/user/chat metadata and the tg logger.
func newRequestContext(c tele.Context) context.Context {
	ctx := logger.WithRID(context.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, c.Update().ID, SenderID(c), ChatID(c))
	ctx = logger.WithLogger(ctx, logger.TG)
	StoreContext(c, ctx)
	return ctx
}

// BuildContext returns the request context of the update, creating and
// storing it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return newRequestContext(c)
}

func enrich(c tele.Context, wrap func(context.Context) context.Context) context.Context {
	ctx := wrap(BuildContext(c))
	StoreContext(c, ctx)
	return ctx
}

// WithFlow tags the request context with the wizard the user is in.
func WithFlow(c tele.Context, flow string) context.Context {
	if flow == "" {
		return BuildContext(c)
	}
	return enrich(c, func(ctx context.Context) context.Context { return logger.WithFlow(ctx, flow) })
}

// WithHandler tags the request context with the handler serving the update.
func WithHandler(c tele.Context, handler string) context.Context {
	if handler == "" {
		return BuildContext(c)
	}
	return enrich(c, func(ctx context.Context) context.Context { return logger.WithHandler(ctx, handler) })
}
