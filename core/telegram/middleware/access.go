package middleware

import (
	"log/slog"

	"github.com/m3rciful/studiobot/core/logger"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(c tele.Context) bool {
	if o.IsAdmin == nil {
		return false
	}
	return o.IsAdmin(tghelpers.SenderID(c))
}

// AdminOnly guards a single handler.
func AdminOnly(opts AdminOptions, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !opts.allowed(c) {
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelInfo, "tg.admin.rejected",
				slog.String("status", "forbidden"),
				slog.Int64("user_id", tghelpers.SenderID(c)),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}

// AdminOnlyMiddleware ensures that only admins can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return AdminOnly(opts, next)
	}
}
