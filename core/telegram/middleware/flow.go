package middleware

import (
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// FlowTagMiddleware tags the request context with the conversation the
// sender is in, so every log line of the turn carries flow.
func FlowTagMiddleware(states state.Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if states == nil {
				return next(c)
			}
			if s, ok := states.Get(tghelpers.SenderID(c)); ok {
				tghelpers.WithFlow(c, s.Flow)
			}
			return next(c)
		}
	}
}
