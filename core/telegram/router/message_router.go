package router

import (
	tg "github.com/m3rciful/studiobot/core/telegram"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text while the sender is inside a multi-step flow.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text: an active conversation wins,
// then registered commands typed without entities, then the registry
// fallback, then UnknownText.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if conv != nil && conv.InProgress(tghelpers.SenderID(c)) {
			return serve(c, "flow", conv.HandleText)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return serve(c, handlerName("command", key), cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return serve(c, "fallback", fb)
			}
		}
		if opts.UnknownText != nil {
			return serve(c, "unknown_text", opts.UnknownText)
		}
		skip(c, "unknown_text")
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
