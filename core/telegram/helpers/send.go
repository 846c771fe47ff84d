package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the background sender used by the send helpers;
// nil makes every helper call the Bot API inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// reply queues run on the chat's worker. A saturated or stopped queue
// degrades to an inline call so the reply is not lost.
func reply(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText replies with plain text.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	if len(opts) > 0 && opts[0] != nil {
		o := opts[0]
		return reply(c, "send.text", func() error { return c.Send(text, o) })
	}
	return reply(c, "send.text", func() error { return c.Send(text) })
}

// SendMDV2 replies with MarkdownV2 text; callers escape the content.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	o := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		o.ReplyMarkup = markup[0]
	}
	return reply(c, "send.mdv2", func() error { return c.Send(text, o) })
}

// SendTo delivers text to an arbitrary chat and waits for the outcome,
// retrying transient failures through the dispatcher when one is wired.
func SendTo(ctx context.Context, api tele.API, chatID int64, text string, opts *tele.SendOptions) error {
	run := func() error {
		_, err := api.Send(tele.ChatID(chatID), text, opts)
		return err
	}
	if d := dispatcher.Load(); d != nil {
		return d.Do(ctx, "send.direct", "sendMessage", run)
	}
	return run()
}
