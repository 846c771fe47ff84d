package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/sender"
	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
)

func (e *Engine) broadcastWizard() *wizard {
	return newWizard(FlowBroadcast, true, e.commitBroadcast,
		Step{ID: "text", Prompt: "broadcast.text", Field: "text", Check: checkText(MaxBroadcastLength)},
		Step{
			ID:     "confirm",
			Prompt: "broadcast.confirm",
			Input:  InputConfirm,
			Args: func(ctx context.Context, _ i18n.Lang, s state.Session) ([]any, error) {
				ids, err := e.audience.KnownUsers(ctx)
				if err != nil {
					return nil, err
				}
				return []any{len(ids), s.Field("text")}, nil
			},
		},
	)
}

// commitBroadcast delivers the text to every known user in turn. A failed
// recipient is counted and skipped. The sender's conversation lock is held
// for the whole run, so their next input waits until delivery ends.
func (e *Engine) commitBroadcast(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error {
	ids, err := e.audience.KnownUsers(ctx)
	if err != nil {
		return err
	}
	text := s.Field("text")
	start := time.Now()
	sent, failed := 0, 0
	for i, id := range ids {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				failed += len(ids) - i
				logger.LogEvent(ctx, logger.Broadcast, slog.LevelWarn, "broadcast.aborted",
					slog.Int("sent", sent),
					slog.Int("failed", failed),
					slog.String("err", err.Error()),
				)
				break
			}
		}
		if err := e.out.Render(ctx, id, Message{Text: text}); err != nil {
			failed++
			logger.LogEvent(ctx, logger.Broadcast, slog.LevelWarn, "broadcast.delivery",
				slog.String("status", "fail"),
				slog.Int64("recipient", id),
				slog.Bool("unreachable", sender.Unreachable(err)),
				slog.String("err", err.Error()),
			)
		} else {
			sent++
		}
		if n := i + 1; e.progressEvery > 0 && n%e.progressEvery == 0 && n < len(ids) {
			if err := e.say(ctx, userID, lang, "broadcast.progress", n, len(ids)); err != nil {
				logger.LogEvent(ctx, logger.Broadcast, slog.LevelDebug, "broadcast.progress", slog.String("err", err.Error()))
			}
		}
	}
	logger.LogEvent(ctx, logger.Broadcast, slog.LevelInfo, "broadcast.finished",
		slog.Int("recipients", len(ids)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return e.say(ctx, userID, lang, "broadcast.done", sent, failed)
}
