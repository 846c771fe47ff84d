package middleware

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers the last update ids so a redelivered update
// (webhook retry, overlapping branches) is logged once.
type seenUpdates struct {
	mu    sync.Mutex
	ring  [256]int
	next  int
	count int
	set   map[int]struct{}
}

func (s *seenUpdates) add(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[int]struct{}, len(s.ring))
	}
	if _, ok := s.set[id]; ok {
		return false
	}
	if s.count == len(s.ring) {
		delete(s.set, s.ring[s.next])
	} else {
		s.count++
	}
	s.ring[s.next] = id
	s.next = (s.next + 1) % len(s.ring)
	s.set[id] = struct{}{}
	return true
}

var received seenUpdates

// LoggerMiddleware assigns the request context of the update and logs one
// sampled debug line on receipt. A context set by an outer chain is kept.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)

		upd := c.Update()
		if !logger.ShouldSampleDebug() || !received.add(upd.ID) {
			return next(c)
		}

		kind := tghelpers.UpdateKind(c)
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("rid", tghelpers.RID(c)),
			slog.Int("update_id", upd.ID),
			slog.String("kind", kind),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chat.ID), slog.String("chat_type", string(chat.Type)))
		}
		if u := c.Sender(); u != nil {
			attrs = append(attrs, slog.Int64("user_id", u.ID))
			if u.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
			}
			if u.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", u.LanguageCode))
			}
		}
		switch kind {
		case tghelpers.KindCallback:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			if key != "" {
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			}
			if payload != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
			}
		case tghelpers.KindMessage:
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		}
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
