package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/studiobot/core/logger"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summarize wraps h so every invocation is served under name.
func summarize(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error { return serve(c, name, h) }
}

// serve runs h with the handler tagged on the request context and logs one
// handler.handled line afterwards.
func serve(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := h(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	logHandled(ctx, c, name, status, start, err, extras...)
	return err
}

// skip logs an update nobody handled.
func skip(c tele.Context, name string) {
	logHandled(tghelpers.WithHandler(c, name), c, name, "skip", time.Now(), nil)
}

func logHandled(ctx context.Context, c tele.Context, name, status string, start time.Time, err error, extras ...slog.Attr) {
	out := middleware.OutgoingFrom(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", out.Messages()),
		slog.Int("edited", out.Edited),
		slog.Bool("kb", out.Keyboard),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	key = strings.ReplaceAll(key, " ", "_")
	if key == "" {
		key = "unknown"
	}
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

const maxErrorCode = 48

// errorCode derives a stable code from err: an explicit Code() when the
// chain carries one, otherwise the innermost message in UPPER_SNAKE form.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := snake(coded.Code()); code != "" {
			return code
		}
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	if code := snake(err.Error()); code != "" {
		return code
	}
	return "UNKNOWN_ERROR"
}

func snake(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxErrorCode {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
