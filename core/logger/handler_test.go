package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	})
	emit(slog.New(h))
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "store"), slog.LevelInfo, "record.appended",
			slog.String("status", "OK"),
			slog.String("collection", "events"),
			slog.Int("record_id", 6),
		)
	})

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=store", "event=record.appended", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(expected), line)
	for i, prefix := range expected {
		assert.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
	assert.Contains(t, line, "collection=events record_id=6")
}

func TestStructuredHandlerJSON(t *testing.T) {
	ctx := WithFlow(WithRID(context.Background(), "12:34:56"), "event")
	line := captureLine(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelError, "broadcast.finished",
			slog.Int("sent", 11),
			slog.Int("failed", 1),
			slog.Duration("duration", 1500*time.Millisecond),
			slog.Any("err", errors.New("boom")),
			slog.String("outcome", "nonsense"),
		)
	})

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &fields))
	assert.Equal(t, "ERROR", fields["level"])
	assert.Equal(t, "app", fields["component"])
	assert.Equal(t, "broadcast.finished", fields["event"])
	assert.Equal(t, CompactRID("12:34:56"), fields["rid"])
	assert.Equal(t, "12:34:56", fields["rid_full"])
	assert.Equal(t, "event", fields["flow"])
	assert.EqualValues(t, 11, fields["sent"])
	assert.EqualValues(t, 1500, fields["duration_ms"])
	assert.Equal(t, "boom", fields["err"])
	assert.NotContains(t, fields, "outcome")
	assert.Contains(t, fields, "ts_unix_nano")
	assert.True(t, strings.HasPrefix(line, `{"ts":`), line)
}

func TestStructuredHandlerCompactRIDInKV(t *testing.T) {
	ctx := WithRID(context.Background(), "123:456:789")
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, line, "rid="+CompactRID("123:456:789"))
	assert.NotContains(t, line, "rid_full=")
	assert.NotContains(t, line, "ts_unix_nano")
}

func TestStructuredHandlerFiltersLevel(t *testing.T) {
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(context.Background(), l, slog.LevelDebug, "noise")
	})
	assert.Empty(t, line)
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "3f.co.lx", CompactRID("123:456:789"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\ncd", Sanitize("a\x00b\ncd\u200b"))
	assert.Equal(t, "при", SanitizeLimit("привіт", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	n, d := parseRatioSpec("2/5")
	assert.Equal(t, []int{2, 5}, []int{n, d})
	n, d = parseRatioSpec("10")
	assert.Equal(t, []int{1, 10}, []int{n, d})
}
