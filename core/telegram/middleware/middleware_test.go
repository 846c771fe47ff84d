package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/studiobot/core/logger"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/state"
)

type stubContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
	sent   []any
}

func newStub(userID int64, text string) *stubContext {
	msg := &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}
	return &stubContext{update: tele.Update{ID: 1, Message: msg}, store: map[string]any{}}
}

func (s *stubContext) Update() tele.Update { return s.update }
func (s *stubContext) Sender() *tele.User  { return s.update.Message.Sender }
func (s *stubContext) Chat() *tele.Chat    { return s.update.Message.Chat }
func (s *stubContext) Text() string        { return s.update.Message.Text }
func (s *stubContext) Get(k string) any    { return s.store[k] }
func (s *stubContext) Set(k string, v any) { s.store[k] = v }
func (s *stubContext) Send(what any, _ ...any) error {
	s.sent = append(s.sent, what)
	return nil
}

func TestRecoverMiddlewareSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NoError(t, h(newStub(1, "x")))
}

func TestAdminOnly(t *testing.T) {
	calls, rejected := 0, 0
	opts := AdminOptions{
		IsAdmin:  func(id int64) bool { return id == 100 },
		OnReject: func(tele.Context) error { rejected++; return nil },
	}
	h := AdminOnly(opts, func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newStub(100, "/admin")))
	require.NoError(t, h(newStub(7, "/admin")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)

	closed := AdminOnly(AdminOptions{}, func(tele.Context) error { return errors.New("unreachable") })
	assert.NoError(t, closed(newStub(100, "/admin")))
}

func TestRateLimitPerUser(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(newStub(1, "a")))
	require.NoError(t, h(newStub(1, "b")))
	require.NoError(t, h(newStub(2, "c")))
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExcludesKinds(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(newStub(1, "a")))
	}
	assert.Equal(t, 3, passed)
}

func TestMetricsCountsSends(t *testing.T) {
	var out Outgoing
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		_ = c.Send("two", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		out = OutgoingFrom(c)
		return nil
	})
	require.NoError(t, h(newStub(1, "a")))
	assert.Equal(t, 2, out.Sent)
	assert.Equal(t, 2, out.Messages())
	assert.True(t, out.Keyboard)

	assert.Equal(t, Outgoing{}, OutgoingFrom(newStub(1, "b")))
}

func TestFlowTagMiddleware(t *testing.T) {
	states := state.NewMemoryManager()
	states.Set(5, state.Session{Flow: "yoga", Step: "email"})

	var flow string
	h := LoggerMiddleware(FlowTagMiddleware(states)(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		flow = logger.FlowFrom(ctx)
		return nil
	}))
	require.NoError(t, h(newStub(5, "hi")))
	assert.Equal(t, "yoga", flow)

	flow = "unset"
	require.NoError(t, h(newStub(6, "hi")))
	assert.Empty(t, flow)
}

func TestSeenUpdatesEvictsOldest(t *testing.T) {
	var s seenUpdates
	assert.True(t, s.add(1))
	assert.False(t, s.add(1))
	for id := 2; id <= len(s.ring)+1; id++ {
		require.True(t, s.add(id))
	}
	assert.True(t, s.add(1), "oldest id evicted once the ring wrapped")
	assert.False(t, s.add(len(s.ring)+1))
}
