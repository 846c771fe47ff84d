package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/flow"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
	"github.com/m3rciful/studiobot/studio/users"
)

const (
	adminID int64 = 100
	userID  int64 = 7
)

var fixedNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)

type sentMsg struct {
	text string
	opts *tele.SendOptions
}

type chatStub struct {
	tele.Context
	update    tele.Update
	store     map[string]any
	sent      []sentMsg
	edits     []string
	responses []*tele.CallbackResponse
}

func textMsg(from int64, text string) *chatStub {
	msg := &tele.Message{Text: text, Sender: &tele.User{ID: from}, Chat: &tele.Chat{ID: from, Type: tele.ChatPrivate}}
	return &chatStub{update: tele.Update{ID: 1, Message: msg}, store: map[string]any{}}
}

func press(from int64, unique, data string) *chatStub {
	msg := &tele.Message{ID: 55, Text: "previous prompt", Chat: &tele.Chat{ID: from}}
	cb := &tele.Callback{Data: "\f" + unique + "|" + data, Sender: &tele.User{ID: from}, Message: msg}
	return &chatStub{update: tele.Update{ID: 2, Callback: cb}, store: map[string]any{}}
}

func (s *chatStub) Update() tele.Update { return s.update }
func (s *chatStub) Sender() *tele.User {
	if s.update.Callback != nil {
		return s.update.Callback.Sender
	}
	return s.update.Message.Sender
}
func (s *chatStub) Chat() *tele.Chat { return s.Message().Chat }
func (s *chatStub) Message() *tele.Message {
	if s.update.Callback != nil {
		return s.update.Callback.Message
	}
	return s.update.Message
}
func (s *chatStub) Text() string {
	if s.update.Message != nil {
		return s.update.Message.Text
	}
	return ""
}
func (s *chatStub) Callback() *tele.Callback { return s.update.Callback }
func (s *chatStub) Get(k string) any         { return s.store[k] }
func (s *chatStub) Set(k string, v any)      { s.store[k] = v }
func (s *chatStub) Send(what any, opts ...any) error {
	m := sentMsg{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			m.opts = so
		}
	}
	s.sent = append(s.sent, m)
	return nil
}
func (s *chatStub) Edit(what any, _ ...any) error {
	s.edits = append(s.edits, what.(string))
	return nil
}
func (s *chatStub) Respond(resp ...*tele.CallbackResponse) error {
	s.responses = append(s.responses, resp...)
	return nil
}

func (s *chatStub) last() sentMsg {
	if len(s.sent) == 0 {
		return sentMsg{}
	}
	return s.sent[len(s.sent)-1]
}

type sink struct {
	mu   sync.Mutex
	msgs map[int64][]flow.Message
}

func (s *sink) Render(_ context.Context, id int64, m flow.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgs == nil {
		s.msgs = make(map[int64][]flow.Message)
	}
	s.msgs[id] = append(s.msgs[id], m)
	return nil
}

func (s *sink) last(id int64) flow.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.msgs[id]); n > 0 {
		return s.msgs[id][n-1]
	}
	return flow.Message{}
}

type fixture struct {
	h     *Handlers
	store *records.Store
	users *users.Service
	out   *sink
	eng   *flow.Engine
}

func isAdmin(id int64) bool { return id == adminID }

type adminFunc func(int64) bool

func (f adminFunc) IsAdmin(id int64) bool { return f(id) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cat, err := i18n.Load("", i18n.UK)
	require.NoError(t, err)
	store := records.NewStore(records.NewMemory(), records.Options{})
	for _, c := range records.All() {
		require.NoError(t, store.EnsureCollection(ctx, c.Name, c.Header))
	}
	svc := users.New(store, cat.Default())
	out := &sink{}
	eng := flow.New(flow.Deps{
		Records:   store,
		States:    state.NewMemoryManager(),
		Catalog:   cat,
		Renderer:  out,
		Languages: svc,
		Admins:    adminFunc(isAdmin),
		Audience:  svc,
	}, flow.Options{Now: func() time.Time { return fixedNow }})

	prev := now
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = prev })

	h := New(Deps{Flows: eng, Records: store, Users: svc, Catalog: cat}, Options{
		ShopURL: "https://shop.example",
		IsAdmin: isAdmin,
	})
	return &fixture{h: h, store: store, users: svc, out: out, eng: eng}
}

func (f *fixture) speak(t *testing.T, id int64, lang i18n.Lang) {
	t.Helper()
	require.NoError(t, f.users.SetLanguage(context.Background(), id, lang))
}

func TestStartShowsLanguagePicker(t *testing.T) {
	f := newFixture(t)
	c := textMsg(userID, "/start")
	require.NoError(t, f.h.onStart(c))

	require.Len(t, c.sent, 2)
	assert.Contains(t, c.sent[0].text, "Марини Камінської")
	kb := c.sent[1].opts.ReplyMarkup.InlineKeyboard
	require.Len(t, kb, 1)
	require.Len(t, kb[0], 3)
	assert.Equal(t, "Українська", kb[0][0].Text)
	assert.Equal(t, "de", kb[0][2].Data)
	assert.Equal(t, cbLang, kb[0][2].Unique)
}

func TestLanguagePickedPersistsAndShowsMenu(t *testing.T) {
	f := newFixture(t)
	c := press(userID, cbLang, "en")
	require.NoError(t, f.h.onLanguagePicked(c))

	lang, ok := f.users.Language(userID)
	require.True(t, ok)
	assert.Equal(t, i18n.EN, lang)
	assert.Equal(t, []string{"✅ Language set: English"}, c.edits)
	assert.Equal(t, "Main menu:", c.last().text)
	assert.Len(t, c.last().opts.ReplyMarkup.ReplyKeyboard, 4)

	bad := press(userID, cbLang, "fr")
	require.NoError(t, f.h.onLanguagePicked(bad))
	require.Len(t, bad.responses, 1)
	assert.Equal(t, "This language is not supported.", bad.responses[0].Text)
}

func TestMenuStartsYogaAndBackLeavesIt(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)

	require.NoError(t, f.h.onMenuText(textMsg(userID, "🧘 Yoga registration")))
	assert.True(t, f.h.InProgress(userID))
	assert.Equal(t, "🧘 What is your name?", f.out.last(userID).Text)

	require.NoError(t, f.h.HandleText(textMsg(userID, "Olena")))
	assert.Equal(t, "📧 Your email address:", f.out.last(userID).Text)

	c := textMsg(userID, "⬅️ Back")
	require.NoError(t, f.h.HandleText(c))
	assert.False(t, f.h.InProgress(userID))
	assert.Equal(t, "Cancelled.", f.out.last(userID).Text)
	assert.Equal(t, "Main menu:", c.last().text)
}

func TestMenuLabelInOtherLanguageStillMatches(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)
	action, ok := f.h.matchMenu("🛒 Магазин", i18n.EN)
	require.True(t, ok)
	assert.Equal(t, actShop, action)

	_, ok = f.h.matchMenu("Olena", i18n.EN)
	assert.False(t, ok)
}

func TestShopAndUnknownText(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)

	c := textMsg(userID, "🛒 Shop")
	require.NoError(t, f.h.onMenuText(c))
	assert.Contains(t, c.last().text, "https://shop.example")

	c = textMsg(userID, "what?")
	require.NoError(t, f.h.onMenuText(c))
	assert.Equal(t, "🤖 Sorry, I did not understand. Please try again.", c.last().text)
	assert.NotNil(t, c.last().opts.ReplyMarkup)
}

func TestYogaThroughButtonsEndsWithMenu(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)
	require.NoError(t, f.h.startFlow(textMsg(userID, ""), flow.FlowYoga))
	require.NoError(t, f.h.HandleText(textMsg(userID, "Olena")))
	require.NoError(t, f.h.HandleText(textMsg(userID, "olena@example.com")))

	for _, tok := range []string{"d:date:2026-03-11", "c:class_type:hatha"} {
		require.NoError(t, f.h.onFlowSelection(press(userID, cbFlow, tok)))
	}
	c := press(userID, cbFlow, "s:comment:")
	require.NoError(t, f.h.onFlowSelection(c))

	assert.Equal(t, "✅ Thank you, Olena! You are registered for 11.03.2026.", f.out.last(userID).Text)
	assert.Equal(t, "Main menu:", c.last().text)

	recs, err := f.store.ListRecords(context.Background(), records.YogaRegistrations.Name)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Hatha", recs[0]["class_type"])
}

func TestStaleKeyboardIsCleared(t *testing.T) {
	f := newFixture(t)
	c := press(userID, cbFlow, "d:date:2026-03-11")
	require.NoError(t, f.h.onFlowSelection(c))
	assert.Equal(t, []string{"previous prompt"}, c.edits)
	assert.Empty(t, c.sent)
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.DE)
	require.NoError(t, f.h.startFlow(textMsg(userID, ""), flow.FlowYoga))

	c := textMsg(userID, "/cancel")
	require.NoError(t, f.h.onCancel(c))
	assert.False(t, f.h.InProgress(userID))
	assert.Equal(t, "Hauptmenü:", c.last().text)
}

func TestEventsListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.speak(t, userID, i18n.DE)
	rows := [][]string{
		{"1", "Пленер", "Plein air", "", "2026-04-02", "10:00", "Kyiv", "500", "Малюємо", "We paint", ""},
		{"2", "Минула", "Past", "Vergangen", "2026-01-01", "10:00", "Kyiv", "0", "", "", ""},
		{"3", "Акварель", "Watercolor", "Aquarell", "2026-03-20", "18:00", "Lviv", "300", "", "", "Malen"},
	}
	for _, r := range rows {
		require.NoError(t, f.store.AppendRecord(ctx, records.Events.Name, r))
	}

	c := textMsg(userID, "")
	require.NoError(t, f.h.showEvents(c))
	require.Len(t, c.sent, 1)
	text := c.sent[0].text
	assert.Equal(t, tele.ModeMarkdownV2, c.sent[0].opts.ParseMode)
	assert.NotContains(t, text, "Vergangen")
	aq, pl := strings.Index(text, "Aquarell"), strings.Index(text, "Пленер")
	require.True(t, aq >= 0 && pl >= 0, text)
	assert.Less(t, aq, pl)
	assert.Contains(t, text, `20\.03\.2026`)
}

func TestEventsEmpty(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)
	c := textMsg(userID, "")
	require.NoError(t, f.h.showEvents(c))
	assert.Equal(t, "📭 No upcoming events.", c.last().text)
}

type brokenRecords struct{}

func (brokenRecords) ListRecords(context.Context, string) ([]records.Record, error) {
	return nil, records.ErrUnavailable
}

func (brokenRecords) SortedRecords(context.Context, string, func(a, b records.Record) bool) ([]records.Record, error) {
	return nil, errors.Join(records.ErrUnavailable, errors.New("dial tcp: timeout"))
}

func TestListingReportsUnavailableStore(t *testing.T) {
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)
	f.h.records = brokenRecords{}
	for _, show := range []func(tele.Context) error{f.h.showEvents, f.h.showSchedule, f.h.showContent} {
		c := textMsg(userID, "")
		require.NoError(t, show(c))
		assert.Equal(t, "⚠️ The service is temporarily unavailable. Please try again later.", c.last().text)
	}
}

func TestScheduleUsesLocalizedClass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.speak(t, userID, i18n.EN)
	require.NoError(t, f.store.AppendRecord(ctx, records.Schedule.Name,
		[]string{"Monday", "18:00", "Хатха", "Hatha", "", "bring a mat"}))

	c := textMsg(userID, "")
	require.NoError(t, f.h.showSchedule(c))
	assert.Contains(t, c.last().text, "Hatha")
	assert.Contains(t, c.last().text, "bring a mat")
}

func TestAdminPanelAndGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.speak(t, adminID, i18n.EN)

	c := textMsg(adminID, "/admin")
	require.NoError(t, f.h.onAdmin(c))
	kb := c.last().opts.ReplyMarkup.InlineKeyboard
	require.Len(t, kb, len(adminActions))
	assert.Equal(t, "broadcast", kb[3][0].Data)

	denied := press(userID, cbAdmin, "broadcast")
	require.NoError(t, f.h.onAdminAction(denied))
	assert.Contains(t, denied.last().text, "⛔")
	assert.False(t, f.h.InProgress(userID))

	require.NoError(t, f.h.onAdminAction(press(adminID, cbAdmin, "add_event")))
	assert.True(t, f.h.InProgress(adminID))
	assert.Equal(t, "Enter the event title in Ukrainian:", f.out.last(adminID).Text)

	require.NoError(t, f.store.AppendRecord(ctx, records.YogaRegistrations.Name,
		[]string{"1", "Olena", "olena@example.com", "2026-03-11", "Hatha", "first time", "2026-03-10T10:00:00Z"}))
	list := press(adminID, cbAdmin, "registrations")
	require.NoError(t, f.h.onAdminAction(list))
	assert.Contains(t, list.last().text, "Olena")
	assert.Contains(t, list.last().text, `11\.03\.2026`)

	assert.Equal(t, actEvents, kb[5][0].Data)
	empty := press(adminID, cbAdmin, actEvents)
	require.NoError(t, f.h.onAdminAction(empty))
	assert.Equal(t, "📭 No events.", empty.last().text)

	for _, r := range [][]string{
		{"1", "Пленер", "Plein air", "", "2026-04-02", "10:00", "Kyiv", "500", "", "", ""},
		{"2", "Минула", "Past", "", "2026-01-01", "10:00", "Kyiv", "0", "", "", ""},
	} {
		require.NoError(t, f.store.AppendRecord(ctx, records.Events.Name, r))
	}
	overview := press(adminID, cbAdmin, actEvents)
	require.NoError(t, f.h.onAdminAction(overview))
	text := overview.last().text
	assert.Contains(t, text, "All events:")
	past, future := strings.Index(text, "Past"), strings.Index(text, "Plein air")
	require.True(t, past >= 0 && future >= 0, text)
	assert.Less(t, past, future)

	hidden := press(userID, cbAdmin, actEvents)
	require.NoError(t, f.h.onAdminAction(hidden))
	assert.Contains(t, hidden.last().text, "⛔")
}

type fakeAPI struct {
	tele.API
	sent  []tele.Recipient
	edits int
	err   error
}

func (a *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	a.sent = append(a.sent, to)
	return &tele.Message{}, nil
}

func (a *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	a.edits++
	return &tele.Message{}, a.err
}

func TestRendererEditsOnlyWithPressedMessage(t *testing.T) {
	api := &fakeAPI{}
	r := NewRenderer(api)
	msg := flow.Message{Text: "calendar", Choices: [][]flow.Choice{{{Label: "»", Token: "m:date:2026-04"}}}, Edit: true}

	require.NoError(t, r.Render(context.Background(), userID, msg))
	assert.Equal(t, 0, api.edits)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "7", api.sent[0].Recipient())

	ctx := withEditable(context.Background(), &tele.Message{ID: 55, Chat: &tele.Chat{ID: userID}})
	require.NoError(t, r.Render(ctx, userID, msg))
	assert.Equal(t, 1, api.edits)
	assert.Len(t, api.sent, 1)

	api.err = errors.New("message to edit not found")
	require.NoError(t, r.Render(ctx, userID, msg))
	assert.Len(t, api.sent, 2)
}

func TestInlineMarkupUsesFlowUnique(t *testing.T) {
	m := inlineMarkup([][]flow.Choice{{{Label: "Yes", Token: "y:confirm:"}, {Label: "No", Token: "f:confirm:"}}})
	require.Len(t, m.InlineKeyboard, 1)
	assert.Equal(t, cbFlow, m.InlineKeyboard[0][1].Unique)
	assert.Equal(t, "f:confirm:", m.InlineKeyboard[0][1].Data)
	assert.Nil(t, inlineMarkup(nil))
}

func TestFirstContactUsesClientLanguage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const newcomer int64 = 777

	c := textMsg(newcomer, "hello")
	c.update.Message.Sender.LanguageCode = "en"
	reached := false
	mw := Activity(f.users)
	require.NoError(t, mw.Use(func(tele.Context) error { reached = true; return nil })(c))
	assert.True(t, reached)

	ids, err := f.users.KnownUsers(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, newcomer)
	_, chosen := f.users.Language(newcomer)
	assert.False(t, chosen)

	require.NoError(t, f.h.startFlow(c, flow.FlowYoga))
	assert.Equal(t, "🧘 What is your name?", f.out.last(newcomer).Text)
}
