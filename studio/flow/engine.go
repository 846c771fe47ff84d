package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
)

// Choice is one inline button.
type Choice struct {
	Label string
	Token string
}

// Message is what the engine asks the transport to show. Edit replaces the
// message the user last pressed a button on instead of sending a new one.
type Message struct {
	Text    string
	Choices [][]Choice
	Edit    bool
}

// Renderer delivers messages to a user's private chat.
type Renderer interface {
	Render(ctx context.Context, userID int64, msg Message) error
}

// Records is the subset of the record store the wizards write through.
type Records interface {
	ListRecords(ctx context.Context, name string) ([]records.Record, error)
	AppendWithID(ctx context.Context, name string, build func(id int) []string) (int, error)
	FindRowByValue(ctx context.Context, name string, col int, value string) (int, error)
	DeleteRow(ctx context.Context, name string, row int) error
}

// Languages reports the display language chosen by a user.
type Languages interface {
	Language(userID int64) (i18n.Lang, bool)
}

// Admins gates the authoring wizards.
type Admins interface {
	IsAdmin(userID int64) bool
}

// Audience lists broadcast recipients.
type Audience interface {
	KnownUsers(ctx context.Context) ([]int64, error)
}

// Outcome tells the caller what a turn did with the input.
type Outcome int

const (
	// Ignored means no conversation was active.
	Ignored Outcome = iota
	// Continued means the conversation is still running.
	Continued
	// Finished means the conversation ended: committed, failed or cancelled.
	Finished
)

// Deps are the collaborators of an Engine.
type Deps struct {
	Records   Records
	States    state.Manager
	Catalog   *i18n.Catalog
	Renderer  Renderer
	Languages Languages
	Admins    Admins
	Audience  Audience
}

// Options tunes an Engine.
type Options struct {
	// RatePerSecond paces broadcast delivery; zero disables pacing.
	RatePerSecond float64
	// ProgressEvery reports broadcast progress after that many recipients;
	// zero disables progress reports.
	ProgressEvery int
	Now           func() time.Time
}

// Engine drives the wizards.
type Engine struct {
	store    Records
	states   state.Manager
	cat      *i18n.Catalog
	out      Renderer
	langs    Languages
	admins   Admins
	audience Audience

	limiter       *rate.Limiter
	progressEvery int
	now           func() time.Time

	wizards map[FlowID]*wizard
}

// New builds an Engine with every wizard registered.
func New(deps Deps, opts Options) *Engine {
	e := &Engine{
		store:         deps.Records,
		states:        deps.States,
		cat:           deps.Catalog,
		out:           deps.Renderer,
		langs:         deps.Languages,
		admins:        deps.Admins,
		audience:      deps.Audience,
		progressEvery: max(opts.ProgressEvery, 0),
		now:           opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if opts.RatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	e.wizards = make(map[FlowID]*wizard)
	for _, w := range []*wizard{
		e.eventWizard(),
		e.yogaWizard(),
		e.broadcastWizard(),
		e.contentAddWizard(),
		e.contentDeleteWizard(),
	} {
		e.wizards[w.id] = w
	}
	return e
}

// InProgress reports whether the user is inside a wizard.
func (e *Engine) InProgress(userID int64) bool {
	return e.states.InProgress(userID)
}

type langKey struct{}

// WithLanguage carries the language the caller resolved for the update, used
// when the user has not chosen one.
func WithLanguage(ctx context.Context, lang i18n.Lang) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// lang prefers the stored choice, then the language carried by ctx.
func (e *Engine) lang(ctx context.Context, userID int64) i18n.Lang {
	if e.langs != nil {
		if l, ok := e.langs.Language(userID); ok {
			return e.cat.Normalize(l)
		}
	}
	if l, ok := ctx.Value(langKey{}).(i18n.Lang); ok && l != "" {
		return e.cat.Normalize(l)
	}
	return e.cat.Default()
}

func (e *Engine) text(lang i18n.Lang, key string, args ...any) string {
	if len(args) == 0 {
		return e.cat.Resolve(key, lang)
	}
	return e.cat.Resolvef(key, lang, args...)
}

func (e *Engine) say(ctx context.Context, userID int64, lang i18n.Lang, key string, args ...any) error {
	return e.out.Render(ctx, userID, Message{Text: e.text(lang, key, args...)})
}

func (e *Engine) lookup(s state.Session) (*wizard, Step, bool) {
	w, ok := e.wizards[FlowID(s.Flow)]
	if !ok {
		return nil, Step{}, false
	}
	st, ok := w.step(StepID(s.Step))
	return w, st, ok
}

// Start opens wizard id for the user, replacing any conversation in flight.
func (e *Engine) Start(ctx context.Context, userID int64, id FlowID) error {
	w, ok := e.wizards[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlow, id)
	}
	ctx = logger.WithFlow(ctx, string(id))
	lang := e.lang(ctx, userID)
	if w.admin && (e.admins == nil || !e.admins.IsAdmin(userID)) {
		logger.LogEvent(ctx, logger.Flow, slog.LevelWarn, "flow.started",
			slog.Int64("user_id", userID),
			slog.String("outcome", "forbidden"),
		)
		if err := e.say(ctx, userID, lang, "admin.forbidden"); err != nil {
			return errors.Join(ErrForbidden, err)
		}
		return ErrForbidden
	}

	unlock := e.states.Lock(userID)
	defer unlock()

	s := state.Session{Flow: string(id), Step: string(w.first().ID), Fields: map[string]string{}}
	e.states.Set(userID, s)
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "flow.started",
		slog.Int64("user_id", userID),
		slog.String("step", s.Step),
		slog.String("outcome", "ok"),
	)
	_, err := e.prompt(ctx, userID, lang, w, s, "", time.Time{}, false)
	return err
}

// OnFreeText feeds typed input to the user's conversation.
func (e *Engine) OnFreeText(ctx context.Context, userID int64, text string) (Outcome, error) {
	unlock := e.states.Lock(userID)
	defer unlock()

	s, ok := e.states.Get(userID)
	if !ok {
		return Ignored, nil
	}
	w, st, ok := e.lookup(s)
	if !ok {
		e.states.Clear(userID)
		return Ignored, nil
	}
	ctx = logger.WithFlow(ctx, s.Flow)
	lang := e.lang(ctx, userID)

	switch {
	case st.Input == InputCalendar, st.Input == InputConfirm, st.Input == InputChoice && !st.FreeText:
		return e.prompt(ctx, userID, lang, w, s, e.text(lang, "flow.use_buttons"), time.Time{}, false)
	}

	in := strings.TrimSpace(text)
	if st.Skippable && in == skipText {
		return e.advance(ctx, userID, lang, w, st, s, "")
	}
	check := st.Check
	if check == nil {
		check = checkText(MaxTextLength)
	}
	value, err := check(ctx, in)
	if err != nil {
		return e.reject(ctx, userID, lang, w, st, s, err)
	}
	return e.advance(ctx, userID, lang, w, st, s, value)
}

// OnSelection feeds a pressed button to the user's conversation. Tokens
// belonging to another step are stale and ignored.
func (e *Engine) OnSelection(ctx context.Context, userID int64, raw string) (Outcome, error) {
	sel, ok := parseToken(raw)
	if !ok {
		return Ignored, nil
	}

	unlock := e.states.Lock(userID)
	defer unlock()

	s, ok := e.states.Get(userID)
	if !ok {
		return Ignored, nil
	}
	w, st, ok := e.lookup(s)
	if !ok {
		e.states.Clear(userID)
		return Ignored, nil
	}
	ctx = logger.WithFlow(ctx, s.Flow)
	lang := e.lang(ctx, userID)

	switch sel.kind {
	case tokNoop:
		return Continued, nil
	case tokCancel:
		return e.cancel(ctx, userID, lang, w, s)
	}
	if sel.step != st.ID {
		logger.LogEvent(ctx, logger.Flow, slog.LevelDebug, "flow.selection.stale",
			slog.String("step", s.Step),
			slog.String("payload", raw),
		)
		return Continued, nil
	}

	switch {
	case sel.kind == tokMonth && st.Input == InputCalendar:
		month, err := time.ParseInLocation(monthLayout, sel.value, e.now().Location())
		if err != nil || month.Before(monthStart(e.minDate())) {
			return Continued, nil
		}
		return e.prompt(ctx, userID, lang, w, s, "", month, true)
	case sel.kind == tokDate && st.Input == InputCalendar:
		value, err := st.Check(ctx, sel.value)
		if err != nil {
			return e.reject(ctx, userID, lang, w, st, s, err)
		}
		return e.advance(ctx, userID, lang, w, st, s, value)
	case sel.kind == tokChoose && st.Input == InputChoice:
		value := sel.value
		if st.Pick != nil {
			var err error
			if value, err = st.Pick(ctx, lang, sel.value); err != nil {
				return e.reject(ctx, userID, lang, w, st, s, err)
			}
		}
		return e.advance(ctx, userID, lang, w, st, s, value)
	case sel.kind == tokSkip && st.Skippable:
		return e.advance(ctx, userID, lang, w, st, s, "")
	case sel.kind == tokYes && st.Input == InputConfirm:
		return e.finish(ctx, userID, lang, w, s)
	case sel.kind == tokNo && st.Input == InputConfirm:
		return e.cancel(ctx, userID, lang, w, s)
	}
	return Continued, nil
}

// Cancel aborts the user's conversation, if any, and reports whether one
// was active.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	unlock := e.states.Lock(userID)
	defer unlock()

	s, ok := e.states.Get(userID)
	if !ok {
		return false, nil
	}
	w, _, ok := e.lookup(s)
	if !ok {
		e.states.Clear(userID)
		return true, nil
	}
	_, err := e.cancel(logger.WithFlow(ctx, s.Flow), userID, e.lang(ctx, userID), w, s)
	return true, err
}

func (e *Engine) cancel(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, s state.Session) (Outcome, error) {
	e.states.Clear(userID)
	if _, err := w.fire(ctx, StepID(s.Step), evCancel); err != nil {
		logger.LogEvent(ctx, logger.Flow, slog.LevelWarn, "flow.cancelled", slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "flow.cancelled",
		slog.Int64("user_id", userID),
		slog.String("step", s.Step),
		slog.String("outcome", "cancelled"),
	)
	return Finished, e.say(ctx, userID, lang, "flow.cancelled")
}

func (e *Engine) reject(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, st Step, s state.Session, err error) (Outcome, error) {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		e.states.Clear(userID)
		e.report(ctx, userID, lang, w, err)
		return Finished, nil
	}
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "flow.step",
		slog.Int64("user_id", userID),
		slog.String("step", string(st.ID)),
		slog.String("outcome", "invalid"),
		slog.String("err_code", verr.Key),
	)
	return e.prompt(ctx, userID, lang, w, s, e.text(lang, verr.Key, verr.Args...), time.Time{}, false)
}

func (e *Engine) advance(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, st Step, s state.Session, value string) (Outcome, error) {
	if st.Field != "" {
		s.Fields[st.Field] = value
	}
	if w.isLast(st.ID) {
		return e.finish(ctx, userID, lang, w, s)
	}
	next, err := w.fire(ctx, st.ID, evNext)
	if err != nil {
		e.states.Clear(userID)
		return Finished, err
	}
	s.Step = string(next)
	e.states.Set(userID, s)
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "flow.step",
		slog.Int64("user_id", userID),
		slog.String("step", string(st.ID)),
		slog.String("next_step", s.Step),
		slog.String("outcome", "ok"),
	)
	return e.prompt(ctx, userID, lang, w, s, "", time.Time{}, false)
}

// finish clears the conversation and runs the commit. The state is gone
// before the store is touched, so a failed commit never leaves a half
// finished wizard behind.
func (e *Engine) finish(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, s state.Session) (Outcome, error) {
	e.states.Clear(userID)
	if _, err := w.fire(ctx, StepID(s.Step), evCommit); err != nil {
		return Finished, err
	}
	start := time.Now()
	err := w.commit(ctx, userID, lang, s)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", userID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.Flow, level, "flow.committed", attrs...)
	if err != nil {
		e.report(ctx, userID, lang, w, err)
	}
	return Finished, nil
}

func (e *Engine) report(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, err error) {
	key := "flow.failed"
	switch {
	case errors.Is(err, records.ErrUnavailable), errors.Is(err, records.ErrWriteConflict):
		key = "store.unavailable"
	case errors.Is(err, records.ErrNotFound) && w.id == FlowContentDelete:
		key = "content.not_found"
	}
	if rerr := e.say(ctx, userID, lang, key); rerr != nil {
		logger.LogEvent(ctx, logger.Flow, slog.LevelWarn, "flow.report", slog.String("err", rerr.Error()))
	}
}

// prompt renders the current step. prefix is shown above the prompt
// (validation errors); month positions a calendar step.
func (e *Engine) prompt(ctx context.Context, userID int64, lang i18n.Lang, w *wizard, s state.Session, prefix string, month time.Time, edit bool) (Outcome, error) {
	st, ok := w.step(StepID(s.Step))
	if !ok {
		e.states.Clear(userID)
		return Finished, fmt.Errorf("%s: unknown step %q", w.id, s.Step)
	}

	var msg Message
	switch st.Input {
	case InputCalendar:
		if month.IsZero() {
			month = e.minDate()
		}
		msg.Text = e.text(lang, st.Prompt, e.monthTitle(lang, month))
		msg.Choices = e.calendar(lang, st.ID, month)
	default:
		var args []any
		if st.Args != nil {
			a, err := st.Args(ctx, lang, s)
			if err != nil {
				e.states.Clear(userID)
				e.report(ctx, userID, lang, w, err)
				return Finished, nil
			}
			args = a
		}
		msg.Text = e.text(lang, st.Prompt, args...)
		if st.Choices != nil {
			rows, err := st.Choices(ctx, lang, s)
			if err != nil {
				e.states.Clear(userID)
				e.report(ctx, userID, lang, w, err)
				return Finished, nil
			}
			if len(rows) == 0 && st.Empty != "" {
				e.states.Clear(userID)
				return Finished, e.say(ctx, userID, lang, st.Empty)
			}
			msg.Choices = rows
		}
		msg.Choices = append(msg.Choices, e.controls(lang, st)...)
	}
	if prefix != "" {
		msg.Text = prefix + "\n\n" + msg.Text
	}
	msg.Edit = edit
	return Continued, e.out.Render(ctx, userID, msg)
}

func (e *Engine) controls(lang i18n.Lang, st Step) [][]Choice {
	var rows [][]Choice
	if st.Input == InputConfirm {
		rows = append(rows, []Choice{
			{Label: e.text(lang, "flow.yes"), Token: token(tokYes, st.ID, "")},
			{Label: e.text(lang, "flow.no"), Token: token(tokNo, st.ID, "")},
		})
		return rows
	}
	last := make([]Choice, 0, 2)
	if st.Skippable {
		last = append(last, Choice{Label: e.text(lang, "flow.skip_button"), Token: token(tokSkip, st.ID, "")})
	}
	last = append(last, Choice{Label: e.text(lang, "flow.cancel_button"), Token: CancelToken})
	return append(rows, last)
}
