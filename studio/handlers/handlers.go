// Package handlers binds Telegram updates to the studio: the main menu,
// listings, the admin panel and the bridge into the flow engine.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/studiobot/core/logger"
	tg "github.com/m3rciful/studiobot/core/telegram"
	"github.com/m3rciful/studiobot/core/telegram/commands"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/router"
	"github.com/m3rciful/studiobot/studio/flow"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques.
const (
	cbLang  = "lang"
	cbAdmin = "admin"
	cbFlow  = "flow"
)

// Flows is the flow engine as seen from the transport.
type Flows interface {
	InProgress(userID int64) bool
	Start(ctx context.Context, userID int64, id flow.FlowID) error
	OnFreeText(ctx context.Context, userID int64, text string) (flow.Outcome, error)
	OnSelection(ctx context.Context, userID int64, raw string) (flow.Outcome, error)
	Cancel(ctx context.Context, userID int64) (bool, error)
}

// Records is the read side of the record store used by listings.
type Records interface {
	ListRecords(ctx context.Context, name string) ([]records.Record, error)
	SortedRecords(ctx context.Context, name string, less func(a, b records.Record) bool) ([]records.Record, error)
}

// Users stores language preferences and activity.
type Users interface {
	Language(userID int64) (i18n.Lang, bool)
	SetLanguage(ctx context.Context, userID int64, lang i18n.Lang) error
	Touch(ctx context.Context, userID int64, hint i18n.Lang) error
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Flows   Flows
	Records Records
	Users   Users
	Catalog *i18n.Catalog
}

// Options tunes Handlers.
type Options struct {
	ShopURL string
	IsAdmin func(userID int64) bool
	// RegistrationsLimit caps the admin registrations view; zero means 20.
	RegistrationsLimit int
}

// Handlers serves every user-facing update.
type Handlers struct {
	flows   Flows
	records Records
	users   Users
	cat     *i18n.Catalog
	opts    Options
}

// New constructs Handlers.
func New(deps Deps, opts Options) *Handlers {
	if opts.RegistrationsLimit <= 0 {
		opts.RegistrationsLimit = 20
	}
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	return &Handlers{
		flows:   deps.Flows,
		records: deps.Records,
		users:   deps.Users,
		cat:     deps.Catalog,
		opts:    opts,
	}
}

// Register adds commands, callbacks and the menu fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.onStart}},
		{"/cancel", commands.Command{Handler: h.onCancel, Aliases: []string{"/stop"}}},
		{"/admin", commands.Command{Handler: h.onAdmin, AdminOnly: true}},
	}
	for _, c := range cmds {
		key := "cmd." + strings.TrimPrefix(c.name, "/")
		c.cmd.Description = h.cat.Resolve(key, h.cat.Default())
		c.cmd.Descriptions = h.translations(key)
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	for key, fn := range map[string]tele.HandlerFunc{
		cbLang:  h.onLanguagePicked,
		cbAdmin: h.onAdminAction,
		cbFlow:  h.onFlowSelection,
	} {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.onMenuText)
	reg.SetCallbackNotFound(h.UnknownCallback())
	return nil
}

// Routes binds the registry and the text pipeline to Telegram endpoints.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       h.opts.IsAdmin,
		OnAdminReject: h.onForbidden,
	})
	routes = append(routes, router.TextRoutes(h, reg, router.TextOptions{UnknownText: h.UnknownText()})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: h.UnknownCallback()}))
	return routes
}

// Activity records user activity, creating the profile on first contact.
func Activity(u Users) tg.Middleware {
	return tg.Middleware{Name: "activity", Use: func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if id := tghelpers.SenderID(c); id != 0 && u != nil {
				ctx := tghelpers.BuildContext(c)
				if err := u.Touch(ctx, id, i18n.Lang(tghelpers.LanguageCode(c))); err != nil {
					logger.LogEvent(ctx, logger.Users, slog.LevelWarn, "users.touch",
						slog.String("status", "fail"),
						slog.String("err", err.Error()),
					)
				}
			}
			return next(c)
		}
	}}
}

// UnknownText answers text that matched nothing.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, h.t(c, "unknown"), &tele.SendOptions{ReplyMarkup: h.mainMenu(h.lang(c))})
	}
}

// UnknownCallback acknowledges buttons nobody handles.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: h.t(c, "unknown")})
	}
}

// lang resolves the display language: stored choice, then the Telegram
// client language, then the catalog default.
func (h *Handlers) lang(c tele.Context) i18n.Lang {
	if h.users != nil {
		if l, ok := h.users.Language(tghelpers.SenderID(c)); ok {
			return h.cat.Normalize(l)
		}
	}
	if l, ok := i18n.Parse(tghelpers.LanguageCode(c)); ok {
		return l
	}
	return h.cat.Default()
}

func (h *Handlers) t(c tele.Context, key string, args ...any) string {
	if len(args) == 0 {
		return h.cat.Resolve(key, h.lang(c))
	}
	return h.cat.Resolvef(key, h.lang(c), args...)
}

func (h *Handlers) translations(key string) map[string]string {
	out := make(map[string]string, len(i18n.Supported))
	for _, l := range i18n.Supported {
		out[string(l)] = h.cat.Resolve(key, l)
	}
	return out
}
