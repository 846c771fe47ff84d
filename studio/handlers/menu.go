package handlers

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/keyboard"
	"github.com/m3rciful/studiobot/studio/flow"
	"github.com/m3rciful/studiobot/studio/i18n"

	tele "gopkg.in/telebot.v4"
)

type menuAction string

const (
	actYoga     menuAction = "yoga"
	actSchedule menuAction = "schedule"
	actContent  menuAction = "content"
	actShop     menuAction = "shop"
	actAbout    menuAction = "about"
	actLang     menuAction = "lang"
	actBack     menuAction = "back"
)

var menuLayout = [][]menuAction{
	{actEvents, actYoga},
	{actSchedule, actContent},
	{actShop, actAbout},
	{actLang, actBack},
}

func (h *Handlers) mainMenu(lang i18n.Lang) *tele.ReplyMarkup {
	rows := make([][]string, 0, len(menuLayout))
	for _, row := range menuLayout {
		labels := make([]string, 0, len(row))
		for _, a := range row {
			labels = append(labels, h.cat.Resolve("menu."+string(a), lang))
		}
		rows = append(rows, labels)
	}
	return keyboard.Reply(rows...)
}

// matchMenu maps a keyboard label to its action. Labels of every language
// are accepted so a keyboard sent before a language switch keeps working.
func (h *Handlers) matchMenu(text string, lang i18n.Lang) (menuAction, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	langs := append([]i18n.Lang{lang}, i18n.Supported...)
	for _, l := range langs {
		for _, row := range menuLayout {
			for _, a := range row {
				if h.cat.Resolve("menu."+string(a), l) == text {
					return a, true
				}
			}
		}
	}
	return "", false
}

func (h *Handlers) sendMenu(c tele.Context) error {
	lang := h.lang(c)
	return tghelpers.SendText(c, h.cat.Resolve("menu.title", lang), &tele.SendOptions{ReplyMarkup: h.mainMenu(lang)})
}

func (h *Handlers) onStart(c tele.Context) error {
	ctx := h.flowContext(c)
	if h.flows.InProgress(tghelpers.SenderID(c)) {
		if _, err := h.flows.Cancel(ctx, tghelpers.SenderID(c)); err != nil {
			return err
		}
	}
	if err := tghelpers.SendText(c, h.t(c, "welcome")); err != nil {
		return err
	}
	return h.sendLanguagePicker(c)
}

func (h *Handlers) sendLanguagePicker(c tele.Context) error {
	btns := make([]keyboard.Button, 0, len(i18n.Supported))
	for _, l := range i18n.Supported {
		btns = append(btns, keyboard.Button{Label: h.cat.Resolve("lang.name", l), Unique: cbLang, Data: string(l)})
	}
	return tghelpers.SendText(c, h.t(c, "lang.choose"), &tele.SendOptions{
		ReplyMarkup: keyboard.Grid(btns, 0),
	})
}

func (h *Handlers) onLanguagePicked(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, payload := callbacks.ParseCallbackData(c.Callback())
	lang, ok := i18n.Parse(payload)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: h.t(c, "lang.unsupported")})
	}
	if err := h.users.SetLanguage(ctx, tghelpers.SenderID(c), lang); err != nil {
		logger.LogEvent(ctx, logger.Users, slog.LevelWarn, "users.language",
			slog.String("status", "fail"),
			slog.String("lang", string(lang)),
			slog.String("err", err.Error()),
		)
		return h.unavailable(c)
	}
	_ = c.Edit(h.cat.Resolvef("lang.set", lang, h.cat.Resolve("lang.name", lang)))
	return tghelpers.SendText(c, h.cat.Resolve("menu.title", lang), &tele.SendOptions{ReplyMarkup: h.mainMenu(lang)})
}

func (h *Handlers) onCancel(c tele.Context) error {
	if _, err := h.flows.Cancel(h.flowContext(c), tghelpers.SenderID(c)); err != nil {
		return err
	}
	return h.sendMenu(c)
}

// onMenuText is the registry text fallback: it runs only when no
// conversation is active.
func (h *Handlers) onMenuText(c tele.Context) error {
	action, ok := h.matchMenu(c.Text(), h.lang(c))
	if !ok {
		return h.UnknownText()(c)
	}
	return h.runMenu(c, action)
}

func (h *Handlers) runMenu(c tele.Context, action menuAction) error {
	tghelpers.WithHandler(c, "menu."+string(action))
	switch action {
	case actEvents:
		return h.showEvents(c)
	case actYoga:
		return h.startFlow(c, flow.FlowYoga)
	case actSchedule:
		return h.showSchedule(c)
	case actContent:
		return h.showContent(c)
	case actShop:
		return tghelpers.SendText(c, h.t(c, "shop.text", h.opts.ShopURL))
	case actAbout:
		return tghelpers.SendText(c, h.t(c, "about.text"))
	case actLang:
		return h.sendLanguagePicker(c)
	case actBack:
		return h.sendMenu(c)
	}
	return h.UnknownText()(c)
}
