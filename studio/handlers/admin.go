package handlers

import (
	"github.com/m3rciful/studiobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/keyboard"
	"github.com/m3rciful/studiobot/studio/flow"

	tele "gopkg.in/telebot.v4"
)

const (
	actRegistrations = "registrations"
	actEvents        = "events"
)

// adminActions maps panel buttons to wizards; the last two are listings.
var adminActions = []struct {
	key  string
	flow flow.FlowID
}{
	{"add_event", flow.FlowEvent},
	{"add_content", flow.FlowContentAdd},
	{"delete_content", flow.FlowContentDelete},
	{"broadcast", flow.FlowBroadcast},
	{actRegistrations, ""},
	{actEvents, ""},
}

func (h *Handlers) onForbidden(c tele.Context) error {
	return tghelpers.SendText(c, h.t(c, "admin.forbidden"))
}

func (h *Handlers) onAdmin(c tele.Context) error {
	lang := h.lang(c)
	btns := make([]keyboard.Button, 0, len(adminActions))
	for _, a := range adminActions {
		btns = append(btns, keyboard.Button{
			Label:  h.cat.Resolve("admin."+a.key, lang),
			Unique: cbAdmin,
			Data:   a.key,
		})
	}
	return tghelpers.SendText(c, h.cat.Resolve("admin.title", lang), &tele.SendOptions{
		ReplyMarkup: keyboard.Column(btns),
	})
}

func (h *Handlers) onAdminAction(c tele.Context) error {
	if !h.opts.IsAdmin(tghelpers.SenderID(c)) {
		return h.onForbidden(c)
	}
	_, payload := callbacks.ParseCallbackData(c.Callback())
	for _, a := range adminActions {
		if a.key != payload {
			continue
		}
		switch a.key {
		case actRegistrations:
			return h.showRegistrations(c)
		case actEvents:
			return h.showAllEvents(c)
		}
		return h.startFlow(c, a.flow)
	}
	return h.UnknownCallback()(c)
}
