package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/format"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/studio/flow"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"

	tele "gopkg.in/telebot.v4"
)

// now is swapped in tests.
var now = time.Now

func (h *Handlers) unavailable(c tele.Context) error {
	return tghelpers.SendText(c, h.t(c, "store.unavailable"))
}

func (h *Handlers) listFailed(c tele.Context, collection string, err error) error {
	level := slog.LevelError
	if errors.Is(err, records.ErrUnavailable) || errors.Is(err, records.ErrWriteConflict) {
		level = slog.LevelWarn
	}
	logger.LogEvent(tghelpers.BuildContext(c), logger.Store, level, "listing.failed",
		slog.String("status", "fail"),
		slog.String("collection", collection),
		slog.String("err", err.Error()),
	)
	return h.unavailable(c)
}

// sendListing renders a bold title and escaped items as MarkdownV2.
func (h *Handlers) sendListing(c tele.Context, title string, items []string) error {
	var b strings.Builder
	b.WriteString(format.Bold(title))
	for _, it := range items {
		b.WriteString("\n\n")
		b.WriteString(format.V2(it))
	}
	return tghelpers.SendMDV2(c, b.String())
}

func eventDate(r records.Record) (time.Time, bool) {
	return tghelpers.ParseDateTime(r["date"], r["time"])
}

// eventsByDate orders dated events chronologically; undated ones go last.
func eventsByDate(a, b records.Record) bool {
	ta, okA := eventDate(a)
	tb, okB := eventDate(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	}
	return false
}

func localized(r records.Record, field string) map[i18n.Lang]string {
	out := make(map[i18n.Lang]string, len(i18n.Supported))
	for _, l := range i18n.Supported {
		out[l] = r[field+"_"+string(l)]
	}
	return out
}

func (h *Handlers) showEvents(c tele.Context) error {
	today := now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
	return h.listEvents(c, today, "events")
}

// showAllEvents is the admin overview: every event, past ones included.
func (h *Handlers) showAllEvents(c tele.Context) error {
	return h.listEvents(c, time.Time{}, "admin.events")
}

// listEvents renders events by date, skipping those dated before from.
// Catalog keys are looked up under prefix.
func (h *Handlers) listEvents(c tele.Context, from time.Time, prefix string) error {
	lang := h.lang(c)
	recs, err := h.records.SortedRecords(tghelpers.BuildContext(c), records.Events.Name, eventsByDate)
	if err != nil {
		return h.listFailed(c, records.Events.Name, err)
	}

	items := make([]string, 0, len(recs))
	for _, r := range recs {
		if t, ok := eventDate(r); ok && t.Before(from) {
			continue
		}
		items = append(items, h.cat.Resolvef("events.item", lang,
			flow.DisplayDate(r["date"]),
			r["time"],
			h.cat.Pick(localized(r, "title"), lang),
			r["location"],
			r["price"],
			h.cat.Pick(localized(r, "description"), lang),
		))
	}
	if len(items) == 0 {
		return tghelpers.SendText(c, h.cat.Resolve(prefix+".empty", lang))
	}
	return h.sendListing(c, h.cat.Resolve(prefix+".title", lang), items)
}

func (h *Handlers) showSchedule(c tele.Context) error {
	lang := h.lang(c)
	recs, err := h.records.ListRecords(tghelpers.BuildContext(c), records.Schedule.Name)
	if err != nil {
		return h.listFailed(c, records.Schedule.Name, err)
	}
	if len(recs) == 0 {
		return tghelpers.SendText(c, h.cat.Resolve("schedule.empty", lang))
	}
	items := make([]string, 0, len(recs))
	for _, r := range recs {
		item := h.cat.Resolvef("schedule.item", lang, r["day"], r["time"], h.cat.Pick(localized(r, "class"), lang))
		if notes := strings.TrimSpace(r["notes"]); notes != "" {
			item += "\n" + notes
		}
		items = append(items, item)
	}
	return h.sendListing(c, h.cat.Resolve("schedule.title", lang), items)
}

func (h *Handlers) showContent(c tele.Context) error {
	lang := h.lang(c)
	recs, err := h.records.ListRecords(tghelpers.BuildContext(c), records.Content.Name)
	if err != nil {
		return h.listFailed(c, records.Content.Name, err)
	}
	if len(recs) == 0 {
		return tghelpers.SendText(c, h.cat.Resolve("content.empty", lang))
	}
	items := make([]string, 0, len(recs))
	for _, r := range recs {
		body := r["description"]
		if content := strings.TrimSpace(r["content"]); content != "" {
			body = strings.TrimSpace(body + "\n" + content)
		}
		items = append(items, h.cat.Resolvef("content.item", lang, r["title"], body))
	}
	return h.sendListing(c, h.cat.Resolve("content.title", lang), items)
}

// showRegistrations lists the most recent yoga registrations, newest first.
func (h *Handlers) showRegistrations(c tele.Context) error {
	lang := h.lang(c)
	recs, err := h.records.ListRecords(tghelpers.BuildContext(c), records.YogaRegistrations.Name)
	if err != nil {
		return h.listFailed(c, records.YogaRegistrations.Name, err)
	}
	if len(recs) == 0 {
		return tghelpers.SendText(c, h.cat.Resolve("admin.registrations.empty", lang))
	}
	items := make([]string, 0, min(len(recs), h.opts.RegistrationsLimit))
	for i := len(recs) - 1; i >= 0 && len(items) < h.opts.RegistrationsLimit; i-- {
		r := recs[i]
		item := h.cat.Resolvef("admin.registrations.item", lang,
			r["name"], r["email"], flow.DisplayDate(r["date"]), r["class_type"])
		if comment := strings.TrimSpace(r["comment"]); comment != "" {
			item += "\n💬 " + comment
		}
		items = append(items, item)
	}
	return h.sendListing(c, h.cat.Resolve("admin.registrations.title", lang), items)
}
