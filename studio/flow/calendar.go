package flow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/studiobot/studio/i18n"
)

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (e *Engine) monthTitle(lang i18n.Lang, month time.Time) string {
	name := month.Month().String()
	if names := strings.Fields(e.cat.Resolve("calendar.months", lang)); len(names) == 12 {
		name = names[month.Month()-1]
	}
	return fmt.Sprintf("%s %d", name, month.Year())
}

// calendar lays out one month, Monday first. Days before tomorrow and
// padding cells are inert; the last row navigates months or cancels.
func (e *Engine) calendar(lang i18n.Lang, step StepID, month time.Time) [][]Choice {
	minDate := e.minDate()
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, minDate.Location())
	blank := Choice{Label: " ", Token: noopToken}

	header := make([]Choice, 0, 7)
	for _, wd := range strings.Fields(e.cat.Resolve("calendar.weekdays", lang)) {
		header = append(header, Choice{Label: wd, Token: noopToken})
	}
	rows := [][]Choice{header}

	week := make([]Choice, 0, 7)
	for i := 0; i < (int(first.Weekday())+6)%7; i++ {
		week = append(week, blank)
	}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		c := Choice{Label: strconv.Itoa(d.Day()), Token: noopToken}
		if !d.Before(minDate) {
			c.Token = token(tokDate, step, d.Format(dateLayout))
		}
		week = append(week, c)
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]Choice, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, blank)
		}
		rows = append(rows, week)
	}

	prev := first.AddDate(0, -1, 0)
	prevTok := token(tokMonth, step, prev.Format(monthLayout))
	if prev.Before(monthStart(minDate)) {
		prevTok = noopToken
	}
	next := first.AddDate(0, 1, 0)
	return append(rows, []Choice{
		{Label: "«", Token: prevTok},
		{Label: e.cat.Resolve("calendar.menu", lang), Token: CancelToken},
		{Label: "»", Token: token(tokMonth, step, next.Format(monthLayout))},
	})
}
