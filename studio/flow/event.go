package flow

import (
	"context"
	"strconv"

	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
)

// eventFields are collected in this order and stored after the id.
var eventFields = []string{
	"title_uk", "title_en", "title_de",
	"date", "time", "location", "price",
	"description_uk", "description_en", "description_de",
}

func (e *Engine) eventWizard() *wizard {
	steps := make([]Step, 0, len(eventFields))
	for _, f := range eventFields {
		st := Step{ID: StepID(f), Prompt: "event." + f, Field: f, Check: checkText(MaxTextLength)}
		switch f {
		case "date":
			st.Check = checkDate
		case "time":
			st.Check = checkTime
		}
		steps = append(steps, st)
	}
	return newWizard(FlowEvent, true, e.commitEvent, steps...)
}

func (e *Engine) commitEvent(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error {
	id, err := e.store.AppendWithID(ctx, records.Events.Name, func(id int) []string {
		row := make([]string, 0, records.Events.Width())
		row = append(row, strconv.Itoa(id))
		for _, f := range eventFields {
			row = append(row, s.Field(f))
		}
		return row
	})
	if err != nil {
		return err
	}
	return e.say(ctx, userID, lang, "event.saved", id)
}
