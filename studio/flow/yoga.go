package flow

import (
	"context"
	"strconv"
	"time"

	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
)

var classTypes = []string{"hatha", "vinyasa", "yin", "private"}

func (e *Engine) yogaWizard() *wizard {
	return newWizard(FlowYoga, false, e.commitYoga,
		Step{ID: "name", Prompt: "yoga.name", Field: "name", Check: checkText(MaxTextLength)},
		Step{ID: "email", Prompt: "yoga.email", Field: "email", Check: checkEmail},
		Step{ID: "date", Prompt: "yoga.date", Field: "date", Input: InputCalendar, Check: e.checkFutureDate},
		Step{
			ID:       "class_type",
			Prompt:   "yoga.class_type",
			Field:    "class_type",
			Input:    InputChoice,
			FreeText: true,
			Check:    checkText(MaxTextLength),
			Choices:  e.classChoices,
			Pick:     e.classLabel,
		},
		Step{ID: "comment", Prompt: "yoga.comment", Field: "comment", Skippable: true, Check: checkText(MaxTextLength)},
	)
}

func (e *Engine) classChoices(_ context.Context, lang i18n.Lang, _ state.Session) ([][]Choice, error) {
	var rows [][]Choice
	for i := 0; i < len(classTypes); i += 2 {
		row := make([]Choice, 0, 2)
		for _, c := range classTypes[i:min(i+2, len(classTypes))] {
			row = append(row, Choice{Label: e.text(lang, "class."+c), Token: token(tokChoose, "class_type", c)})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classLabel stores the class as the user saw it.
func (e *Engine) classLabel(_ context.Context, lang i18n.Lang, value string) (string, error) {
	for _, c := range classTypes {
		if c == value {
			return e.text(lang, "class."+c), nil
		}
	}
	return "", invalid("err.choice")
}

func (e *Engine) commitYoga(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error {
	registered := e.now().UTC().Format(time.RFC3339)
	_, err := e.store.AppendWithID(ctx, records.YogaRegistrations.Name, func(id int) []string {
		return []string{
			strconv.Itoa(id),
			s.Field("name"),
			s.Field("email"),
			s.Field("date"),
			s.Field("class_type"),
			s.Field("comment"),
			registered,
		}
	})
	if err != nil {
		return err
	}
	return e.say(ctx, userID, lang, "yoga.saved", s.Field("name"), DisplayDate(s.Field("date")))
}

// DisplayDate renders a stored YYYY-MM-DD date as DD.MM.YYYY and returns
// anything else unchanged.
func DisplayDate(v string) string {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return v
	}
	return t.Format("02.01.2006")
}
