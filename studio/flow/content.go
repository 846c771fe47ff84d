package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
)

func (e *Engine) contentAddWizard() *wizard {
	return newWizard(FlowContentAdd, true, e.commitContentAdd,
		Step{ID: "title", Prompt: "content.add_title", Field: "title", Check: checkText(MaxTextLength)},
		Step{ID: "description", Prompt: "content.add_description", Field: "description", Check: checkText(MaxTextLength)},
		Step{ID: "body", Prompt: "content.add_body", Field: "body", Check: checkText(MaxTextLength)},
		Step{
			ID:     "confirm",
			Prompt: "content.confirm",
			Input:  InputConfirm,
			Args: func(_ context.Context, _ i18n.Lang, s state.Session) ([]any, error) {
				return []any{s.Field("title"), s.Field("description")}, nil
			},
		},
	)
}

func (e *Engine) commitContentAdd(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error {
	id, err := e.store.AppendWithID(ctx, records.Content.Name, func(id int) []string {
		return []string{
			strconv.Itoa(id),
			s.Field("title"),
			s.Field("description"),
			s.Field("body"),
			strconv.FormatInt(userID, 10),
		}
	})
	if err != nil {
		return err
	}
	return e.say(ctx, userID, lang, "content.saved", id)
}

func (e *Engine) contentDeleteWizard() *wizard {
	return newWizard(FlowContentDelete, true, e.commitContentDelete,
		Step{
			ID:       "pick",
			Prompt:   "content.delete_pick",
			Field:    "id",
			Input:    InputChoice,
			FreeText: true,
			Empty:    "content.empty",
			Choices:  e.contentChoices,
			Check:    e.contentByPosition,
		},
	)
}

func (e *Engine) contentChoices(ctx context.Context, _ i18n.Lang, _ state.Session) ([][]Choice, error) {
	items, err := e.store.ListRecords(ctx, records.Content.Name)
	if err != nil {
		return nil, err
	}
	rows := make([][]Choice, 0, len(items))
	for i, it := range items {
		rows = append(rows, []Choice{{
			Label: fmt.Sprintf("%d. %s", i+1, it["title"]),
			Token: token(tokChoose, "pick", it["id"]),
		}})
	}
	return rows, nil
}

// contentByPosition maps a typed list position to the item id.
func (e *Engine) contentByPosition(ctx context.Context, in string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil {
		return "", invalid("err.choice")
	}
	items, err := e.store.ListRecords(ctx, records.Content.Name)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(items) {
		return "", invalid("err.choice")
	}
	return items[n-1]["id"], nil
}

func (e *Engine) commitContentDelete(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error {
	row, err := e.store.FindRowByValue(ctx, records.Content.Name, records.Content.Column("id"), s.Field("id"))
	if errors.Is(err, records.ErrNotFound) {
		return e.say(ctx, userID, lang, "content.not_found")
	}
	if err != nil {
		return err
	}
	if err := e.store.DeleteRow(ctx, records.Content.Name, row); err != nil {
		return err
	}
	return e.say(ctx, userID, lang, "content.deleted")
}
