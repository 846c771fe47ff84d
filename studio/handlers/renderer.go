package handlers

import (
	"context"
	"errors"

	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/core/telegram/keyboard"
	"github.com/m3rciful/studiobot/studio/flow"

	tele "gopkg.in/telebot.v4"
)

// Renderer delivers flow engine messages through the Bot API.
type Renderer struct {
	api tele.API
}

// NewRenderer wraps api.
func NewRenderer(api tele.API) *Renderer {
	return &Renderer{api: api}
}

// Render sends msg to the user's private chat. Edit requests replace the
// pressed message when the turn came from a button.
func (r *Renderer) Render(ctx context.Context, userID int64, msg flow.Message) error {
	opts := &tele.SendOptions{ReplyMarkup: inlineMarkup(msg.Choices)}
	if msg.Edit {
		if m, ok := editableFrom(ctx); ok {
			_, err := r.api.Edit(m, msg.Text, opts)
			if err == nil || errors.Is(err, tele.ErrSameMessageContent) {
				return nil
			}
		}
	}
	return tghelpers.SendTo(ctx, r.api, userID, msg.Text, opts)
}

func inlineMarkup(choices [][]flow.Choice) *tele.ReplyMarkup {
	if len(choices) == 0 {
		return nil
	}
	rows := make([][]keyboard.Button, 0, len(choices))
	for _, row := range choices {
		btns := make([]keyboard.Button, 0, len(row))
		for _, ch := range row {
			btns = append(btns, keyboard.Button{Label: ch.Label, Unique: cbFlow, Data: ch.Token})
		}
		rows = append(rows, btns)
	}
	return keyboard.Inline(rows...)
}
