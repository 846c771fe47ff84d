package handlers

import (
	"context"
	"errors"

	"github.com/m3rciful/studiobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/studiobot/core/telegram/helpers"
	"github.com/m3rciful/studiobot/studio/flow"

	tele "gopkg.in/telebot.v4"
)

// InProgress reports whether the user is inside a wizard.
func (h *Handlers) InProgress(userID int64) bool {
	return h.flows.InProgress(userID)
}

// HandleText feeds a message to the active wizard. Main-menu buttons
// leave the wizard: "back" just shows the menu, others run their action.
func (h *Handlers) HandleText(c tele.Context) error {
	ctx := h.flowContext(c)
	userID := tghelpers.SenderID(c)

	if action, ok := h.matchMenu(c.Text(), h.lang(c)); ok {
		if _, err := h.flows.Cancel(ctx, userID); err != nil {
			return err
		}
		return h.runMenu(c, action)
	}

	out, err := h.flows.OnFreeText(ctx, userID, c.Text())
	return h.afterTurn(c, out, err)
}

func (h *Handlers) onFlowSelection(c tele.Context) error {
	_, payload := callbacks.ParseCallbackData(c.Callback())
	ctx := h.flowContext(c)
	if m := c.Message(); m != nil {
		ctx = withEditable(ctx, m)
	}
	out, err := h.flows.OnSelection(ctx, tghelpers.SenderID(c), payload)
	if out == flow.Ignored && err == nil {
		// the conversation behind this keyboard is gone
		if m := c.Message(); m != nil {
			_ = c.Edit(m.Text)
		}
		return nil
	}
	return h.afterTurn(c, out, err)
}

// afterTurn shows the main menu once a wizard ends. Validation and
// forbidden errors were already rendered by the engine.
func (h *Handlers) afterTurn(c tele.Context, out flow.Outcome, err error) error {
	if err != nil && !errors.Is(err, flow.ErrValidation) && !errors.Is(err, flow.ErrForbidden) {
		return err
	}
	if out == flow.Finished {
		return h.sendMenu(c)
	}
	return nil
}

func (h *Handlers) startFlow(c tele.Context, id flow.FlowID) error {
	err := h.flows.Start(h.flowContext(c), tghelpers.SenderID(c), id)
	if errors.Is(err, flow.ErrForbidden) {
		return nil
	}
	return err
}

// flowContext hands the engine the language menus are shown in, so
// prompts match them for users without a stored choice.
func (h *Handlers) flowContext(c tele.Context) context.Context {
	return flow.WithLanguage(tghelpers.BuildContext(c), h.lang(c))
}

type editableKey struct{}

// withEditable remembers the message whose button was pressed so the
// renderer can edit it in place.
func withEditable(ctx context.Context, m tele.Editable) context.Context {
	return context.WithValue(ctx, editableKey{}, m)
}

func editableFrom(ctx context.Context) (tele.Editable, bool) {
	m, ok := ctx.Value(editableKey{}).(tele.Editable)
	return m, ok && m != nil
}
