package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/i18n"
)

// FlowID names a wizard.
type FlowID string

const (
	FlowEvent         FlowID = "event"
	FlowYoga          FlowID = "yoga"
	FlowBroadcast     FlowID = "broadcast"
	FlowContentAdd    FlowID = "content_add"
	FlowContentDelete FlowID = "content_delete"
)

// StepID tags a wizard step; it is what the conversation state stores.
type StepID string

const (
	stepDone      StepID = "done"
	stepCancelled StepID = "cancelled"
)

const (
	evNext   = "next"
	evCommit = "commit"
	evCancel = "cancel"
)

// InputKind tells the engine which user actions a step accepts.
type InputKind int

const (
	InputText InputKind = iota
	InputChoice
	InputCalendar
	InputConfirm
)

// Step describes one prompt of a wizard.
type Step struct {
	ID     StepID
	Prompt string
	// Field receives the accepted value; confirm steps leave it empty.
	Field string
	Input InputKind
	// FreeText lets a choice step accept typed answers as well.
	FreeText  bool
	Skippable bool
	// Empty replaces the prompt when Choices yields nothing and ends the
	// conversation.
	Empty string

	// Check validates typed input (and calendar dates) and returns the
	// value to store.
	Check checkFunc
	// Pick maps a pressed choice to the value to store. Nil stores the
	// token value as is.
	Pick    func(ctx context.Context, lang i18n.Lang, value string) (string, error)
	Args    func(ctx context.Context, lang i18n.Lang, s state.Session) ([]any, error)
	Choices func(ctx context.Context, lang i18n.Lang, s state.Session) ([][]Choice, error)
}

type commitFunc func(ctx context.Context, userID int64, lang i18n.Lang, s state.Session) error

type wizard struct {
	id     FlowID
	admin  bool
	steps  []Step
	index  map[StepID]int
	events fsm.Events
	commit commitFunc
}

func newWizard(id FlowID, admin bool, commit commitFunc, steps ...Step) *wizard {
	if len(steps) == 0 {
		panic("flow: wizard " + string(id) + " has no steps")
	}
	w := &wizard{
		id:     id,
		admin:  admin,
		steps:  steps,
		index:  make(map[StepID]int, len(steps)),
		commit: commit,
	}
	all := make([]string, 0, len(steps))
	for i, st := range steps {
		w.index[st.ID] = i
		all = append(all, string(st.ID))
		if i+1 < len(steps) {
			w.events = append(w.events, fsm.EventDesc{
				Name: evNext,
				Src:  []string{string(st.ID)},
				Dst:  string(steps[i+1].ID),
			})
		}
	}
	w.events = append(w.events,
		fsm.EventDesc{Name: evCommit, Src: []string{string(steps[len(steps)-1].ID)}, Dst: string(stepDone)},
		fsm.EventDesc{Name: evCancel, Src: all, Dst: string(stepCancelled)},
	)
	return w
}

func (w *wizard) first() Step { return w.steps[0] }

func (w *wizard) step(id StepID) (Step, bool) {
	i, ok := w.index[id]
	if !ok {
		return Step{}, false
	}
	return w.steps[i], true
}

func (w *wizard) isLast(id StepID) bool {
	return w.index[id] == len(w.steps)-1
}

// fire applies event to a machine positioned at from and returns where it
// landed. The machine lives for one turn; the session keeps the step tag.
func (w *wizard) fire(ctx context.Context, from StepID, event string) (StepID, error) {
	m := fsm.NewFSM(string(from), w.events, fsm.Callbacks{
		"enter_state": func(ctx context.Context, ev *fsm.Event) {
			logger.LogEvent(ctx, logger.Flow, slog.LevelDebug, "flow.transition",
				slog.String("flow", string(w.id)),
				slog.String("step", ev.Src),
				slog.String("next_step", ev.Dst),
			)
		},
	})
	if err := m.Event(ctx, event); err != nil {
		return from, fmt.Errorf("%s: %s from %s: %w", w.id, event, from, err)
	}
	return StepID(m.Current()), nil
}
