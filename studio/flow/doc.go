// Package flow runs the multi-turn wizards of the studio bot: event and
// content authoring, yoga registration and broadcasts.
//
// Every wizard is a linear table of steps driven by a looplab/fsm machine
// ("next" between consecutive steps, "commit" from the last one, "cancel"
// from any). Input is validated per step; a rejected value re-prompts the
// same step and leaves the collected fields untouched. The commit is the
// only write a wizard performs and the conversation is cleared before it
// runs, whatever its result.
//
// The engine is transport agnostic. Prompts and keyboards go out through a
// Renderer; button presses come back as opaque selection tokens.
package flow
