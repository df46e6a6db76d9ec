package session

import (
	"fmt"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

type State string

const (
	StateEmpty      State = "empty"
	StateLoaded     State = "loaded"
	StateEditing    State = "editing"
	StateQueued     State = "queued"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// Nothing ever moves back to empty.
var transitions = map[State][]State{
	StateEmpty:      {StateLoaded},
	StateLoaded:     {StateEditing},
	StateEditing:    {StateEditing, StateQueued},
	StateQueued:     {StateQueued, StateEditing, StateCommitting},
	StateCommitting: {StateCommitted, StateFailed},
	StateCommitted:  {StateLoaded, StateEditing},
	StateFailed:     {StateQueued, StateEditing},
}

func (s State) CanTransition(to State) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns to, or a *TransitionError if the move is not allowed.
func (s State) Transition(to State) (State, error) {
	if !s.CanTransition(to) {
		return s, &TransitionError{From: s, To: to}
	}
	return to, nil
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return domain.ErrInvalidState
}
