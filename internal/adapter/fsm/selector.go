package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: Selector implements domain.TransitionSelector.
var _ domain.TransitionSelector = (*Selector)(nil)

// edgePrefix marks FSM destinations as transition IDs rather than states, so
// a self-loop never collapses into a looplab NoTransitionError.
const edgePrefix = "edge:"

// Selector implements domain.TransitionSelector using looplab/fsm.
// It creates a short-lived FSM per call, seeded with the current state and
// only the transitions leaving it. looplab/fsm is stateful, so machines are
// never shared between calls.
type Selector struct{}

// New creates a new FSM-backed transition selector.
func New() *Selector {
	return &Selector{}
}

func buildMachine(from domain.StateDefinition, outgoing []domain.TransitionDefinition) (*loopfsm.FSM, map[string]domain.TransitionDefinition) {
	byEdge := make(map[string]domain.TransitionDefinition, len(outgoing))
	events := make([]loopfsm.EventDesc, 0, len(outgoing))
	for _, tr := range outgoing {
		if tr.FromStateID != from.ID {
			continue
		}
		dst := edgePrefix + tr.ID
		byEdge[dst] = tr
		events = append(events, loopfsm.EventDesc{
			Name: string(tr.Action),
			Src:  []string{from.ID},
			Dst:  dst,
		})
	}
	return loopfsm.NewFSM(from.ID, events, nil), byEdge
}

// Select fires the action against the state's outgoing transitions and
// returns the transition it lands on. Returns a domain.TransitionError if
// the action is not available from the state.
func (s *Selector) Select(ctx context.Context, from domain.StateDefinition, action domain.Action, outgoing []domain.TransitionDefinition) (domain.TransitionDefinition, error) {
	machine, byEdge := buildMachine(from, outgoing)

	if err := machine.Event(ctx, string(action)); err != nil {
		var unknownEvent loopfsm.UnknownEventError
		var invalidEvent loopfsm.InvalidEventError
		if errors.As(err, &unknownEvent) || errors.As(err, &invalidEvent) {
			return domain.TransitionDefinition{}, &domain.TransitionError{
				Action:  action,
				Current: from.Code,
			}
		}
		return domain.TransitionDefinition{}, err
	}

	tr, ok := byEdge[machine.Current()]
	if !ok {
		return domain.TransitionDefinition{}, &domain.TransitionError{Action: action, Current: from.Code}
	}
	return tr, nil
}

// Available lists the actions that can be fired from the state, in the
// order of the outgoing transitions.
func (s *Selector) Available(from domain.StateDefinition, outgoing []domain.TransitionDefinition) []domain.Action {
	machine, _ := buildMachine(from, outgoing)

	can := make(map[string]bool)
	for _, name := range machine.AvailableTransitions() {
		can[name] = true
	}

	out := make([]domain.Action, 0, len(can))
	for _, tr := range outgoing {
		if can[string(tr.Action)] {
			out = append(out, tr.Action)
			delete(can, string(tr.Action))
		}
	}
	return out
}
