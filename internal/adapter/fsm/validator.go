package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// buildEvents converts one definition into looplab/fsm EventDesc format.
// Events are named after their destination state, so requesting a target
// state is firing the event of the same name. Edges sharing a destination
// are consolidated into one EventDesc with several source states.
func buildEvents(def domain.Definition) []loopfsm.EventDesc {
	grouped := make(map[string][]string)
	order := make([]string, 0)

	for _, e := range def.Edges {
		dst := string(e.To)
		if _, exists := grouped[dst]; !exists {
			order = append(order, dst)
		}
		grouped[dst] = append(grouped[dst], string(e.From))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, dst := range order {
		out = append(out, loopfsm.EventDesc{
			Name: dst,
			Src:  grouped[dst],
			Dst:  dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Validate call, initialized with
// the entity's current state, because looplab/fsm tracks state internally.
type Validator struct {
	events map[domain.EntityType][]loopfsm.EventDesc
}

// New creates an FSM-backed validator for every type in the registry.
func New(registry *domain.Registry) *Validator {
	v := &Validator{events: make(map[domain.EntityType][]loopfsm.EventDesc)}
	for _, t := range registry.Types() {
		def, _ := registry.Definition(t)
		v.events[t] = buildEvents(def)
	}
	return v
}

// Validate checks that target is reachable from current in one step.
// Returns a domain.IllegalTransitionError if it is not.
func (v *Validator) Validate(ctx context.Context, entityType domain.EntityType, current, target domain.Status) error {
	events, ok := v.events[entityType]
	if !ok {
		return &domain.UnknownEntityTypeError{Type: entityType}
	}

	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(target)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return &domain.IllegalTransitionError{
				Type:    entityType,
				Current: current,
				Target:  target,
			}
		}
		return err
	}

	if domain.Status(machine.Current()) != target {
		return &domain.IllegalTransitionError{Type: entityType, Current: current, Target: target}
	}
	return nil
}
