package domain

import (
	"fmt"
	"slices"
)

// Registry holds the lifecycle definition of every known entity type.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	defs  map[EntityType]Definition
	order []EntityType
}

// NewRegistry validates the given definitions and indexes them by type.
// Any inconsistency is a configuration error and should stop startup.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[EntityType]Definition, len(defs))}
	for _, def := range defs {
		if _, dup := r.defs[def.Type]; dup {
			return nil, fmt.Errorf("entity type %q registered twice", def.Type)
		}
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("entity type %q: %w", def.Type, err)
		}
		r.defs[def.Type] = def
		r.order = append(r.order, def.Type)
	}
	return r, nil
}

// DefaultRegistry returns a registry with the built-in definitions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Definitions()...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateDefinition(def Definition) error {
	if def.Type == "" {
		return fmt.Errorf("missing type")
	}
	if !slices.Contains(def.States, def.Initial) {
		return fmt.Errorf("initial state %q is not declared", def.Initial)
	}
	for _, s := range def.Terminal {
		if !slices.Contains(def.States, s) {
			return fmt.Errorf("terminal state %q is not declared", s)
		}
	}

	type pair struct{ from, to Status }
	seen := make(map[pair]bool, len(def.Edges))
	for _, e := range def.Edges {
		if !slices.Contains(def.States, e.From) || !slices.Contains(def.States, e.To) {
			return fmt.Errorf("edge %s -> %s uses an undeclared state", e.From, e.To)
		}
		if slices.Contains(def.Terminal, e.From) {
			return fmt.Errorf("edge %s -> %s leaves terminal state", e.From, e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("self edge on %q", e.From)
		}
		if e.Permission == "" {
			return fmt.Errorf("edge %s -> %s has no permission", e.From, e.To)
		}
		p := pair{e.From, e.To}
		if seen[p] {
			return fmt.Errorf("edge %s -> %s declared twice", e.From, e.To)
		}
		seen[p] = true
	}
	return nil
}

// Types lists registered entity types in registration order.
func (r *Registry) Types() []EntityType {
	return slices.Clone(r.order)
}

// Definition returns the lifecycle of the given entity type.
func (r *Registry) Definition(t EntityType) (Definition, error) {
	def, ok := r.defs[t]
	if !ok {
		return Definition{}, &UnknownEntityTypeError{Type: t}
	}
	return def, nil
}

// TransitionsFor returns every declared edge of the entity type.
func (r *Registry) TransitionsFor(t EntityType) ([]Edge, error) {
	def, err := r.Definition(t)
	if err != nil {
		return nil, err
	}
	return slices.Clone(def.Edges), nil
}

// IsTerminal reports whether state admits no further transitions.
func (r *Registry) IsTerminal(t EntityType, state Status) (bool, error) {
	def, err := r.Definition(t)
	if err != nil {
		return false, err
	}
	return slices.Contains(def.Terminal, state), nil
}

// IsValidState reports whether state belongs to the entity type.
func (r *Registry) IsValidState(t EntityType, state Status) (bool, error) {
	def, err := r.Definition(t)
	if err != nil {
		return false, err
	}
	return slices.Contains(def.States, state), nil
}

// Edge looks up the declared edge from -> to.
func (r *Registry) Edge(t EntityType, from, to Status) (Edge, error) {
	def, err := r.Definition(t)
	if err != nil {
		return Edge{}, err
	}
	for _, e := range def.Edges {
		if e.From == from && e.To == to {
			return e, nil
		}
	}
	return Edge{}, &IllegalTransitionError{Type: t, Current: from, Target: to}
}

// Outgoing returns the edges leaving state.
func (r *Registry) Outgoing(t EntityType, from Status) ([]Edge, error) {
	def, err := r.Definition(t)
	if err != nil {
		return nil, err
	}
	var out []Edge
	for _, e := range def.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out, nil
}
