package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrEntityExists   = errors.New("entity already exists")
)

// Error kinds reported in structured results such as bulk skips.
const (
	KindUnknownEntityType      = "unknown_entity_type"
	KindIllegalTransition      = "illegal_transition"
	KindUnauthorized           = "unauthorized"
	KindMissingPayload         = "missing_payload"
	KindInvalidPayload         = "invalid_payload"
	KindConcurrentModification = "concurrent_modification"
	KindPersistenceFailure     = "persistence_failure"
	KindNotFound               = "not_found"
	KindInternal               = "internal"
)

// UnknownEntityTypeError is returned when no definition exists for a type.
type UnknownEntityTypeError struct {
	Type EntityType
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.Type)
}

func (e *UnknownEntityTypeError) Kind() string { return KindUnknownEntityType }

// IllegalTransitionError is returned when current -> target is not a declared edge.
type IllegalTransitionError struct {
	Type    EntityType
	Current Status
	Target  Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %q to %q", e.Type, e.Current, e.Target)
}

func (e *IllegalTransitionError) Kind() string { return KindIllegalTransition }

// UnauthorizedError is returned when the actor lacks the edge permission.
type UnauthorizedError struct {
	ActorID    string
	Permission string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %q lacks permission %q", e.ActorID, e.Permission)
}

func (e *UnauthorizedError) Kind() string { return KindUnauthorized }

// MissingPayloadError lists required payload fields that were absent.
type MissingPayloadError struct {
	Target Status
	Fields []string
}

func (e *MissingPayloadError) Error() string {
	return fmt.Sprintf("transition to %q requires: %s", e.Target, strings.Join(e.Fields, ", "))
}

func (e *MissingPayloadError) Kind() string { return KindMissingPayload }

// InvalidPayloadError is returned when a present field breaks its rule.
type InvalidPayloadError struct {
	Field string
	Rule  string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("field %q fails rule %q", e.Field, e.Rule)
}

func (e *InvalidPayloadError) Kind() string { return KindInvalidPayload }

// ConcurrentModificationError is returned when the stored entity no longer
// matches the state the transition was authorized against.
type ConcurrentModificationError struct {
	EntityID string
	Expected Status
	Version  int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("entity %q changed since it was read as %q (version %d)", e.EntityID, e.Expected, e.Version)
}

func (e *ConcurrentModificationError) Kind() string { return KindConcurrentModification }

// PersistenceError wraps a storage failure. Nothing was committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Kind() string { return KindPersistenceFailure }

// Kind classifies err for structured responses.
func Kind(err error) string {
	if errors.Is(err, ErrEntityNotFound) {
		return KindNotFound
	}
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}
