package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EntityRepository defines the persistence contract for entities.
// Every read is scoped to a tenant; an entity of another tenant is not found.
type EntityRepository interface {
	Create(ctx context.Context, entity Entity) error
	Get(ctx context.Context, tenantID, id string) (Entity, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Entity, error)
	Stats(ctx context.Context, tenantID string, entityType EntityType) ([]StatusStat, error)
	History(ctx context.Context, tenantID, entityID string) ([]TransitionRecord, error)

	// CommitTransition atomically swaps the stored entity from c.Before to
	// c.After, appends c.Record and emits c.Event. It returns a
	// ConcurrentModificationError when the stored status or version no
	// longer match c.Before.
	CommitTransition(ctx context.Context, c Change) error
}

// ListFilter holds optional criteria for listing entities.
type ListFilter struct {
	Type   *EntityType
	Status *Status
	Limit  int
	Offset int
}

// StatusStat aggregates the entities of one status.
type StatusStat struct {
	Status Status
	Count  int
	Amount decimal.Decimal
}

// Change is one transition ready to be committed.
type Change struct {
	Before Entity
	After  Entity
	Record TransitionRecord
	Event  EntityTransitioned
}

// TransitionValidator checks a requested state change against the declared
// lifecycle of the entity type.
type TransitionValidator interface {
	Validate(ctx context.Context, entityType EntityType, current, target Status) error
}

// PayloadValidator checks a single payload value against a rule tag.
type PayloadValidator interface {
	Check(value, tag string) error
}

// Clock returns the current time.
type Clock func() time.Time
