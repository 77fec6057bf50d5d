package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// Executor applies authorized transitions and persists them together with
// their audit record and event.
type Executor struct {
	guard  *Guard
	repo   domain.EntityRepository
	now    domain.Clock
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger falls back to slog.Default.
func NewExecutor(guard *Guard, repo domain.EntityRepository, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		guard:  guard,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock overrides the time source used for records and timestamps.
func (x *Executor) WithClock(now domain.Clock) *Executor {
	x.now = now
	return x
}

// Apply moves entity to target on behalf of actor. The request is
// re-authorized against the given snapshot, and the commit only succeeds if
// the stored entity still matches that snapshot's status and version.
func (x *Executor) Apply(ctx context.Context, tenantID string, entity domain.Entity, target domain.Status, actor domain.Actor, payload map[string]string) (domain.Entity, domain.TransitionRecord, error) {
	log := x.logger.With(
		"tenant_id", tenantID,
		"entity_type", entity.Type,
		"entity_id", entity.ID,
		"from", entity.Status,
		"to", target,
		"actor_id", actor.ID,
	)

	if entity.TenantID != tenantID {
		return domain.Entity{}, domain.TransitionRecord{}, domain.ErrEntityNotFound
	}

	auth, err := x.guard.Authorize(ctx, entity, target, actor, payload)
	if err != nil {
		log.InfoContext(ctx, "transition denied", "kind", domain.Kind(err), "error", err)
		return domain.Entity{}, domain.TransitionRecord{}, err
	}

	recordID, err := generateID()
	if err != nil {
		return domain.Entity{}, domain.TransitionRecord{}, fmt.Errorf("generating record id: %w", err)
	}

	at := x.now()
	after := entity.Advance(target, auth.Payload, at)
	record := domain.TransitionRecord{
		ID:         recordID,
		TenantID:   tenantID,
		EntityType: entity.Type,
		EntityID:   entity.ID,
		From:       entity.Status,
		To:         target,
		ActorID:    actor.ID,
		Reason:     auth.Payload[auth.Edge.ReasonField],
		Payload:    auth.Payload,
		Timestamp:  at,
	}

	err = x.repo.CommitTransition(ctx, domain.Change{
		Before: entity,
		After:  after,
		Record: record,
		Event:  domain.EntityTransitioned{Record: record, Entity: after},
	})
	if err != nil {
		var conflict *domain.ConcurrentModificationError
		var persistence *domain.PersistenceError
		switch {
		case errors.As(err, &conflict):
			log.WarnContext(ctx, "transition conflict", "version", entity.Version)
		case errors.Is(err, domain.ErrEntityNotFound):
		case !errors.As(err, &persistence):
			err = &domain.PersistenceError{Op: "committing transition", Err: err}
			log.ErrorContext(ctx, "transition commit failed", "error", err)
		default:
			log.ErrorContext(ctx, "transition commit failed", "error", err)
		}
		return domain.Entity{}, domain.TransitionRecord{}, err
	}

	log.InfoContext(ctx, "transition applied", "record_id", record.ID)
	return after, record, nil
}
