package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// BulkSkip explains why one entity of a batch was not transitioned.
type BulkSkip struct {
	EntityID string
	Kind     string
	Reason   string
}

// BulkResult summarizes a batch transition.
type BulkResult struct {
	Succeeded int
	Skipped   []BulkSkip
	Records   []domain.TransitionRecord
}

// BulkCoordinator applies one transition to many entities. Each entity is
// handled independently: a failure skips that entity and the batch goes on.
type BulkCoordinator struct {
	repo     domain.EntityRepository
	executor *Executor
	logger   *slog.Logger
}

// NewBulkCoordinator creates a coordinator using the given executor.
func NewBulkCoordinator(repo domain.EntityRepository, executor *Executor, logger *slog.Logger) *BulkCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkCoordinator{repo: repo, executor: executor, logger: logger}
}

// Apply runs guard and executor for every id in order.
func (b *BulkCoordinator) Apply(ctx context.Context, tenantID string, entityType domain.EntityType, ids []string, target domain.Status, actor domain.Actor, payload map[string]string) BulkResult {
	var result BulkResult
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		record, err := b.applyOne(ctx, tenantID, entityType, id, target, actor, payload)
		if err != nil {
			result.Skipped = append(result.Skipped, BulkSkip{
				EntityID: id,
				Kind:     domain.Kind(err),
				Reason:   err.Error(),
			})
			continue
		}
		result.Succeeded++
		result.Records = append(result.Records, record)
	}

	b.logger.InfoContext(ctx, "bulk transition finished",
		"tenant_id", tenantID,
		"entity_type", entityType,
		"to", target,
		"actor_id", actor.ID,
		"succeeded", result.Succeeded,
		"skipped", len(result.Skipped),
	)
	return result
}

func (b *BulkCoordinator) applyOne(ctx context.Context, tenantID string, entityType domain.EntityType, id string, target domain.Status, actor domain.Actor, payload map[string]string) (domain.TransitionRecord, error) {
	entity, err := b.repo.Get(ctx, tenantID, id)
	if err != nil {
		return domain.TransitionRecord{}, err
	}
	if entity.Type != entityType {
		return domain.TransitionRecord{}, &domain.IllegalTransitionError{
			Type:    entityType,
			Current: entity.Status,
			Target:  target,
		}
	}

	_, record, err := b.executor.Apply(ctx, tenantID, entity, target, actor, payload)
	return record, err
}
