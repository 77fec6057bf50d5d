package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// EntityService orchestrates back-office entity operations for one
// marketplace client at a time. Every method takes the tenant explicitly.
type EntityService struct {
	registry *domain.Registry
	repo     domain.EntityRepository
	guard    *Guard
	executor *Executor
	bulk     *BulkCoordinator
}

// NewEntityService wires the guard, executor and bulk coordinator around repo.
func NewEntityService(registry *domain.Registry, repo domain.EntityRepository, validator domain.TransitionValidator, payload domain.PayloadValidator, logger *slog.Logger) *EntityService {
	guard := NewGuard(registry, validator, payload)
	executor := NewExecutor(guard, repo, logger)
	return &EntityService{
		registry: registry,
		repo:     repo,
		guard:    guard,
		executor: executor,
		bulk:     NewBulkCoordinator(repo, executor, logger),
	}
}

// Executor exposes the executor, e.g. to override its clock.
func (s *EntityService) Executor() *Executor {
	return s.executor
}

// Create persists a new entity in its type's initial state.
func (s *EntityService) Create(ctx context.Context, tenantID string, entityType domain.EntityType, amount decimal.Decimal, currency, reference string) (domain.Entity, error) {
	def, err := s.registry.Definition(entityType)
	if err != nil {
		return domain.Entity{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("generating entity id: %w", err)
	}

	entity := domain.NewEntity(id, tenantID, entityType, def.Initial, amount, currency, reference)

	if err := s.repo.Create(ctx, entity); err != nil {
		return domain.Entity{}, fmt.Errorf("creating entity: %w", err)
	}

	return entity, nil
}

// Get returns an entity of the tenant by id.
func (s *EntityService) Get(ctx context.Context, tenantID, id string) (domain.Entity, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's entities matching filter.
func (s *EntityService) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]domain.Entity, error) {
	if filter.Type != nil {
		if _, err := s.registry.Definition(*filter.Type); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, tenantID, filter)
}

// History returns the transition records of an entity, oldest first.
func (s *EntityService) History(ctx context.Context, tenantID, id string) ([]domain.TransitionRecord, error) {
	if _, err := s.repo.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, tenantID, id)
}

// Transition loads the entity and applies target on behalf of actor.
func (s *EntityService) Transition(ctx context.Context, tenantID, id string, target domain.Status, actor domain.Actor, payload map[string]string) (domain.Entity, domain.TransitionRecord, error) {
	entity, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return domain.Entity{}, domain.TransitionRecord{}, err
	}
	return s.executor.Apply(ctx, tenantID, entity, target, actor, payload)
}

// BulkTransition applies target to every listed entity independently.
func (s *EntityService) BulkTransition(ctx context.Context, tenantID string, entityType domain.EntityType, ids []string, target domain.Status, actor domain.Actor, payload map[string]string) (BulkResult, error) {
	if _, err := s.registry.Definition(entityType); err != nil {
		return BulkResult{}, err
	}
	return s.bulk.Apply(ctx, tenantID, entityType, ids, target, actor, payload), nil
}

// AvailableTransition is an edge the actor may trigger from the current state.
type AvailableTransition struct {
	Target   domain.Status
	Required []string
	Fields   []string
}

// AvailableTransitions lists the edges leaving the entity's current state
// that the actor holds the permission for.
func (s *EntityService) AvailableTransitions(ctx context.Context, tenantID, id string, actor domain.Actor) ([]AvailableTransition, error) {
	entity, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	edges, err := s.registry.Outgoing(entity.Type, entity.Status)
	if err != nil {
		return nil, err
	}

	out := make([]AvailableTransition, 0, len(edges))
	for _, e := range edges {
		if !actor.Can(e.Permission) {
			continue
		}
		out = append(out, AvailableTransition{
			Target:   e.To,
			Required: e.Required,
			Fields:   e.Fields(),
		})
	}
	return out, nil
}

// Stats returns count and amount per status for every state of the type,
// including states without entities.
func (s *EntityService) Stats(ctx context.Context, tenantID string, entityType domain.EntityType) ([]domain.StatusStat, error) {
	def, err := s.registry.Definition(entityType)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Stats(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[domain.Status]domain.StatusStat, len(stored))
	for _, st := range stored {
		byStatus[st.Status] = st
	}

	out := make([]domain.StatusStat, 0, len(def.States))
	for _, state := range def.States {
		st, ok := byStatus[state]
		if !ok {
			st = domain.StatusStat{Status: state, Amount: decimal.Zero}
		}
		out = append(out, st)
	}
	return out, nil
}
