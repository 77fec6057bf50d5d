package app_test

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/adapter/fsm"
	"github.com/neomorfeo/statusgate/internal/adapter/validator"
	"github.com/neomorfeo/statusgate/internal/app"
	"github.com/neomorfeo/statusgate/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	mu        sync.Mutex
	entities  map[string]domain.Entity
	records   []domain.TransitionRecord
	events    []domain.EntityTransitioned
	commitErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{entities: make(map[string]domain.Entity)}
}

func (m *mockRepo) Create(_ context.Context, e domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
	return nil
}

func (m *mockRepo) Get(_ context.Context, tenantID, id string) (domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok || e.TenantID != tenantID {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	e.Attributes = maps.Clone(e.Attributes)
	return e, nil
}

func (m *mockRepo) List(_ context.Context, tenantID string, _ domain.ListFilter) ([]domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entity
	for _, e := range m.entities {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepo) Stats(_ context.Context, tenantID string, t domain.EntityType) ([]domain.StatusStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := map[domain.Status]domain.StatusStat{}
	for _, e := range m.entities {
		if e.TenantID != tenantID || e.Type != t {
			continue
		}
		st := agg[e.Status]
		st.Status = e.Status
		st.Count++
		st.Amount = st.Amount.Add(e.Amount)
		agg[e.Status] = st
	}
	out := make([]domain.StatusStat, 0, len(agg))
	for _, st := range agg {
		out = append(out, st)
	}
	return out, nil
}

func (m *mockRepo) History(_ context.Context, tenantID, entityID string) ([]domain.TransitionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransitionRecord
	for _, r := range m.records {
		if r.TenantID == tenantID && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) CommitTransition(_ context.Context, c domain.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	stored, ok := m.entities[c.Before.ID]
	if !ok || stored.TenantID != c.Before.TenantID {
		return domain.ErrEntityNotFound
	}
	if stored.Status != c.Before.Status || stored.Version != c.Before.Version {
		return &domain.ConcurrentModificationError{
			EntityID: c.Before.ID,
			Expected: c.Before.Status,
			Version:  c.Before.Version,
		}
	}
	m.entities[c.After.ID] = c.After
	m.records = append(m.records, c.Record)
	m.events = append(m.events, c.Event)
	return nil
}

func (m *mockRepo) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// --- Helpers ---

const tenant = "mc-1"

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, repo *mockRepo) *app.EntityService {
	t.Helper()
	registry := domain.DefaultRegistry()
	payload, err := validator.New(clock)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	svc := app.NewEntityService(registry, repo, fsm.New(registry), payload, discardLogger())
	svc.Executor().WithClock(clock)
	return svc
}

func newGuard(t *testing.T) *app.Guard {
	t.Helper()
	registry := domain.DefaultRegistry()
	payload, err := validator.New(clock)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	return app.NewGuard(registry, fsm.New(registry), payload)
}

func mustCreate(t *testing.T, svc *app.EntityService, typ domain.EntityType, amount string) domain.Entity {
	t.Helper()
	e, err := svc.Create(context.Background(), tenant, typ, decimal.RequireFromString(amount), "RON", "REF")
	if err != nil {
		t.Fatalf("create %s: %v", typ, err)
	}
	return e
}

func mustTransition(t *testing.T, svc *app.EntityService, id string, target domain.Status, actor domain.Actor, payload map[string]string) domain.Entity {
	t.Helper()
	e, _, err := svc.Transition(context.Background(), tenant, id, target, actor, payload)
	if err != nil {
		t.Fatalf("transition %s -> %s: %v", id, target, err)
	}
	return e
}

func admin(perms ...string) domain.Actor {
	return domain.Actor{ID: "admin-1", Permissions: perms}
}
