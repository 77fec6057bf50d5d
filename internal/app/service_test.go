package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"
)

func TestCreate_InitialState(t *testing.T) {
	repo := newMockRepo()
	svc := newService(t, repo)

	cases := []struct {
		typ  domain.EntityType
		want domain.Status
	}{
		{domain.EntityAffiliate, domain.StatusPending},
		{domain.EntityWithdrawal, domain.StatusPending},
		{domain.EntityRefundRequest, domain.StatusPending},
		{domain.EntityPayout, domain.StatusPending},
		{domain.EntityNewsletter, domain.StatusDraft},
	}

	for _, tc := range cases {
		e := mustCreate(t, svc, tc.typ, "1")
		if e.Status != tc.want {
			t.Errorf("%s: Status = %q, want %q", tc.typ, e.Status, tc.want)
		}
		if e.ID == "" {
			t.Errorf("%s: ID should not be empty", tc.typ)
		}
		if e.TenantID != tenant {
			t.Errorf("%s: TenantID = %q, want %q", tc.typ, e.TenantID, tenant)
		}
		if _, err := repo.Get(context.Background(), tenant, e.ID); err != nil {
			t.Errorf("%s: not persisted: %v", tc.typ, err)
		}
	}
}

func TestCreate_UnknownType(t *testing.T) {
	svc := newService(t, newMockRepo())

	_, err := svc.Create(context.Background(), tenant, "ticket", decimal.Zero, "", "")
	var unknown *domain.UnknownEntityTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEntityTypeError, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t, newMockRepo())

	_, err := svc.Get(context.Background(), tenant, "nonexistent")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestAvailableTransitions(t *testing.T) {
	svc := newService(t, newMockRepo())
	r := mustCreate(t, svc, domain.EntityRefundRequest, "40")

	available, err := svc.AvailableTransitions(context.Background(), tenant, r.ID, admin("refunds.approve"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	targets := map[domain.Status]bool{}
	for _, a := range available {
		targets[a.Target] = true
	}
	if len(targets) != 2 || !targets[domain.StatusApproved] || !targets[domain.StatusRejected] {
		t.Errorf("targets = %v, want approved and rejected", targets)
	}

	for _, a := range available {
		if a.Target == domain.StatusApproved && (len(a.Required) != 1 || a.Required[0] != "approved_amount") {
			t.Errorf("approved requires %v, want [approved_amount]", a.Required)
		}
	}
}

func TestAvailableTransitions_TerminalIsEmpty(t *testing.T) {
	svc := newService(t, newMockRepo())
	a := mustCreate(t, svc, domain.EntityAffiliate, "0")
	mustTransition(t, svc, a.ID, domain.StatusRejected, admin("affiliates.approve"), map[string]string{"reason": "spam"})

	available, err := svc.AvailableTransitions(context.Background(), tenant, a.ID, admin("*"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(available) != 0 {
		t.Errorf("got %d transitions from terminal state, want 0", len(available))
	}
}

func TestStats(t *testing.T) {
	svc := newService(t, newMockRepo())
	actor := admin("payouts.process")

	mustCreate(t, svc, domain.EntityPayout, "100.25")
	mustCreate(t, svc, domain.EntityPayout, "50.50")
	p := mustCreate(t, svc, domain.EntityPayout, "10")
	mustTransition(t, svc, p.ID, domain.StatusApproved, actor, nil)
	mustCreate(t, svc, domain.EntityWithdrawal, "999")

	stats, err := svc.Stats(context.Background(), tenant, domain.EntityPayout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := domain.PayoutDefinition()
	if len(stats) != len(def.States) {
		t.Fatalf("got %d stats, want %d", len(stats), len(def.States))
	}

	byStatus := map[domain.Status]domain.StatusStat{}
	for _, st := range stats {
		byStatus[st.Status] = st
	}

	pending := byStatus[domain.StatusPending]
	if pending.Count != 2 || !pending.Amount.Equal(decimal.RequireFromString("150.75")) {
		t.Errorf("pending = %d / %s, want 2 / 150.75", pending.Count, pending.Amount)
	}
	approved := byStatus[domain.StatusApproved]
	if approved.Count != 1 || !approved.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("approved = %d / %s, want 1 / 10", approved.Count, approved.Amount)
	}
	if byStatus[domain.StatusCompleted].Count != 0 {
		t.Errorf("completed count = %d, want 0", byStatus[domain.StatusCompleted].Count)
	}
}

func TestHistory_NotFound(t *testing.T) {
	svc := newService(t, newMockRepo())

	_, err := svc.History(context.Background(), tenant, "nonexistent")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}
