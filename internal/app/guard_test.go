package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"
)

func entity(typ domain.EntityType, status domain.Status, amount string) domain.Entity {
	return domain.NewEntity("e-1", tenant, typ, status, decimal.RequireFromString(amount), "RON", "REF")
}

func TestAuthorize_Allowed(t *testing.T) {
	g := newGuard(t)

	auth, err := g.Authorize(context.Background(),
		entity(domain.EntityPayout, domain.StatusApproved, "100"),
		domain.StatusCompleted,
		admin("payouts.process"),
		map[string]string{
			"payment_reference": " TRX-991 ",
			"payment_method":    "stripe",
			"unrelated":         "dropped",
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.Edge.To != domain.StatusCompleted {
		t.Errorf("edge to = %q, want %q", auth.Edge.To, domain.StatusCompleted)
	}
	if auth.Payload["payment_reference"] != "TRX-991" {
		t.Errorf("payment_reference = %q, want trimmed value", auth.Payload["payment_reference"])
	}
	if _, ok := auth.Payload["unrelated"]; ok {
		t.Error("undeclared payload fields should be dropped")
	}
}

func TestAuthorize_IllegalTransition(t *testing.T) {
	g := newGuard(t)

	_, err := g.Authorize(context.Background(),
		entity(domain.EntityWithdrawal, domain.StatusCompleted, "50"),
		domain.StatusRejected,
		admin("withdrawals.process"),
		map[string]string{"rejection_reason": "too late"},
	)
	var illegal *domain.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestAuthorize_TerminalStatesAlwaysIllegal(t *testing.T) {
	g := newGuard(t)
	registry := domain.DefaultRegistry()
	superuser := domain.SystemActor("root")

	for _, typ := range registry.Types() {
		def, _ := registry.Definition(typ)
		for _, terminal := range def.Terminal {
			for _, target := range def.States {
				_, err := g.Authorize(context.Background(), entity(typ, terminal, "10"), target, superuser, nil)
				var illegal *domain.IllegalTransitionError
				if !errors.As(err, &illegal) {
					t.Errorf("%s %q -> %q: got %v, want IllegalTransitionError", typ, terminal, target, err)
				}
			}
		}
	}
}

func TestAuthorize_Unauthorized(t *testing.T) {
	g := newGuard(t)

	_, err := g.Authorize(context.Background(),
		entity(domain.EntityPayout, domain.StatusPending, "100"),
		domain.StatusApproved,
		admin("payouts.view"),
		nil,
	)
	var unauthorized *domain.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if unauthorized.Permission != "payouts.process" {
		t.Errorf("permission = %q, want %q", unauthorized.Permission, "payouts.process")
	}
}

func TestAuthorize_SystemEdgeNeedsSystemActor(t *testing.T) {
	g := newGuard(t)
	e := entity(domain.EntityNewsletter, domain.StatusScheduled, "0")

	_, err := g.Authorize(context.Background(), e, domain.StatusSending, admin("*"), nil)
	var unauthorized *domain.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}

	if _, err := g.Authorize(context.Background(), e, domain.StatusSending, domain.SystemActor("mailer"), nil); err != nil {
		t.Fatalf("system actor: unexpected error: %v", err)
	}
}

func TestAuthorize_MissingPayload(t *testing.T) {
	g := newGuard(t)

	_, err := g.Authorize(context.Background(),
		entity(domain.EntityWithdrawal, domain.StatusPending, "50"),
		domain.StatusRejected,
		admin("withdrawals.process"),
		map[string]string{"rejection_reason": "   "},
	)
	var missing *domain.MissingPayloadError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingPayloadError, got %v", err)
	}
	if len(missing.Fields) != 1 || missing.Fields[0] != "rejection_reason" {
		t.Errorf("fields = %v, want [rejection_reason]", missing.Fields)
	}
}

func TestAuthorize_InvalidPayload(t *testing.T) {
	g := newGuard(t)

	cases := []struct {
		name    string
		entity  domain.Entity
		target  domain.Status
		actor   domain.Actor
		payload map[string]string
		field   string
	}{
		{
			name:    "approved amount above requested",
			entity:  entity(domain.EntityRefundRequest, domain.StatusUnderReview, "80"),
			target:  domain.StatusApproved,
			actor:   admin("refunds.approve"),
			payload: map[string]string{"approved_amount": "80.01"},
			field:   "approved_amount",
		},
		{
			name:    "approved amount not positive",
			entity:  entity(domain.EntityRefundRequest, domain.StatusPending, "80"),
			target:  domain.StatusApproved,
			actor:   admin("refunds.approve"),
			payload: map[string]string{"approved_amount": "0"},
			field:   "approved_amount",
		},
		{
			name:    "schedule in the past",
			entity:  entity(domain.EntityNewsletter, domain.StatusDraft, "0"),
			target:  domain.StatusScheduled,
			actor:   admin("newsletters.send"),
			payload: map[string]string{"scheduled_at": "2026-05-31T09:00:00Z"},
			field:   "scheduled_at",
		},
		{
			name:   "unknown payment method",
			entity: entity(domain.EntityPayout, domain.StatusProcessing, "10"),
			target: domain.StatusCompleted,
			actor:  admin("payouts.process"),
			payload: map[string]string{
				"payment_reference": "X-1",
				"payment_method":    "cash",
			},
			field: "payment_method",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authorize(context.Background(), tc.entity, tc.target, tc.actor, tc.payload)
			var invalid *domain.InvalidPayloadError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidPayloadError, got %v", err)
			}
			if invalid.Field != tc.field {
				t.Errorf("field = %q, want %q", invalid.Field, tc.field)
			}
		})
	}
}

func TestAuthorize_ApprovedAmountEqualToRequested(t *testing.T) {
	g := newGuard(t)

	_, err := g.Authorize(context.Background(),
		entity(domain.EntityRefundRequest, domain.StatusPending, "80"),
		domain.StatusApproved,
		admin("refunds.approve"),
		map[string]string{"approved_amount": "80.00"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthorize_UnknownType(t *testing.T) {
	g := newGuard(t)

	_, err := g.Authorize(context.Background(), entity("ticket", "open", "1"), "closed", admin("*"), nil)
	var unknown *domain.UnknownEntityTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEntityTypeError, got %v", err)
	}
}

func TestAuthorize_PermissionCheckedBeforePayload(t *testing.T) {
	g := newGuard(t)

	// No permission and no reason: the permission rule is reported first.
	_, err := g.Authorize(context.Background(),
		entity(domain.EntityPayout, domain.StatusPending, "10"),
		domain.StatusRejected,
		admin(),
		nil,
	)
	var unauthorized *domain.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
}
