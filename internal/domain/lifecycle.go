package domain

import "slices"

// Statuses shared by several entity types.
const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusApproved   Status = "approved"
	StatusCancelled  Status = "cancelled"
)

// Refund request statuses.
const (
	StatusUnderReview       Status = "under_review"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Newsletter statuses.
const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
)

// Payload field names used by the built-in definitions.
const (
	FieldReason           = "reason"
	FieldRejectionReason  = "rejection_reason"
	FieldNotes            = "notes"
	FieldTransactionID    = "transaction_id"
	FieldApprovedAmount   = "approved_amount"
	FieldReference        = "reference"
	FieldError            = "error"
	FieldPaymentReference = "payment_reference"
	FieldPaymentMethod    = "payment_method"
	FieldPaymentNotes     = "payment_notes"
	FieldScheduledAt      = "scheduled_at"
)

// FieldRule constrains a single payload field. Tag is a go-playground/validator
// tag applied to the field value when the field is present. WithinAmount
// additionally caps a decimal field at the entity amount.
type FieldRule struct {
	Tag          string
	WithinAmount bool
}

// Edge is a declared transition between two states of an entity type.
type Edge struct {
	From        Status
	To          Status
	Permission  string
	Required    []string
	Rules       map[string]FieldRule
	ReasonField string
}

// Fields returns every payload field the edge accepts.
func (e Edge) Fields() []string {
	out := make([]string, 0, len(e.Required)+len(e.Rules))
	out = append(out, e.Required...)
	for name := range e.Rules {
		if !slices.Contains(e.Required, name) {
			out = append(out, name)
		}
	}
	return out
}

// Definition declares the lifecycle of one entity type.
type Definition struct {
	Type     EntityType
	States   []Status
	Initial  Status
	Terminal []Status
	Edges    []Edge
}

// edges expands one declaration into an edge per source state.
func edges(from []Status, e Edge) []Edge {
	out := make([]Edge, 0, len(from))
	for _, src := range from {
		edge := e
		edge.From = src
		out = append(out, edge)
	}
	return out
}

func concat(groups ...[]Edge) []Edge {
	var out []Edge
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

const reasonTag = "max=1000"

// AffiliateDefinition covers affiliate approval and suspension.
func AffiliateDefinition() Definition {
	return Definition{
		Type:     EntityAffiliate,
		States:   []Status{StatusPending, StatusActive, StatusSuspended, StatusRejected},
		Initial:  StatusPending,
		Terminal: []Status{StatusRejected},
		Edges: []Edge{
			{From: StatusPending, To: StatusActive, Permission: "affiliates.approve"},
			{
				From: StatusPending, To: StatusRejected, Permission: "affiliates.approve",
				Required:    []string{FieldReason},
				Rules:       map[string]FieldRule{FieldReason: {Tag: reasonTag}},
				ReasonField: FieldReason,
			},
			{From: StatusActive, To: StatusSuspended, Permission: "affiliates.suspend"},
			{From: StatusSuspended, To: StatusActive, Permission: "affiliates.suspend"},
		},
	}
}

// WithdrawalDefinition covers affiliate withdrawal processing.
func WithdrawalDefinition() Definition {
	return Definition{
		Type:     EntityWithdrawal,
		States:   []Status{StatusPending, StatusProcessing, StatusCompleted, StatusRejected},
		Initial:  StatusPending,
		Terminal: []Status{StatusCompleted, StatusRejected},
		Edges: concat(
			[]Edge{
				{From: StatusPending, To: StatusProcessing, Permission: "withdrawals.process"},
				{
					From: StatusProcessing, To: StatusCompleted, Permission: "withdrawals.process",
					Required: []string{FieldNotes},
					Rules: map[string]FieldRule{
						FieldNotes:         {Tag: reasonTag},
						FieldTransactionID: {Tag: "max=255"},
					},
				},
			},
			edges([]Status{StatusPending, StatusProcessing}, Edge{
				To: StatusRejected, Permission: "withdrawals.process",
				Required:    []string{FieldRejectionReason},
				Rules:       map[string]FieldRule{FieldRejectionReason: {Tag: reasonTag}},
				ReasonField: FieldRejectionReason,
			}),
		),
	}
}

// RefundRequestDefinition covers the refund request review and payment flow.
func RefundRequestDefinition() Definition {
	refundable := []Status{StatusApproved, StatusProcessing, StatusFailed}
	reviewable := []Status{StatusPending, StatusUnderReview}
	referenced := Edge{
		Permission: "refunds.process",
		Required:   []string{FieldReference},
		Rules:      map[string]FieldRule{FieldReference: {Tag: "max=255"}},
	}
	refunded := referenced
	refunded.To = StatusRefunded
	partial := referenced
	partial.To = StatusPartiallyRefunded

	return Definition{
		Type: EntityRefundRequest,
		States: []Status{
			StatusPending, StatusUnderReview, StatusApproved, StatusRejected,
			StatusProcessing, StatusRefunded, StatusPartiallyRefunded, StatusFailed,
		},
		Initial:  StatusPending,
		Terminal: []Status{StatusRejected, StatusRefunded, StatusPartiallyRefunded},
		Edges: concat(
			[]Edge{{From: StatusPending, To: StatusUnderReview, Permission: "refunds.review"}},
			edges(reviewable, Edge{
				To: StatusApproved, Permission: "refunds.approve",
				Required: []string{FieldApprovedAmount},
				Rules: map[string]FieldRule{
					FieldApprovedAmount: {Tag: "decimal_gt0", WithinAmount: true},
					FieldNotes:          {Tag: reasonTag},
				},
			}),
			edges(reviewable, Edge{
				To: StatusRejected, Permission: "refunds.approve",
				Required:    []string{FieldReason},
				Rules:       map[string]FieldRule{FieldReason: {Tag: reasonTag}},
				ReasonField: FieldReason,
			}),
			[]Edge{
				{From: StatusApproved, To: StatusProcessing, Permission: PermissionSystem},
				{
					From: StatusProcessing, To: StatusFailed, Permission: PermissionSystem,
					Required:    []string{FieldError},
					ReasonField: FieldError,
				},
			},
			edges(refundable, refunded),
			edges(refundable, partial),
		),
	}
}

// PayoutDefinition covers organizer payouts.
func PayoutDefinition() Definition {
	return Definition{
		Type:     EntityPayout,
		States:   []Status{StatusPending, StatusApproved, StatusProcessing, StatusCompleted, StatusRejected},
		Initial:  StatusPending,
		Terminal: []Status{StatusCompleted, StatusRejected},
		Edges: concat(
			[]Edge{
				{From: StatusPending, To: StatusApproved, Permission: "payouts.process"},
				{From: StatusApproved, To: StatusProcessing, Permission: "payouts.process"},
			},
			edges([]Status{StatusApproved, StatusProcessing}, Edge{
				To: StatusCompleted, Permission: "payouts.process",
				Required: []string{FieldPaymentReference},
				Rules: map[string]FieldRule{
					FieldPaymentReference: {Tag: "max=255"},
					FieldPaymentMethod:    {Tag: "oneof=bank_transfer paypal stripe other"},
					FieldPaymentNotes:     {Tag: reasonTag},
				},
			}),
			edges([]Status{StatusPending, StatusApproved}, Edge{
				To: StatusRejected, Permission: "payouts.process",
				Required:    []string{FieldReason},
				Rules:       map[string]FieldRule{FieldReason: {Tag: reasonTag}},
				ReasonField: FieldReason,
			}),
		),
	}
}

// NewsletterDefinition covers newsletter scheduling and sending.
func NewsletterDefinition() Definition {
	editable := []Status{StatusDraft, StatusScheduled}
	return Definition{
		Type:     EntityNewsletter,
		States:   []Status{StatusDraft, StatusScheduled, StatusSending, StatusSent, StatusCancelled},
		Initial:  StatusDraft,
		Terminal: []Status{StatusSent, StatusCancelled},
		Edges: concat(
			[]Edge{
				{
					From: StatusDraft, To: StatusScheduled, Permission: "newsletters.send",
					Required: []string{FieldScheduledAt},
					Rules:    map[string]FieldRule{FieldScheduledAt: {Tag: "future"}},
				},
				{From: StatusScheduled, To: StatusDraft, Permission: "newsletters.send"},
			},
			edges(editable, Edge{To: StatusSending, Permission: PermissionSystem}),
			[]Edge{{From: StatusSending, To: StatusSent, Permission: PermissionSystem}},
			edges(editable, Edge{To: StatusCancelled, Permission: "newsletters.send"}),
		),
	}
}

// Definitions returns the lifecycles of every built-in entity type.
func Definitions() []Definition {
	return []Definition{
		AffiliateDefinition(),
		WithdrawalDefinition(),
		RefundRequestDefinition(),
		PayoutDefinition(),
		NewsletterDefinition(),
	}
}
