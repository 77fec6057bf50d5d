package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies a kind of back-office record with a status lifecycle.
type EntityType string

const (
	EntityAffiliate     EntityType = "affiliate"
	EntityWithdrawal    EntityType = "withdrawal"
	EntityRefundRequest EntityType = "refund_request"
	EntityPayout        EntityType = "payout"
	EntityNewsletter    EntityType = "newsletter"
)

// Status is the lifecycle state of an entity. Valid values depend on the
// entity type and are declared in its Definition.
type Status string

// Entity is a tenant-scoped business record whose status changes only
// through the transition executor.
type Entity struct {
	ID         string
	TenantID   string
	Type       EntityType
	Status     Status
	Version    int64
	Amount     decimal.Decimal
	Currency   string
	Reference  string
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewEntity creates an entity in the given initial state.
func NewEntity(id, tenantID string, entityType EntityType, initial Status, amount decimal.Decimal, currency, reference string) Entity {
	now := time.Now().UTC()
	return Entity{
		ID:         id,
		TenantID:   tenantID,
		Type:       entityType,
		Status:     initial,
		Version:    1,
		Amount:     amount,
		Currency:   currency,
		Reference:  reference,
		Attributes: map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Advance returns a copy of e moved to the target status with payload merged
// into its attributes. The receiver is not modified.
func (e Entity) Advance(target Status, payload map[string]string, at time.Time) Entity {
	next := e
	next.Status = target
	next.Version = e.Version + 1
	next.UpdatedAt = at
	next.Attributes = make(map[string]string, len(e.Attributes)+len(payload))
	maps.Copy(next.Attributes, e.Attributes)
	maps.Copy(next.Attributes, payload)
	return next
}
