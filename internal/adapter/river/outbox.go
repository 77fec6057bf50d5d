package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/statusgate/internal/adapter/sqlite"
	"github.com/neomorfeo/statusgate/internal/domain"
)

// Compile-time check: Outbox implements sqlite.Outbox.
var _ sqlite.Outbox = (*Outbox)(nil)

// EventJobArgs carries one applied transition to the notification side.
// River serializes it as JSON into its job table in the same transaction as
// the status update, so the worker never needs to query the entity store.
type EventJobArgs struct {
	RecordID   string            `json:"record_id"`
	TenantID   string            `json:"tenant_id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Version    int64             `json:"version"`
	Amount     string            `json:"amount"`
	Currency   string            `json:"currency,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Kind returns the job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return domain.EventEntityTransitioned }

// NewEventJobArgs flattens an event into job arguments.
func NewEventJobArgs(event domain.EntityTransitioned) EventJobArgs {
	rec, e := event.Record, event.Entity
	return EventJobArgs{
		RecordID:   rec.ID,
		TenantID:   rec.TenantID,
		EntityType: string(rec.EntityType),
		EntityID:   rec.EntityID,
		From:       string(rec.From),
		To:         string(rec.To),
		ActorID:    rec.ActorID,
		Reason:     rec.Reason,
		Payload:    rec.Payload,
		Version:    e.Version,
		Amount:     e.Amount.String(),
		Currency:   e.Currency,
		Reference:  e.Reference,
		OccurredAt: rec.Timestamp,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Outbox enqueues transition events as River jobs inside the caller's
// transaction. A rolled back transition leaves no job behind.
type Outbox struct {
	client *Client
}

// NewOutbox creates an outbox backed by the given River client.
func NewOutbox(client *Client) *Outbox {
	return &Outbox{client: client}
}

// EnqueueTx inserts the event job using tx.
func (o *Outbox) EnqueueTx(ctx context.Context, tx *sql.Tx, event domain.EntityTransitioned) error {
	if _, err := o.client.InsertTx(ctx, tx, NewEventJobArgs(event), nil); err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
