package domain

import "time"

// TransitionRecord is the append-only audit entry of one applied transition.
type TransitionRecord struct {
	ID         string
	TenantID   string
	EntityType EntityType
	EntityID   string
	From       Status
	To         Status
	ActorID    string
	Reason     string
	Payload    map[string]string
	Timestamp  time.Time
}

// EventEntityTransitioned is the name of the event emitted per transition.
const EventEntityTransitioned = "entity.transitioned"

// EntityTransitioned notifies external collaborators (mailer, payout
// processing) of an applied transition.
type EntityTransitioned struct {
	Record TransitionRecord
	Entity Entity
}
