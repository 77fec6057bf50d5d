package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// Authorization is the outcome of a successful guard check. It pins the
// state and version the decision was made against.
type Authorization struct {
	Entity  domain.Entity
	Edge    domain.Edge
	Actor   domain.Actor
	Payload map[string]string
}

// Guard decides whether a transition request is currently allowed.
// It never mutates anything.
type Guard struct {
	registry  *domain.Registry
	validator domain.TransitionValidator
	payload   domain.PayloadValidator
}

// NewGuard creates a guard over the given registry and validators.
func NewGuard(registry *domain.Registry, validator domain.TransitionValidator, payload domain.PayloadValidator) *Guard {
	return &Guard{
		registry:  registry,
		validator: validator,
		payload:   payload,
	}
}

// Authorize evaluates the request in order: known type, declared edge,
// actor permission, required payload, field rules. The first failing rule
// is returned as a typed domain error.
func (g *Guard) Authorize(ctx context.Context, entity domain.Entity, target domain.Status, actor domain.Actor, payload map[string]string) (Authorization, error) {
	if _, err := g.registry.Definition(entity.Type); err != nil {
		return Authorization{}, err
	}

	if err := g.validator.Validate(ctx, entity.Type, entity.Status, target); err != nil {
		return Authorization{}, err
	}

	edge, err := g.registry.Edge(entity.Type, entity.Status, target)
	if err != nil {
		return Authorization{}, err
	}

	if !actor.Can(edge.Permission) {
		return Authorization{}, &domain.UnauthorizedError{ActorID: actor.ID, Permission: edge.Permission}
	}

	accepted := acceptedPayload(edge, payload)

	var missing []string
	for _, field := range edge.Required {
		if accepted[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Authorization{}, &domain.MissingPayloadError{Target: target, Fields: missing}
	}

	for _, field := range edge.Fields() {
		value, ok := accepted[field]
		if !ok {
			continue
		}
		rule := edge.Rules[field]
		if rule.Tag != "" {
			if err := g.payload.Check(value, rule.Tag); err != nil {
				return Authorization{}, &domain.InvalidPayloadError{Field: field, Rule: err.Error()}
			}
		}
		if rule.WithinAmount {
			amount, err := decimal.NewFromString(value)
			if err != nil || amount.GreaterThan(entity.Amount) {
				return Authorization{}, &domain.InvalidPayloadError{Field: field, Rule: "lte=" + entity.Amount.String()}
			}
		}
	}

	return Authorization{
		Entity:  entity,
		Edge:    edge,
		Actor:   actor,
		Payload: accepted,
	}, nil
}

// acceptedPayload keeps only the non-blank fields the edge declares.
func acceptedPayload(edge domain.Edge, payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload))
	for _, field := range edge.Fields() {
		v := strings.TrimSpace(payload[field])
		if v != "" {
			out[field] = v
		}
	}
	return out
}
