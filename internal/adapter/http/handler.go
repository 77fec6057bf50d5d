package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/app"
	"github.com/neomorfeo/statusgate/internal/domain"
)

// EntityResponse is the API representation of an entity.
type EntityResponse struct {
	ID         string            `json:"id" doc:"Unique identifier"`
	Type       string            `json:"type" doc:"Entity type"`
	Status     string            `json:"status" doc:"Lifecycle state"`
	Version    int64             `json:"version" doc:"Incremented on every transition"`
	Amount     string            `json:"amount" doc:"Decimal amount"`
	Currency   string            `json:"currency,omitempty" doc:"ISO 4217 currency code"`
	Reference  string            `json:"reference,omitempty" doc:"External reference"`
	Attributes map[string]string `json:"attributes" doc:"Values collected by transitions"`
	CreatedAt  string            `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt  string            `json:"updated_at" doc:"Last update timestamp (RFC 3339)"`
}

func toEntityResponse(e domain.Entity) EntityResponse {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return EntityResponse{
		ID:         e.ID,
		Type:       string(e.Type),
		Status:     string(e.Status),
		Version:    e.Version,
		Amount:     e.Amount.String(),
		Currency:   e.Currency,
		Reference:  e.Reference,
		Attributes: attrs,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// RecordResponse is the API representation of a transition record.
type RecordResponse struct {
	ID         string            `json:"id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Timestamp  string            `json:"timestamp" doc:"RFC 3339 with nanoseconds"`
}

func toRecordResponse(r domain.TransitionRecord) RecordResponse {
	return RecordResponse{
		ID:         r.ID,
		EntityType: string(r.EntityType),
		EntityID:   r.EntityID,
		From:       string(r.From),
		To:         string(r.To),
		ActorID:    r.ActorID,
		Reason:     r.Reason,
		Payload:    r.Payload,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func toRecordResponses(records []domain.TransitionRecord) []RecordResponse {
	resp := make([]RecordResponse, len(records))
	for i, r := range records {
		resp[i] = toRecordResponse(r)
	}
	return resp
}

// ActorHeaders identify the caller. Authentication happens upstream; these
// headers are trusted as set by the gateway.
type ActorHeaders struct {
	ActorID     string `header:"X-Actor-ID" required:"true" doc:"Acting admin user"`
	Permissions string `header:"X-Actor-Permissions" doc:"Comma-separated permissions"`
}

func (h ActorHeaders) actor() domain.Actor {
	var perms []string
	for p := range strings.SplitSeq(h.Permissions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return domain.Actor{ID: h.ActorID, Permissions: perms}
}

// --- Create Entity ---

type CreateEntityInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	Body   struct {
		Type      string `json:"type" minLength:"1" doc:"Entity type"`
		Amount    string `json:"amount,omitempty" default:"0" doc:"Decimal amount"`
		Currency  string `json:"currency,omitempty" maxLength:"3" doc:"ISO 4217 currency code"`
		Reference string `json:"reference,omitempty" maxLength:"255" doc:"External reference"`
	}
}

type EntityOutput struct {
	Body EntityResponse
}

// --- Get / History / Available ---

type EntityPathInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	ID     string `path:"id" doc:"Entity ID"`
}

type HistoryOutput struct {
	Body []RecordResponse
}

type AvailableInput struct {
	EntityPathInput
	ActorHeaders
}

type AvailableTransitionResponse struct {
	Target   string   `json:"target"`
	Required []string `json:"required" doc:"Payload fields that must be present"`
	Fields   []string `json:"fields" doc:"All payload fields the transition accepts"`
}

type AvailableOutput struct {
	Body []AvailableTransitionResponse
}

// --- List Entities ---

type ListEntitiesInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	Type   string `query:"type" required:"false" doc:"Filter by entity type"`
	Status string `query:"status" required:"false" doc:"Filter by status"`
	Limit  int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"500" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListEntitiesOutput struct {
	Body []EntityResponse
}

// --- Transition ---

type TransitionInput struct {
	EntityPathInput
	ActorHeaders
	Body struct {
		Target  string            `json:"target" minLength:"1" doc:"Requested status"`
		Payload map[string]string `json:"payload,omitempty" doc:"Fields required or accepted by the transition"`
	}
}

type TransitionOutput struct {
	Body struct {
		Entity EntityResponse `json:"entity"`
		Record RecordResponse `json:"record"`
	}
}

// --- Bulk Transition ---

type BulkTransitionInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	ActorHeaders
	Body struct {
		Type    string            `json:"type" minLength:"1" doc:"Entity type of every id"`
		IDs     []string          `json:"ids" minItems:"1" maxItems:"500" doc:"Entities to transition"`
		Target  string            `json:"target" minLength:"1" doc:"Requested status"`
		Payload map[string]string `json:"payload,omitempty" doc:"Shared payload"`
	}
}

type BulkSkipResponse struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

type BulkTransitionOutput struct {
	Body struct {
		Succeeded int                `json:"succeeded"`
		Skipped   []BulkSkipResponse `json:"skipped"`
		Records   []RecordResponse   `json:"records"`
	}
}

// --- Stats ---

type StatsInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	Type   string `path:"type" doc:"Entity type"`
}

type StatusStatResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

type StatsOutput struct {
	Body struct {
		Type  string               `json:"type"`
		Stats []StatusStatResponse `json:"stats"`
	}
}

// Register adds all entity API routes to the Huma API.
func Register(api huma.API, svc *app.EntityService) {
	const base = "/api/v1/tenants/{tenant}"
	tags := []string{"Entities"}

	huma.Register(api, huma.Operation{
		OperationID: "create-entity",
		Method:      http.MethodPost,
		Path:        base + "/entities",
		Summary:     "Create an entity in its initial state",
		Tags:        tags,
	}, func(ctx context.Context, input *CreateEntityInput) (*EntityOutput, error) {
		amount, err := decimal.NewFromString(input.Body.Amount)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("amount must be a decimal number", &huma.ErrorDetail{
				Location: "body.amount",
				Value:    input.Body.Amount,
			})
		}
		e, err := svc.Create(ctx, input.Tenant, domain.EntityType(input.Body.Type), amount, input.Body.Currency, input.Body.Reference)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &EntityOutput{Body: toEntityResponse(e)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entities",
		Method:      http.MethodGet,
		Path:        base + "/entities",
		Summary:     "List entities",
		Tags:        tags,
	}, func(ctx context.Context, input *ListEntitiesInput) (*ListEntitiesOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Type != "" {
			t := domain.EntityType(input.Type)
			filter.Type = &t
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		entities, err := svc.List(ctx, input.Tenant, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]EntityResponse, len(entities))
		for i, e := range entities {
			resp[i] = toEntityResponse(e)
		}
		return &ListEntitiesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entity",
		Method:      http.MethodGet,
		Path:        base + "/entities/{id}",
		Summary:     "Get an entity by ID",
		Tags:        tags,
	}, func(ctx context.Context, input *EntityPathInput) (*EntityOutput, error) {
		e, err := svc.Get(ctx, input.Tenant, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &EntityOutput{Body: toEntityResponse(e)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "entity-history",
		Method:      http.MethodGet,
		Path:        base + "/entities/{id}/history",
		Summary:     "List transition records, oldest first",
		Tags:        tags,
	}, func(ctx context.Context, input *EntityPathInput) (*HistoryOutput, error) {
		records, err := svc.History(ctx, input.Tenant, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &HistoryOutput{Body: toRecordResponses(records)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "available-transitions",
		Method:      http.MethodGet,
		Path:        base + "/entities/{id}/transitions",
		Summary:     "List transitions the actor may trigger",
		Tags:        tags,
	}, func(ctx context.Context, input *AvailableInput) (*AvailableOutput, error) {
		available, err := svc.AvailableTransitions(ctx, input.Tenant, input.ID, input.actor())
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]AvailableTransitionResponse, len(available))
		for i, a := range available {
			resp[i] = AvailableTransitionResponse{
				Target:   string(a.Target),
				Required: nonNil(a.Required),
				Fields:   nonNil(a.Fields),
			}
		}
		return &AvailableOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-entity",
		Method:      http.MethodPost,
		Path:        base + "/entities/{id}/transitions",
		Summary:     "Move an entity to a new status",
		Tags:        tags,
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		e, record, err := svc.Transition(ctx, input.Tenant, input.ID,
			domain.Status(input.Body.Target), input.actor(), input.Body.Payload)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &TransitionOutput{}
		out.Body.Entity = toEntityResponse(e)
		out.Body.Record = toRecordResponse(record)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-transition",
		Method:      http.MethodPost,
		Path:        base + "/bulk-transitions",
		Summary:     "Apply one transition to many entities",
		Description: "Entities that cannot move are skipped with the blocking rule; the rest are committed.",
		Tags:        tags,
	}, func(ctx context.Context, input *BulkTransitionInput) (*BulkTransitionOutput, error) {
		result, err := svc.BulkTransition(ctx, input.Tenant, domain.EntityType(input.Body.Type),
			input.Body.IDs, domain.Status(input.Body.Target), input.actor(), input.Body.Payload)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &BulkTransitionOutput{}
		out.Body.Succeeded = result.Succeeded
		out.Body.Skipped = make([]BulkSkipResponse, len(result.Skipped))
		for i, s := range result.Skipped {
			out.Body.Skipped[i] = BulkSkipResponse{EntityID: s.EntityID, Kind: s.Kind, Reason: s.Reason}
		}
		out.Body.Records = toRecordResponses(result.Records)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "entity-stats",
		Method:      http.MethodGet,
		Path:        base + "/stats/{type}",
		Summary:     "Count and amount per status",
		Tags:        tags,
	}, func(ctx context.Context, input *StatsInput) (*StatsOutput, error) {
		stats, err := svc.Stats(ctx, input.Tenant, domain.EntityType(input.Type))
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &StatsOutput{}
		out.Body.Type = input.Type
		out.Body.Stats = make([]StatusStatResponse, len(stats))
		for i, s := range stats {
			out.Body.Stats[i] = StatusStatResponse{Status: string(s.Status), Count: s.Count, Amount: s.Amount.String()}
		}
		return out, nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrEntityNotFound) {
		return huma.Error404NotFound("entity not found")
	}
	if errors.Is(err, domain.ErrEntityExists) {
		return huma.Error409Conflict("entity already exists")
	}

	var unknown *domain.UnknownEntityTypeError
	if errors.As(err, &unknown) {
		return huma.Error400BadRequest(unknown.Error())
	}

	var illegal *domain.IllegalTransitionError
	if errors.As(err, &illegal) {
		return huma.Error422UnprocessableEntity(illegal.Error())
	}

	var missing *domain.MissingPayloadError
	if errors.As(err, &missing) {
		details := make([]error, len(missing.Fields))
		for i, f := range missing.Fields {
			details[i] = &huma.ErrorDetail{Message: "required", Location: "body.payload." + f}
		}
		return huma.Error422UnprocessableEntity(missing.Error(), details...)
	}

	var invalid *domain.InvalidPayloadError
	if errors.As(err, &invalid) {
		return huma.Error422UnprocessableEntity(invalid.Error(), &huma.ErrorDetail{
			Message:  invalid.Rule,
			Location: "body.payload." + invalid.Field,
		})
	}

	var unauthorized *domain.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return huma.Error403Forbidden(unauthorized.Error())
	}

	var conflict *domain.ConcurrentModificationError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var persistence *domain.PersistenceError
	if errors.As(err, &persistence) {
		return huma.Error503ServiceUnavailable("storage unavailable, nothing was changed")
	}

	return huma.Error500InternalServerError("internal server error")
}
