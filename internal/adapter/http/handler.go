package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/app"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

// RequestResponse is the API representation of a procurement request.
type RequestResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	GTMINumber int64  `json:"gtmi_number" doc:"Per-tenant sequential request number"`
	Title      string `json:"title" doc:"Short description"`
	Status     string `json:"status" doc:"Coarse request status"`
	CreatedAt  string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt  string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toRequestResponse(r domain.Request) RequestResponse {
	return RequestResponse{
		ID:         r.ID,
		GTMINumber: r.GTMINumber,
		Title:      r.Title,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:  r.UpdatedAt.UTC().Format(timeLayout),
	}
}

// DefinitionResponse is the API representation of a workflow definition.
type DefinitionResponse struct {
	ID         string `json:"id"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	TargetType string `json:"target_type"`
	Version    int    `json:"version"`
	Active     bool   `json:"active"`
}

// WorkflowResponse is the current position of a request in its workflow.
type WorkflowResponse struct {
	InstanceID  string          `json:"instance_id"`
	Request     RequestResponse `json:"request"`
	State       string          `json:"state" doc:"Current state code"`
	StateName   string          `json:"state_name"`
	Terminal    bool            `json:"terminal"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Actions     []string        `json:"actions" doc:"Actions available from the current state"`
}

// TransitionResponse is the outcome of an applied transition.
type TransitionResponse struct {
	InstanceID         string `json:"instance_id"`
	EventID            string `json:"event_id"`
	Action             string `json:"action"`
	From               string `json:"from"`
	To                 string `json:"to"`
	Status             string `json:"status,omitempty" doc:"Request status written by the transition, if any"`
	Completed          bool   `json:"completed"`
	RequiredPermission string `json:"required_permission,omitempty"`
}

func toTransitionResponse(r domain.Result) TransitionResponse {
	resp := TransitionResponse{
		InstanceID:         r.InstanceID,
		EventID:            r.EventID,
		Action:             string(r.Action),
		From:               string(r.From),
		To:                 string(r.To),
		Completed:          r.Completed,
		RequiredPermission: r.RequiredPermission,
	}
	if r.Status != nil {
		resp.Status = string(*r.Status)
	}
	return resp
}

// EventResponse is one audit trail entry.
type EventResponse struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	From        string `json:"from"`
	To          string `json:"to"`
	Note        string `json:"note,omitempty"`
	ActorUserID string `json:"actor_user_id,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}

// --- Inputs ---

// ActorHeaders carries the caller identity. Authentication happens upstream.
type ActorHeaders struct {
	ActorID     string `header:"X-Actor-ID" doc:"User triggering the transition"`
	Permissions string `header:"X-Actor-Permissions" doc:"Comma-separated permissions held by the user"`
}

func (h ActorHeaders) actor() *domain.Actor {
	if h.ActorID == "" && h.Permissions == "" {
		return nil
	}
	a := &domain.Actor{UserID: h.ActorID}
	for _, p := range strings.Split(h.Permissions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			a.Permissions = append(a.Permissions, p)
		}
	}
	return a
}

type CreateRequestInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	Body   struct {
		Title string `json:"title" minLength:"1" maxLength:"255" doc:"Short description"`
	}
}

type CreateRequestOutput struct {
	Body RequestResponse
}

type EnsureDefinitionInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
}

type EnsureDefinitionOutput struct {
	Body DefinitionResponse
}

type RequestPathInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	ID     string `path:"id" doc:"Request ID"`
}

type WorkflowOutput struct {
	Body WorkflowResponse
}

type ActionInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	ID     string `path:"id" doc:"Request ID"`
	ActorHeaders
	Body struct {
		Action string `json:"action" minLength:"1" doc:"Action to fire, e.g. SUBMIT or APPROVE"`
		Note   string `json:"note,omitempty" maxLength:"2000" doc:"Free-text audit note"`
	}
}

type StatusInput struct {
	Tenant string `path:"tenant" doc:"Tenant ID"`
	ID     string `path:"id" doc:"Request ID"`
	ActorHeaders
	Body struct {
		Status string `json:"status" enum:"DRAFT,SUBMITTED,APPROVED,REJECTED,FULFILLED" doc:"Target request status"`
		Note   string `json:"note,omitempty" maxLength:"2000" doc:"Free-text audit note"`
	}
}

type TransitionOutput struct {
	Body TransitionResponse
}

type HistoryOutput struct {
	Body []EventResponse
}

// Register adds all workflow API routes to the Huma API.
func Register(api huma.API, svc *app.WorkflowService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/tenants/{tenant}/requests",
		Summary:       "Create a procurement request",
		Tags:          []string{"Requests"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateRequestInput) (*CreateRequestOutput, error) {
		req, err := svc.CreateRequest(ctx, input.Tenant, input.Body.Title)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateRequestOutput{Body: toRequestResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ensure-workflow-definition",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/{tenant}/workflow/definition",
		Summary:     "Provision or reconcile the tenant's workflow definition",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *EnsureDefinitionInput) (*EnsureDefinitionOutput, error) {
		def, err := svc.EnsureDefinition(ctx, input.Tenant)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &EnsureDefinitionOutput{Body: DefinitionResponse{
			ID:         def.ID,
			Key:        def.Key,
			Name:       def.Name,
			TargetType: string(def.TargetType),
			Version:    def.Version,
			Active:     def.Active,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request-workflow",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant}/requests/{id}/workflow",
		Summary:     "Get the workflow position of a request",
		Description: "Creates the workflow instance at its start state on first read; no audit event is written.",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *RequestPathInput) (*WorkflowOutput, error) {
		snap, err := svc.Snapshot(ctx, input.Tenant, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := WorkflowResponse{
			InstanceID: snap.Instance.ID,
			Request:    toRequestResponse(snap.Request),
			State:      string(snap.State.Code),
			StateName:  snap.State.Name,
			Terminal:   snap.State.IsTerminal,
			Actions:    make([]string, 0, len(snap.Available)),
		}
		if snap.Instance.CompletedAt != nil {
			resp.CompletedAt = snap.Instance.CompletedAt.UTC().Format(timeLayout)
		}
		for _, a := range snap.Available {
			resp.Actions = append(resp.Actions, string(a))
		}
		return &WorkflowOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-request-by-action",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenant}/requests/{id}/workflow/actions",
		Summary:     "Fire a workflow action",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *ActionInput) (*TransitionOutput, error) {
		res, err := svc.TransitionByAction(ctx, app.TransitionRequest{
			TenantID:  input.Tenant,
			RequestID: input.ID,
			Actor:     input.actor(),
			Note:      input.Body.Note,
		}, domain.Action(input.Body.Action))
		if err != nil {
			return nil, toHumaError(err)
		}
		if !res.Moved {
			return nil, notAllowed(res)
		}
		return &TransitionOutput{Body: toTransitionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-request-to-status",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenant}/requests/{id}/workflow/status",
		Summary:     "Move a request towards a target status",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *StatusInput) (*TransitionOutput, error) {
		res, err := svc.TransitionToStatus(ctx, app.TransitionRequest{
			TenantID:  input.Tenant,
			RequestID: input.ID,
			Actor:     input.actor(),
			Note:      input.Body.Note,
		}, domain.RequestStatus(input.Body.Status))
		if err != nil {
			return nil, toHumaError(err)
		}
		if !res.Moved {
			return nil, notAllowed(res)
		}
		return &TransitionOutput{Body: toTransitionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-request-workflow-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant}/requests/{id}/workflow/events",
		Summary:     "List the audit trail of a request",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *RequestPathInput) (*HistoryOutput, error) {
		entries, err := svc.History(ctx, input.Tenant, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]EventResponse, len(entries))
		for i, e := range entries {
			resp[i] = EventResponse{
				ID:         e.ID,
				Action:     string(e.Action),
				From:       string(e.From),
				To:         string(e.To),
				Note:       e.Note,
				OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
			}
			if e.ActorUserID != nil {
				resp[i].ActorUserID = *e.ActorUserID
			}
		}
		return &HistoryOutput{Body: resp}, nil
	})
}

func notAllowed(res domain.Result) error {
	return huma.Error422UnprocessableEntity(
		fmt.Sprintf("%s: no transition from state %s", res.Reason, res.From),
	)
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDefinitionNotFound):
		return huma.Error404NotFound("workflow definition not found; provision the tenant first")
	case errors.Is(err, domain.ErrRequestNotFound):
		return huma.Error404NotFound("request not found")
	case errors.Is(err, domain.ErrInstanceNotFound):
		return huma.Error404NotFound("workflow instance not found")
	}

	var permErr *domain.PermissionError
	if errors.As(err, &permErr) {
		return huma.Error403Forbidden(permErr.Error())
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var drift *domain.DriftError
	if errors.As(err, &drift) {
		return huma.Error409Conflict(drift.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
