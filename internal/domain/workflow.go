package domain

import "time"

// TargetType names the kind of entity a workflow definition governs.
type TargetType string

const TargetRequest TargetType = "REQUEST"

// StateCode is the stable identifier of a state within one definition.
type StateCode string

// Action names the trigger of a transition (e.g. SUBMIT, APPROVE).
type Action string

// RequestStatus is the coarse, UI-facing status of a procurement request.
type RequestStatus string

const (
	RequestDraft     RequestStatus = "DRAFT"
	RequestSubmitted RequestStatus = "SUBMITTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestFulfilled RequestStatus = "FULFILLED"
)

// Definition is one version of a named workflow graph for one tenant.
// At most one definition per (tenant, key, target type) is active.
type Definition struct {
	ID         string
	TenantID   string
	Key        string
	Name       string
	TargetType TargetType
	Version    int
	Active     bool
	CreatedAt  time.Time
}

// StateDefinition is a named state within a definition. Status, when set,
// is the request status written whenever an instance enters the state.
type StateDefinition struct {
	ID         string
	WorkflowID string
	Code       StateCode
	Name       string
	SortOrder  int
	IsInitial  bool
	IsTerminal bool
	Status     *RequestStatus
}

// TransitionDefinition is a directed, action-triggered edge between two states.
type TransitionDefinition struct {
	ID                 string
	WorkflowID         string
	FromStateID        string
	ToStateID          string
	Action             Action
	RequiredPermission string
	SortOrder          int
}

// Instance is the live state cursor of one request.
type Instance struct {
	ID             string
	TenantID       string
	DefinitionID   string
	RequestID      string
	CurrentStateID string
	CompletedAt    *time.Time
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Event is an immutable audit row for one applied transition.
// ActorUserID is nil for system-triggered transitions.
type Event struct {
	ID          string
	TenantID    string
	InstanceID  string
	FromStateID string
	ToStateID   string
	Action      Action
	Note        string
	ActorUserID *string
	OccurredAt  time.Time
}

// Request is the procurement request that owns a workflow instance.
type Request struct {
	ID         string
	TenantID   string
	GTMINumber int64
	Title      string
	Status     RequestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRequest creates a request in the DRAFT status. The GTMI number is
// assigned by the repository on insert.
func NewRequest(id, tenantID, title string) Request {
	now := time.Now().UTC()
	return Request{
		ID:        id,
		TenantID:  tenantID,
		Title:     title,
		Status:    RequestDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reason explains why a transition did not move the instance.
type Reason string

const ReasonTransitionNotAllowed Reason = "TRANSITION_NOT_ALLOWED"

// Result is the outcome of a transition attempt. When Moved is false,
// Reason is set and nothing was written.
type Result struct {
	Moved              bool
	Reason             Reason
	InstanceID         string
	Action             Action
	RequiredPermission string
	From               StateCode
	To                 StateCode
	Status             *RequestStatus
	Completed          bool
	EventID            string
}

// Actor identifies who triggers a transition and the permissions they hold.
type Actor struct {
	UserID      string
	Permissions []string
}

// TransitionNotice describes a committed transition for downstream consumers.
type TransitionNotice struct {
	TenantID    string
	RequestID   string
	InstanceID  string
	EventID     string
	Action      Action
	From        StateCode
	To          StateCode
	Status      *RequestStatus
	Completed   bool
	ActorUserID *string
	OccurredAt  time.Time
}
