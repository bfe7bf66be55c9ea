package domain

import "context"

// Repositories below read and write through the transaction carried by ctx
// when one is open (see TxManager).

// DefinitionRepository persists workflow definitions.
type DefinitionRepository interface {
	// Create inserts a definition. It returns ErrDefinitionExists when an
	// active definition for the same (tenant, key, target type) already exists.
	Create(ctx context.Context, def Definition) error
	FindActive(ctx context.Context, tenantID, key string, target TargetType) (Definition, error)
	LatestVersion(ctx context.Context, tenantID, key string, target TargetType) (int, error)
	Deactivate(ctx context.Context, tenantID, id string) error
	UpdateName(ctx context.Context, tenantID, id, name string) error
}

// StateRepository persists the states of a definition.
type StateRepository interface {
	// Upsert inserts the state or updates the mutable fields of the existing
	// state with the same (workflow id, code). It returns the stored row.
	Upsert(ctx context.Context, state StateDefinition) (StateDefinition, error)
	GetByID(ctx context.Context, id string) (StateDefinition, error)
	// ListByWorkflow returns states ordered by sort order.
	ListByWorkflow(ctx context.Context, workflowID string) ([]StateDefinition, error)
}

// TransitionRepository persists the transitions of a definition.
type TransitionRepository interface {
	// Upsert inserts the transition or updates destination, permission and
	// sort order of the existing one with the same (workflow id, from state id, action).
	Upsert(ctx context.Context, tr TransitionDefinition) (TransitionDefinition, error)
	// ListFrom returns transitions leaving a state ordered by sort order.
	ListFrom(ctx context.Context, workflowID, fromStateID string) ([]TransitionDefinition, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]TransitionDefinition, error)
}

// InstanceRepository persists workflow instances.
type InstanceRepository interface {
	// Create inserts the instance unless one already exists for the same
	// (tenant, request); created reports which happened.
	Create(ctx context.Context, inst Instance) (created bool, err error)
	FindByRequest(ctx context.Context, tenantID, requestID string) (Instance, error)
	// UpdateState writes the instance's current state and completion time if
	// the stored version still equals inst.Version, then bumps the version.
	// A stale version yields a *ConflictError.
	UpdateState(ctx context.Context, inst Instance) (Instance, error)
}

// EventRepository is the append-only audit trail.
type EventRepository interface {
	Append(ctx context.Context, ev Event) error
	ListByInstance(ctx context.Context, tenantID, instanceID string) ([]Event, error)
}

// RequestRepository is the tenant-scoped view of procurement requests.
type RequestRepository interface {
	Create(ctx context.Context, req Request) (Request, error)
	GetByID(ctx context.Context, tenantID, id string) (Request, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status RequestStatus) error
}

// TxManager runs fn inside a transaction carried by the context passed to
// fn. A ctx that already carries a transaction is reused.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit runs fn once the outermost transaction carried by ctx
	// commits, never if it rolls back. Without a transaction fn runs at once.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// TransitionSelector picks the transition matching an action among the
// transitions leaving a state. It returns a *TransitionError when none matches.
type TransitionSelector interface {
	Select(ctx context.Context, from StateDefinition, action Action, outgoing []TransitionDefinition) (TransitionDefinition, error)
	Available(from StateDefinition, outgoing []TransitionDefinition) []Action
}

// PermissionChecker decides whether an actor holding the given permissions
// may execute a transition.
type PermissionChecker interface {
	CanExecute(actorPermissions []string, tr TransitionDefinition) bool
}

// Notifier receives transitions after they commit.
type Notifier interface {
	Notify(ctx context.Context, notice TransitionNotice) error
}
