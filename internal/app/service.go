package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/blueprint"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Repositories groups the per-entity persistence ports the engine writes to.
type Repositories struct {
	Definitions domain.DefinitionRepository
	States      domain.StateRepository
	Transitions domain.TransitionRepository
	Instances   domain.InstanceRepository
	Events      domain.EventRepository
	Requests    domain.RequestRepository
}

// WorkflowService provisions workflow definitions and moves requests
// through them.
type WorkflowService struct {
	repos     Repositories
	tx        domain.TxManager
	selector  domain.TransitionSelector
	blueprint *blueprint.Blueprint
	key       string
	target    domain.TargetType

	checker  domain.PermissionChecker
	notifier domain.Notifier
	logger   *zap.Logger
	now      func() time.Time
	lazy     bool
}

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithNotifier hands every committed transition to n.
func WithNotifier(n domain.Notifier) Option {
	return func(s *WorkflowService) { s.notifier = n }
}

// WithPermissionChecker makes the service enforce required permissions.
// Without a checker the required permission is only reported in the result.
func WithPermissionChecker(c domain.PermissionChecker) Option {
	return func(s *WorkflowService) { s.checker = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *WorkflowService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *WorkflowService) { s.now = now }
}

// WithWorkflowKey overrides the definition key taken from the blueprint.
func WithWorkflowKey(key string) Option {
	return func(s *WorkflowService) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLazyProvisioning makes the first workflow use of a tenant without an
// active definition provision one, in the same transaction, instead of
// failing with domain.ErrDefinitionNotFound.
func WithLazyProvisioning(enabled bool) Option {
	return func(s *WorkflowService) { s.lazy = enabled }
}

// NewWorkflowService creates a service that provisions bp for every tenant.
func NewWorkflowService(repos Repositories, tx domain.TxManager, selector domain.TransitionSelector, bp *blueprint.Blueprint, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		repos:     repos,
		tx:        tx,
		selector:  selector,
		blueprint: bp,
		key:       bp.Key,
		target:    domain.TargetType(bp.TargetType),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransitionRequest identifies the request to move and who is moving it.
// A nil Actor marks a system-triggered transition.
type TransitionRequest struct {
	TenantID  string
	RequestID string
	Actor     *domain.Actor
	Note      string
}

// Snapshot is the current position of a request in its workflow.
type Snapshot struct {
	Request   domain.Request
	Instance  domain.Instance
	State     domain.StateDefinition
	Available []domain.Action
}

// HistoryEntry is an audit event with its state ids resolved to codes.
type HistoryEntry struct {
	domain.Event
	From domain.StateCode
	To   domain.StateCode
}

// CreateRequest stores a new DRAFT request; the repository assigns its GTMI number.
func (s *WorkflowService) CreateRequest(ctx context.Context, tenantID, title string) (domain.Request, error) {
	id, err := generateID()
	if err != nil {
		return domain.Request{}, fmt.Errorf("generating request id: %w", err)
	}

	req, err := s.repos.Requests.Create(ctx, domain.NewRequest(id, tenantID, title))
	if err != nil {
		return domain.Request{}, fmt.Errorf("creating request: %w", err)
	}
	return req, nil
}

// EnsureInstance returns the workflow instance of a request, creating it at
// the resolved start state when it does not exist yet. When ctx carries an
// open transaction the instance is created inside it.
func (s *WorkflowService) EnsureInstance(ctx context.Context, tenantID, requestID string) (domain.Instance, error) {
	var inst domain.Instance
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		inst, err = s.ensureInstance(ctx, tenantID, requestID)
		return err
	})
	return inst, err
}

func (s *WorkflowService) ensureInstance(ctx context.Context, tenantID, requestID string) (domain.Instance, error) {
	inst, err := s.repos.Instances.FindByRequest(ctx, tenantID, requestID)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, domain.ErrInstanceNotFound) {
		return domain.Instance{}, fmt.Errorf("finding workflow instance: %w", err)
	}

	def, err := s.repos.Definitions.FindActive(ctx, tenantID, s.key, s.target)
	if errors.Is(err, domain.ErrDefinitionNotFound) && s.lazy {
		def, err = s.ensureDefinition(ctx, tenantID)
	}
	if err != nil {
		return domain.Instance{}, err
	}

	req, err := s.repos.Requests.GetByID(ctx, tenantID, requestID)
	if err != nil {
		return domain.Instance{}, err
	}

	states, err := s.repos.States.ListByWorkflow(ctx, def.ID)
	if err != nil {
		return domain.Instance{}, err
	}
	start, ok := resolveStartState(states, req.Status)
	if !ok {
		return domain.Instance{}, fmt.Errorf("workflow definition %s v%d has no states: %w", def.Key, def.Version, domain.ErrStateNotFound)
	}

	id, err := generateID()
	if err != nil {
		return domain.Instance{}, fmt.Errorf("generating instance id: %w", err)
	}

	now := s.now()
	inst = domain.Instance{
		ID:             id,
		TenantID:       tenantID,
		DefinitionID:   def.ID,
		RequestID:      requestID,
		CurrentStateID: start.ID,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if start.IsTerminal {
		inst.CompletedAt = &now
	}

	created, err := s.repos.Instances.Create(ctx, inst)
	if err != nil {
		return domain.Instance{}, err
	}
	if !created {
		// Another caller bootstrapped the instance first.
		return s.repos.Instances.FindByRequest(ctx, tenantID, requestID)
	}

	s.logger.Info("workflow instance created",
		zap.String("tenant_id", tenantID),
		zap.String("request_id", requestID),
		zap.String("state", string(start.Code)),
		zap.Int("definition_version", def.Version),
	)
	return inst, nil
}

// resolveStartState picks the state a new instance starts in: the first
// state mapped to the request's current status, else the initial state,
// else the first state. states must be ordered by sort order.
func resolveStartState(states []domain.StateDefinition, status domain.RequestStatus) (domain.StateDefinition, bool) {
	if len(states) == 0 {
		return domain.StateDefinition{}, false
	}
	for _, st := range states {
		if st.Status != nil && *st.Status == status {
			return st, true
		}
	}
	for _, st := range states {
		if st.IsInitial {
			return st, true
		}
	}
	return states[0], true
}

// TransitionByAction fires action on the request's workflow instance. When
// no transition leaves the current state on action, the result carries
// Moved=false and nothing is written.
func (s *WorkflowService) TransitionByAction(ctx context.Context, req TransitionRequest, action domain.Action) (domain.Result, error) {
	return s.execute(ctx, req, action, func(ctx context.Context, from domain.StateDefinition, outgoing []domain.TransitionDefinition, _ map[string]domain.StateDefinition) (domain.TransitionDefinition, bool, error) {
		tr, err := s.selector.Select(ctx, from, action, outgoing)
		if err != nil {
			var notAllowed *domain.TransitionError
			if errors.As(err, &notAllowed) {
				return domain.TransitionDefinition{}, false, nil
			}
			return domain.TransitionDefinition{}, false, err
		}
		return tr, true, nil
	})
}

// TransitionToStatus applies the first transition, in sort order, leaving
// the current state towards a state mapped to target.
func (s *WorkflowService) TransitionToStatus(ctx context.Context, req TransitionRequest, target domain.RequestStatus) (domain.Result, error) {
	return s.execute(ctx, req, "", func(_ context.Context, _ domain.StateDefinition, outgoing []domain.TransitionDefinition, states map[string]domain.StateDefinition) (domain.TransitionDefinition, bool, error) {
		for _, tr := range outgoing {
			to, ok := states[tr.ToStateID]
			if ok && to.Status != nil && *to.Status == target {
				return tr, true, nil
			}
		}
		return domain.TransitionDefinition{}, false, nil
	})
}

type pickFunc func(ctx context.Context, from domain.StateDefinition, outgoing []domain.TransitionDefinition, states map[string]domain.StateDefinition) (domain.TransitionDefinition, bool, error)

// execute runs one transition attempt in a single transaction: bootstrap the
// instance, pick the transition, then move the instance, sync the request
// status and append the audit event. The notifier hears about it only after
// the outermost transaction commits.
func (s *WorkflowService) execute(ctx context.Context, req TransitionRequest, requested domain.Action, pick pickFunc) (domain.Result, error) {
	var result domain.Result

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.ensureInstance(ctx, req.TenantID, req.RequestID)
		if err != nil {
			return err
		}

		states, err := s.statesByID(ctx, inst.DefinitionID)
		if err != nil {
			return err
		}
		from, ok := states[inst.CurrentStateID]
		if !ok {
			return fmt.Errorf("current state %s of instance %s: %w", inst.CurrentStateID, inst.ID, domain.ErrStateNotFound)
		}

		outgoing, err := s.repos.Transitions.ListFrom(ctx, inst.DefinitionID, from.ID)
		if err != nil {
			return err
		}

		tr, ok, err := pick(ctx, from, outgoing, states)
		if err != nil {
			return err
		}
		if !ok {
			result = domain.Result{
				Moved:      false,
				Reason:     domain.ReasonTransitionNotAllowed,
				InstanceID: inst.ID,
				Action:     requested,
				From:       from.Code,
			}
			return nil
		}

		if err := s.authorize(req.Actor, tr); err != nil {
			return err
		}

		to, ok := states[tr.ToStateID]
		if !ok {
			return fmt.Errorf("target state %s of transition %s: %w", tr.ToStateID, tr.Action, domain.ErrStateNotFound)
		}

		now := s.now()
		inst.CurrentStateID = to.ID
		inst.UpdatedAt = now
		inst.CompletedAt = nil
		if to.IsTerminal {
			inst.CompletedAt = &now
		}
		if _, err := s.repos.Instances.UpdateState(ctx, inst); err != nil {
			return err
		}

		if err := s.syncRequestStatus(ctx, req.TenantID, req.RequestID, to); err != nil {
			return err
		}

		eventID, err := generateID()
		if err != nil {
			return fmt.Errorf("generating event id: %w", err)
		}
		ev := domain.Event{
			ID:          eventID,
			TenantID:    req.TenantID,
			InstanceID:  inst.ID,
			FromStateID: from.ID,
			ToStateID:   to.ID,
			Action:      tr.Action,
			Note:        req.Note,
			ActorUserID: actorID(req.Actor),
			OccurredAt:  now,
		}
		if err := s.repos.Events.Append(ctx, ev); err != nil {
			return err
		}

		result = domain.Result{
			Moved:              true,
			InstanceID:         inst.ID,
			Action:             tr.Action,
			RequiredPermission: tr.RequiredPermission,
			From:               from.Code,
			To:                 to.Code,
			Status:             to.Status,
			Completed:          to.IsTerminal,
			EventID:            ev.ID,
		}
		notice := domain.TransitionNotice{
			TenantID:    req.TenantID,
			RequestID:   req.RequestID,
			InstanceID:  inst.ID,
			EventID:     ev.ID,
			Action:      tr.Action,
			From:        from.Code,
			To:          to.Code,
			Status:      to.Status,
			Completed:   to.IsTerminal,
			ActorUserID: ev.ActorUserID,
			OccurredAt:  now,
		}
		s.tx.AfterCommit(ctx, func(ctx context.Context) { s.applied(ctx, notice) })
		return nil
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Warn("workflow transition lost a concurrent update",
				zap.String("tenant_id", req.TenantID),
				zap.String("request_id", req.RequestID),
				zap.String("instance_id", conflict.InstanceID),
			)
		}
		return domain.Result{}, err
	}

	if !result.Moved {
		s.logger.Debug("workflow transition not allowed",
			zap.String("tenant_id", req.TenantID),
			zap.String("request_id", req.RequestID),
			zap.String("state", string(result.From)),
			zap.String("action", string(requested)),
		)
		return result, nil
	}

	return result, nil
}

// applied runs once the transition is durable: inside a caller's
// transaction that is after the caller commits.
func (s *WorkflowService) applied(ctx context.Context, notice domain.TransitionNotice) {
	s.logger.Info("workflow transition applied",
		zap.String("tenant_id", notice.TenantID),
		zap.String("request_id", notice.RequestID),
		zap.String("action", string(notice.Action)),
		zap.String("from", string(notice.From)),
		zap.String("to", string(notice.To)),
	)
	s.notify(ctx, notice)
}

// syncRequestStatus is the only writer of Request.status for workflow
// transitions. States without a status mapping leave the request untouched.
func (s *WorkflowService) syncRequestStatus(ctx context.Context, tenantID, requestID string, st domain.StateDefinition) error {
	if st.Status == nil {
		return nil
	}
	if err := s.repos.Requests.UpdateStatus(ctx, tenantID, requestID, *st.Status); err != nil {
		return fmt.Errorf("syncing request status: %w", err)
	}
	return nil
}

func (s *WorkflowService) authorize(actor *domain.Actor, tr domain.TransitionDefinition) error {
	if s.checker == nil {
		return nil
	}
	var perms []string
	if actor != nil {
		perms = actor.Permissions
	}
	if !s.checker.CanExecute(perms, tr) {
		return &domain.PermissionError{Action: tr.Action, Permission: tr.RequiredPermission}
	}
	return nil
}

func (s *WorkflowService) notify(ctx context.Context, notice domain.TransitionNotice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Error("publishing workflow transition",
			zap.String("tenant_id", notice.TenantID),
			zap.String("request_id", notice.RequestID),
			zap.String("event_id", notice.EventID),
			zap.Error(err),
		)
	}
}

func (s *WorkflowService) statesByID(ctx context.Context, definitionID string) (map[string]domain.StateDefinition, error) {
	states, err := s.repos.States.ListByWorkflow(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.StateDefinition, len(states))
	for _, st := range states {
		out[st.ID] = st
	}
	return out, nil
}

func actorID(a *domain.Actor) *string {
	if a == nil || a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

// Snapshot returns where a request stands in its workflow and which actions
// are available from there. A first read creates the instance at the start
// state; no audit event is written for it.
func (s *WorkflowService) Snapshot(ctx context.Context, tenantID, requestID string) (Snapshot, error) {
	var snap Snapshot
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.ensureInstance(ctx, tenantID, requestID)
		if err != nil {
			return err
		}

		req, err := s.repos.Requests.GetByID(ctx, tenantID, requestID)
		if err != nil {
			return err
		}

		current, err := s.repos.States.GetByID(ctx, inst.CurrentStateID)
		if err != nil {
			return err
		}

		outgoing, err := s.repos.Transitions.ListFrom(ctx, inst.DefinitionID, current.ID)
		if err != nil {
			return err
		}

		snap = Snapshot{
			Request:   req,
			Instance:  inst,
			State:     current,
			Available: s.selector.Available(current, outgoing),
		}
		return nil
	})
	return snap, err
}

// History returns the audit trail of a request in append order. A request
// without an instance has an empty history.
func (s *WorkflowService) History(ctx context.Context, tenantID, requestID string) ([]HistoryEntry, error) {
	inst, err := s.repos.Instances.FindByRequest(ctx, tenantID, requestID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		if _, err := s.repos.Requests.GetByID(ctx, tenantID, requestID); err != nil {
			return nil, err
		}
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	events, err := s.repos.Events.ListByInstance(ctx, tenantID, inst.ID)
	if err != nil {
		return nil, err
	}

	states, err := s.statesByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(events))
	for _, ev := range events {
		out = append(out, HistoryEntry{
			Event: ev,
			From:  states[ev.FromStateID].Code,
			To:    states[ev.ToStateID].Code,
		})
	}
	return out, nil
}
