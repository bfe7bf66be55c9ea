package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// EnsureDefinition makes sure the tenant has an active definition matching
// the blueprint. An existing active definition is reconciled in place;
// otherwise the next version is created. A definition holding states or
// transitions the blueprint dropped yields a *domain.DriftError and is left
// untouched.
func (s *WorkflowService) EnsureDefinition(ctx context.Context, tenantID string) (domain.Definition, error) {
	var def domain.Definition
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		def, err = s.ensureDefinition(ctx, tenantID)
		return err
	})
	if err != nil {
		return domain.Definition{}, fmt.Errorf("ensuring workflow definition: %w", err)
	}
	return def, nil
}

func (s *WorkflowService) ensureDefinition(ctx context.Context, tenantID string) (domain.Definition, error) {
	def, err := s.repos.Definitions.FindActive(ctx, tenantID, s.key, s.target)
	switch {
	case errors.Is(err, domain.ErrDefinitionNotFound):
		def, err = s.createDefinition(ctx, tenantID)
		if errors.Is(err, domain.ErrDefinitionExists) {
			// Lost the race on the active index; reconcile the winner.
			def, err = s.repos.Definitions.FindActive(ctx, tenantID, s.key, s.target)
		}
		if err != nil {
			return domain.Definition{}, err
		}
	case err != nil:
		return domain.Definition{}, fmt.Errorf("finding active definition: %w", err)
	}

	if err := s.checkDrift(ctx, def); err != nil {
		return domain.Definition{}, err
	}
	if def.Name != s.blueprint.Name {
		if err := s.repos.Definitions.UpdateName(ctx, tenantID, def.ID, s.blueprint.Name); err != nil {
			return domain.Definition{}, err
		}
		def.Name = s.blueprint.Name
	}
	if err := s.reconcile(ctx, def); err != nil {
		return domain.Definition{}, err
	}
	return def, nil
}

// checkDrift compares the stored graph of def with the blueprint. Upserts
// can add and update rows but never remove them, so anything stored that the
// blueprint lacks would survive reconciliation.
func (s *WorkflowService) checkDrift(ctx context.Context, def domain.Definition) error {
	states, err := s.repos.States.ListByWorkflow(ctx, def.ID)
	if err != nil {
		return err
	}
	transitions, err := s.repos.Transitions.ListByWorkflow(ctx, def.ID)
	if err != nil {
		return err
	}

	declaredStates := make(map[string]bool, len(s.blueprint.States))
	for _, st := range s.blueprint.States {
		declaredStates[st.Code] = true
	}
	declaredEdges := make(map[string]bool, len(s.blueprint.Transitions))
	for _, tr := range s.blueprint.Transitions {
		declaredEdges[tr.From+":"+tr.Action] = true
	}

	drift := &domain.DriftError{Key: def.Key, Version: def.Version}
	codes := make(map[string]domain.StateCode, len(states))
	for _, st := range states {
		codes[st.ID] = st.Code
		if !declaredStates[string(st.Code)] {
			drift.States = append(drift.States, st.Code)
		}
	}
	for _, tr := range transitions {
		edge := string(codes[tr.FromStateID]) + ":" + string(tr.Action)
		if !declaredEdges[edge] {
			drift.Transitions = append(drift.Transitions, edge)
		}
	}

	if len(drift.States) > 0 || len(drift.Transitions) > 0 {
		return drift
	}
	return nil
}

// Reprovision retires the active definition, if any, and creates the next
// version from the blueprint. Existing instances stay on their version.
func (s *WorkflowService) Reprovision(ctx context.Context, tenantID string) (domain.Definition, error) {
	var def domain.Definition
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repos.Definitions.FindActive(ctx, tenantID, s.key, s.target)
		switch {
		case err == nil:
			if err := s.repos.Definitions.Deactivate(ctx, tenantID, current.ID); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrDefinitionNotFound):
			return fmt.Errorf("finding active definition: %w", err)
		}

		def, err = s.createDefinition(ctx, tenantID)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, def)
	})
	if err != nil {
		return domain.Definition{}, fmt.Errorf("reprovisioning workflow definition: %w", err)
	}

	s.logger.Info("workflow definition reprovisioned",
		zap.String("tenant_id", tenantID),
		zap.String("key", def.Key),
		zap.Int("version", def.Version),
	)
	return def, nil
}

func (s *WorkflowService) createDefinition(ctx context.Context, tenantID string) (domain.Definition, error) {
	latest, err := s.repos.Definitions.LatestVersion(ctx, tenantID, s.key, s.target)
	if err != nil {
		return domain.Definition{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Definition{}, fmt.Errorf("generating definition id: %w", err)
	}

	def := domain.Definition{
		ID:         id,
		TenantID:   tenantID,
		Key:        s.key,
		Name:       s.blueprint.Name,
		TargetType: s.target,
		Version:    latest + 1,
		Active:     true,
		CreatedAt:  s.now(),
	}
	if err := s.repos.Definitions.Create(ctx, def); err != nil {
		return domain.Definition{}, err
	}

	s.logger.Info("workflow definition created",
		zap.String("tenant_id", tenantID),
		zap.String("key", def.Key),
		zap.Int("version", def.Version),
	)
	return def, nil
}

// reconcile upserts every blueprint state, then every blueprint transition,
// into def. Codes and (from, action) pairs are the stable keys.
func (s *WorkflowService) reconcile(ctx context.Context, def domain.Definition) error {
	ids := make(map[string]string, len(s.blueprint.States))
	for _, st := range s.blueprint.States {
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("generating state id: %w", err)
		}

		state := domain.StateDefinition{
			ID:         id,
			WorkflowID: def.ID,
			Code:       domain.StateCode(st.Code),
			Name:       st.Name,
			SortOrder:  st.Order,
			IsInitial:  st.Initial,
			IsTerminal: st.Terminal,
		}
		if st.Status != "" {
			status := domain.RequestStatus(st.Status)
			state.Status = &status
		}

		stored, err := s.repos.States.Upsert(ctx, state)
		if err != nil {
			return err
		}
		ids[st.Code] = stored.ID
	}

	for i, tr := range s.blueprint.Transitions {
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("generating transition id: %w", err)
		}

		if _, err := s.repos.Transitions.Upsert(ctx, domain.TransitionDefinition{
			ID:                 id,
			WorkflowID:         def.ID,
			FromStateID:        ids[tr.From],
			ToStateID:          ids[tr.To],
			Action:             domain.Action(tr.Action),
			RequiredPermission: tr.Permission,
			SortOrder:          i,
		}); err != nil {
			return err
		}
	}
	return nil
}
