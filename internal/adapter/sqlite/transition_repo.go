package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: TransitionRepository implements domain.TransitionRepository.
var _ domain.TransitionRepository = (*TransitionRepository)(nil)

// TransitionRepository implements domain.TransitionRepository using SQLite.
type TransitionRepository struct {
	db *DB
}

// NewTransitionRepository creates a transition repository on db.
func NewTransitionRepository(db *DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

const transitionColumns = `id, workflow_id, from_state_id, to_state_id, action, required_permission, sort_order`

// Upsert keys on (workflow_id, from_state_id, action).
func (r *TransitionRepository) Upsert(ctx context.Context, t domain.TransitionDefinition) (domain.TransitionDefinition, error) {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO workflow_transitions (`+transitionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_id, from_state_id, action) DO UPDATE SET
		     to_state_id = excluded.to_state_id,
		     required_permission = excluded.required_permission,
		     sort_order = excluded.sort_order`,
		t.ID, t.WorkflowID, t.FromStateID, t.ToStateID, string(t.Action),
		t.RequiredPermission, t.SortOrder,
	)
	if err != nil {
		return domain.TransitionDefinition{}, fmt.Errorf("upserting workflow transition %s: %w", t.Action, err)
	}

	tr, err := scanTransition(r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transitionColumns+` FROM workflow_transitions
		 WHERE workflow_id = ? AND from_state_id = ? AND action = ?`,
		t.WorkflowID, t.FromStateID, string(t.Action),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TransitionDefinition{}, fmt.Errorf("transition %s vanished after upsert", t.Action)
	}
	return tr, err
}

func (r *TransitionRepository) ListFrom(ctx context.Context, workflowID, fromStateID string) ([]domain.TransitionDefinition, error) {
	return r.list(ctx,
		`SELECT `+transitionColumns+` FROM workflow_transitions
		 WHERE workflow_id = ? AND from_state_id = ? ORDER BY sort_order, rowid`,
		workflowID, fromStateID,
	)
}

func (r *TransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]domain.TransitionDefinition, error) {
	return r.list(ctx,
		`SELECT `+transitionColumns+` FROM workflow_transitions
		 WHERE workflow_id = ? ORDER BY sort_order, rowid`,
		workflowID,
	)
}

func (r *TransitionRepository) list(ctx context.Context, query string, args ...any) ([]domain.TransitionDefinition, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing workflow transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.TransitionDefinition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransition(row rowScanner) (domain.TransitionDefinition, error) {
	var t domain.TransitionDefinition
	var action string

	err := row.Scan(&t.ID, &t.WorkflowID, &t.FromStateID, &t.ToStateID, &action, &t.RequiredPermission, &t.SortOrder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TransitionDefinition{}, err
		}
		return domain.TransitionDefinition{}, fmt.Errorf("scanning workflow transition: %w", err)
	}

	t.Action = domain.Action(action)
	return t, nil
}
