package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: StateRepository implements domain.StateRepository.
var _ domain.StateRepository = (*StateRepository)(nil)

// StateRepository implements domain.StateRepository using SQLite.
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a state repository on db.
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

const stateColumns = `id, workflow_id, code, name, sort_order, is_initial, is_terminal, status`

// Upsert keys on (workflow_id, code); the id of an existing row is kept.
func (r *StateRepository) Upsert(ctx context.Context, s domain.StateDefinition) (domain.StateDefinition, error) {
	var status sql.NullString
	if s.Status != nil {
		status = sql.NullString{String: string(*s.Status), Valid: true}
	}

	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO workflow_states (`+stateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_id, code) DO UPDATE SET
		     name = excluded.name,
		     sort_order = excluded.sort_order,
		     is_initial = excluded.is_initial,
		     is_terminal = excluded.is_terminal,
		     status = excluded.status`,
		s.ID, s.WorkflowID, string(s.Code), s.Name, s.SortOrder,
		boolInt(s.IsInitial), boolInt(s.IsTerminal), status,
	)
	if err != nil {
		return domain.StateDefinition{}, fmt.Errorf("upserting workflow state %s: %w", s.Code, err)
	}

	return scanState(r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM workflow_states WHERE workflow_id = ? AND code = ?`,
		s.WorkflowID, string(s.Code),
	))
}

func (r *StateRepository) GetByID(ctx context.Context, id string) (domain.StateDefinition, error) {
	return scanState(r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM workflow_states WHERE id = ?`, id,
	))
}

func (r *StateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]domain.StateDefinition, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx,
		`SELECT `+stateColumns+` FROM workflow_states
		 WHERE workflow_id = ? ORDER BY sort_order, rowid`, workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing workflow states: %w", err)
	}
	defer rows.Close()

	var states []domain.StateDefinition
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (domain.StateDefinition, error) {
	var s domain.StateDefinition
	var code string
	var initial, terminal int
	var status sql.NullString

	err := row.Scan(&s.ID, &s.WorkflowID, &code, &s.Name, &s.SortOrder, &initial, &terminal, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StateDefinition{}, domain.ErrStateNotFound
		}
		return domain.StateDefinition{}, fmt.Errorf("scanning workflow state: %w", err)
	}

	s.Code = domain.StateCode(code)
	s.IsInitial = initial == 1
	s.IsTerminal = terminal == 1
	if status.Valid {
		st := domain.RequestStatus(status.String)
		s.Status = &st
	}
	return s, nil
}
