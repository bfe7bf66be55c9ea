package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: InstanceRepository implements domain.InstanceRepository.
var _ domain.InstanceRepository = (*InstanceRepository)(nil)

// InstanceRepository implements domain.InstanceRepository using SQLite.
type InstanceRepository struct {
	db *DB
}

// NewInstanceRepository creates an instance repository on db.
func NewInstanceRepository(db *DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Create relies on UNIQUE (tenant_id, request_id): a second instance for the
// same request is silently skipped and reported as not created.
func (r *InstanceRepository) Create(ctx context.Context, inst domain.Instance) (bool, error) {
	result, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO workflow_instances
		 (id, tenant_id, definition_id, request_id, current_state_id, completed_at, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, request_id) DO NOTHING`,
		inst.ID, inst.TenantID, inst.DefinitionID, inst.RequestID, inst.CurrentStateID,
		formatNullTime(inst.CompletedAt), inst.Version,
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting workflow instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *InstanceRepository) FindByRequest(ctx context.Context, tenantID, requestID string) (domain.Instance, error) {
	var inst domain.Instance
	var completedAt sql.NullString
	var createdAt, updatedAt string

	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, definition_id, request_id, current_state_id, completed_at, version, created_at, updated_at
		 FROM workflow_instances WHERE tenant_id = ? AND request_id = ?`,
		tenantID, requestID,
	).Scan(&inst.ID, &inst.TenantID, &inst.DefinitionID, &inst.RequestID, &inst.CurrentStateID,
		&completedAt, &inst.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Instance{}, domain.ErrInstanceNotFound
		}
		return domain.Instance{}, fmt.Errorf("scanning workflow instance: %w", err)
	}

	inst.CompletedAt = parseNullTime(completedAt)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}

// UpdateState is a compare-and-set on the version column.
func (r *InstanceRepository) UpdateState(ctx context.Context, inst domain.Instance) (domain.Instance, error) {
	result, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE workflow_instances
		 SET current_state_id = ?, completed_at = ?, version = version + 1, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND version = ?`,
		inst.CurrentStateID, formatNullTime(inst.CompletedAt), formatTime(inst.UpdatedAt),
		inst.TenantID, inst.ID, inst.Version,
	)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("updating workflow instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Instance{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.Instance{}, &domain.ConflictError{InstanceID: inst.ID, Version: inst.Version}
	}

	inst.Version++
	return inst, nil
}
