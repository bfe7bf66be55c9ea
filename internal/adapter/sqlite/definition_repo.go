package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: DefinitionRepository implements domain.DefinitionRepository.
var _ domain.DefinitionRepository = (*DefinitionRepository)(nil)

// DefinitionRepository implements domain.DefinitionRepository using SQLite.
type DefinitionRepository struct {
	db *DB
}

// NewDefinitionRepository creates a definition repository on db.
func NewDefinitionRepository(db *DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) Create(ctx context.Context, def domain.Definition) error {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO workflow_definitions
		 (id, tenant_id, workflow_key, name, target_type, version, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.TenantID, def.Key, def.Name, string(def.TargetType),
		def.Version, boolInt(def.Active), formatTime(def.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDefinitionExists
		}
		return fmt.Errorf("inserting workflow definition: %w", err)
	}
	return nil
}

func (r *DefinitionRepository) FindActive(ctx context.Context, tenantID, key string, target domain.TargetType) (domain.Definition, error) {
	var d domain.Definition
	var targetType, createdAt string
	var active int

	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, workflow_key, name, target_type, version, active, created_at
		 FROM workflow_definitions
		 WHERE tenant_id = ? AND workflow_key = ? AND target_type = ? AND active = 1`,
		tenantID, key, string(target),
	).Scan(&d.ID, &d.TenantID, &d.Key, &d.Name, &targetType, &d.Version, &active, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Definition{}, domain.ErrDefinitionNotFound
		}
		return domain.Definition{}, fmt.Errorf("scanning workflow definition: %w", err)
	}

	d.TargetType = domain.TargetType(targetType)
	d.Active = active == 1
	d.CreatedAt = parseTime(createdAt)
	return d, nil
}

func (r *DefinitionRepository) LatestVersion(ctx context.Context, tenantID, key string, target domain.TargetType) (int, error) {
	var version int
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM workflow_definitions
		 WHERE tenant_id = ? AND workflow_key = ? AND target_type = ?`,
		tenantID, key, string(target),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading latest definition version: %w", err)
	}
	return version, nil
}

func (r *DefinitionRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	return r.update(ctx,
		`UPDATE workflow_definitions SET active = 0 WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
}

func (r *DefinitionRepository) UpdateName(ctx context.Context, tenantID, id, name string) error {
	return r.update(ctx,
		`UPDATE workflow_definitions SET name = ? WHERE tenant_id = ? AND id = ?`,
		name, tenantID, id,
	)
}

func (r *DefinitionRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating workflow definition: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDefinitionNotFound
	}
	return nil
}
