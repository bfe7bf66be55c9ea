package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: RequestRepository implements domain.RequestRepository.
var _ domain.RequestRepository = (*RequestRepository)(nil)

// RequestRepository implements domain.RequestRepository using SQLite.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a request repository on db.
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts the request and assigns the next GTMI number of its tenant
// in the same statement.
func (r *RequestRepository) Create(ctx context.Context, req domain.Request) (domain.Request, error) {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO requests (id, tenant_id, gtmi_number, title, status, created_at, updated_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(gtmi_number), 0) + 1 FROM requests WHERE tenant_id = ?), ?, ?, ?, ?)`,
		req.ID, req.TenantID, req.TenantID, req.Title, string(req.Status),
		formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		return domain.Request{}, fmt.Errorf("inserting request: %w", err)
	}

	return r.GetByID(ctx, req.TenantID, req.ID)
}

func (r *RequestRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Request, error) {
	var req domain.Request
	var status, createdAt, updatedAt string

	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, gtmi_number, title, status, created_at, updated_at
		 FROM requests WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	).Scan(&req.ID, &req.TenantID, &req.GTMINumber, &req.Title, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("scanning request: %w", err)
	}

	req.Status = domain.RequestStatus(status)
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	return req, nil
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, tenantID, id string, status domain.RequestStatus) error {
	result, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		string(status), formatTime(time.Now()), tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("updating request status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}
