package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: EventRepository implements domain.EventRepository.
var _ domain.EventRepository = (*EventRepository)(nil)

// EventRepository implements domain.EventRepository using SQLite. Rows are
// only ever inserted.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates an event repository on db.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, ev domain.Event) error {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO workflow_events
		 (id, tenant_id, instance_id, from_state_id, to_state_id, action, note, actor_user_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TenantID, ev.InstanceID, ev.FromStateID, ev.ToStateID,
		string(ev.Action), ev.Note, nullString(ev.ActorUserID), formatTime(ev.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("appending workflow event: %w", err)
	}
	return nil
}

// ListByInstance returns events in append order.
func (r *EventRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]domain.Event, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx,
		`SELECT id, tenant_id, instance_id, from_state_id, to_state_id, action, note, actor_user_id, occurred_at
		 FROM workflow_events WHERE tenant_id = ? AND instance_id = ?
		 ORDER BY rowid`,
		tenantID, instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing workflow events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var action, occurredAt string
		var actor sql.NullString

		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.InstanceID, &ev.FromStateID, &ev.ToStateID,
			&action, &ev.Note, &actor, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning workflow event row: %w", err)
		}

		ev.Action = domain.Action(action)
		ev.ActorUserID = stringPtr(actor)
		ev.OccurredAt = parseTime(occurredAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}
