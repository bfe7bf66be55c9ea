package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: Notifier implements domain.Notifier.
var _ domain.Notifier = (*Notifier)(nil)

// TransitionJobArgs carries a committed workflow transition to the worker.
// River serializes this as JSON into its job queue table. It is a snapshot
// taken at commit time, so the worker never needs to query the database.
type TransitionJobArgs struct {
	TenantID    string    `json:"tenant_id"`
	RequestID   string    `json:"request_id"`
	InstanceID  string    `json:"instance_id"`
	EventID     string    `json:"event_id"`
	Action      string    `json:"action"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Status      string    `json:"status,omitempty"`
	Completed   bool      `json:"completed"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "workflow.transitioned" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Notifier implements domain.Notifier by enqueuing River jobs.
type Notifier struct {
	client *Client
}

// NewNotifier creates a notifier backed by the given River client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// Notify enqueues a transition notice as an async job in River.
func (n *Notifier) Notify(ctx context.Context, notice domain.TransitionNotice) error {
	args := TransitionJobArgs{
		TenantID:   notice.TenantID,
		RequestID:  notice.RequestID,
		InstanceID: notice.InstanceID,
		EventID:    notice.EventID,
		Action:     string(notice.Action),
		From:       string(notice.From),
		To:         string(notice.To),
		Completed:  notice.Completed,
		OccurredAt: notice.OccurredAt,
	}
	if notice.Status != nil {
		args.Status = string(*notice.Status)
	}
	if notice.ActorUserID != nil {
		args.ActorUserID = *notice.ActorUserID
	}

	if _, err := n.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
