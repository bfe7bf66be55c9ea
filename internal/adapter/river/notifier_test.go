package river_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"go.uber.org/zap/zaptest"

	_ "modernc.org/sqlite"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/fsm"
	riveradapter "github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/river"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/sqlite"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/app"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/blueprint"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := t.TempDir() + "/river_test.db"
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("setting WAL: %v", err)
	}

	return db
}

func startClient(t *testing.T, db *sql.DB) (*riveradapter.Client, <-chan *goriver.Event) {
	t.Helper()
	ctx := context.Background()

	client, err := riveradapter.Setup(ctx, db, zaptest.NewLogger(t), 1)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	// Subscribe to job completions before starting so we don't miss events.
	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	t.Cleanup(subscribeCancel)

	if err := client.Start(ctx); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})

	return client, subscribeChan
}

func sampleNotice() domain.TransitionNotice {
	status := domain.RequestApproved
	actor := "user-9"
	return domain.TransitionNotice{
		TenantID:    "t-42",
		RequestID:   "req-7",
		InstanceID:  "inst-7",
		EventID:     "ev-1",
		Action:      "PRESIDENCY_APPROVE",
		From:        "SUBMITTED",
		To:          "APPROVED",
		Status:      &status,
		ActorUserID: &actor,
		OccurredAt:  time.Now().UTC(),
	}
}

func TestNotifier_Notify_EnqueuesJob(t *testing.T) {
	db := setupTestDB(t)
	client, completed := startClient(t, db)

	if err := riveradapter.NewNotifier(client).Notify(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	// Wait for the worker to process the job.
	select {
	case event := <-completed:
		if event.Job.Kind != "workflow.transitioned" {
			t.Errorf("job kind = %q, want %q", event.Job.Kind, "workflow.transitioned")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

func TestNotifier_Notify_PreservesTransitionData(t *testing.T) {
	db := setupTestDB(t)
	client, completed := startClient(t, db)

	if err := riveradapter.NewNotifier(client).Notify(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case event := <-completed:
		args := string(event.Job.EncodedArgs)
		for _, want := range []string{
			`"tenant_id":"t-42"`,
			`"request_id":"req-7"`,
			`"action":"PRESIDENCY_APPROVE"`,
			`"to":"APPROVED"`,
			`"status":"APPROVED"`,
			`"actor_user_id":"user-9"`,
		} {
			if !strings.Contains(args, want) {
				t.Errorf("encoded args missing %s, got: %s", want, args)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

func TestNotifier_Notify_SystemTransitionOmitsActor(t *testing.T) {
	db := setupTestDB(t)
	client, completed := startClient(t, db)

	notice := sampleNotice()
	notice.ActorUserID = nil
	notice.Status = nil

	if err := riveradapter.NewNotifier(client).Notify(context.Background(), notice); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case event := <-completed:
		args := string(event.Job.EncodedArgs)
		for _, absent := range []string{"actor_user_id", `"status"`} {
			if strings.Contains(args, absent) {
				t.Errorf("encoded args should omit %s, got: %s", absent, args)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

// TestNotifier_TransitionInsideCallerTransaction runs a transition inside a
// transaction opened by the caller on the single-connection store. The job
// must be enqueued after the caller commits instead of waiting for the
// connection the caller holds.
func TestNotifier_TransitionInsideCallerTransaction(t *testing.T) {
	db, err := sqlite.New(t.TempDir() + "/workflow.db")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client, completed := startClient(t, db.SQL())

	bp, err := blueprint.Load(blueprint.Default)
	if err != nil {
		t.Fatalf("loading blueprint: %v", err)
	}
	svc := app.NewWorkflowService(app.Repositories{
		Definitions: sqlite.NewDefinitionRepository(db),
		States:      sqlite.NewStateRepository(db),
		Transitions: sqlite.NewTransitionRepository(db),
		Instances:   sqlite.NewInstanceRepository(db),
		Events:      sqlite.NewEventRepository(db),
		Requests:    sqlite.NewRequestRepository(db),
	}, db, fsm.New(), bp, app.WithNotifier(riveradapter.NewNotifier(client)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := svc.EnsureDefinition(ctx, "acme"); err != nil {
		t.Fatalf("EnsureDefinition: %v", err)
	}
	req, err := svc.CreateRequest(ctx, "acme", "Laptops")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	err = db.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := svc.TransitionByAction(ctx, app.TransitionRequest{TenantID: "acme", RequestID: req.ID}, "SUBMIT")
		if err != nil {
			return err
		}
		if !res.Moved {
			t.Errorf("SUBMIT not applied: %+v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("caller transaction failed: %v", err)
	}

	select {
	case event := <-completed:
		if !strings.Contains(string(event.Job.EncodedArgs), `"request_id":"`+req.ID+`"`) {
			t.Errorf("unexpected job args: %s", event.Job.EncodedArgs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}
