package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

type execStub struct {
	sql  []string
	args [][]any
	err  error
}

func (s *execStub) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	s.sql = append(s.sql, sql)
	s.args = append(s.args, arguments)
	return pgconn.NewCommandTag("INSERT 0 1"), s.err
}

func TestJournalRecordWritesOutcomeColumns(t *testing.T) {
	db := &execStub{}
	journal := &Journal{db: db}

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	outcome := domain.NewOutcome(domain.OpSetAccountState, "u1", started)
	outcome.Target = "suspended"
	outcome.Resolve(&domain.UnconfirmedWriteError{Entity: "subscription", ID: "s1", Field: "status", Expected: "cancelled", Observed: "active"})
	outcome.Message = "not persisted"
	outcome.FinishedAt = started.Add(time.Second)
	outcome.Account = &domain.Account{
		UID:             "u1",
		EffectiveStatus: domain.StatusActive,
		Subscription:    &domain.SubscriptionRecord{ID: "s1"},
	}

	if err := journal.Record(context.Background(), outcome); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "INSERT INTO lifecycle_outcomes") {
		t.Fatalf("expected one insert, got %v", db.sql)
	}

	args := db.args[0]
	if len(args) != 12 {
		t.Fatalf("expected 12 args, got %d", len(args))
	}
	if args[4] != "unconfirmed" {
		t.Fatalf("expected kind unconfirmed, got %v", args[4])
	}
	if target, ok := args[3].(*string); !ok || target == nil || *target != "suspended" {
		t.Fatalf("expected target suspended, got %v", args[3])
	}
	if status, ok := args[7].(*string); !ok || status == nil || *status != "active" {
		t.Fatalf("expected effective status active, got %v", args[7])
	}
	if sub, ok := args[8].(*string); !ok || sub == nil || *sub != "s1" {
		t.Fatalf("expected subscription id s1, got %v", args[8])
	}
}

func TestJournalRecordNullsMissingAccount(t *testing.T) {
	db := &execStub{}
	journal := &Journal{db: db}

	outcome := domain.NewOutcome(domain.OpApprove, "u1", time.Now())
	outcome.Resolve(nil)

	if err := journal.Record(context.Background(), outcome); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	args := db.args[0]
	if args[3].(*string) != nil || args[6].(*string) != nil || args[7].(*string) != nil {
		t.Fatalf("expected nil target, error and status, got %v %v %v", args[3], args[6], args[7])
	}
}

func TestJournalRecordWrapsDatabaseError(t *testing.T) {
	journal := &Journal{db: &execStub{err: errors.New("connection reset")}}

	err := journal.Record(context.Background(), domain.NewOutcome(domain.OpReject, "u1", time.Now()))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected wrapped database error, got %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &execStub{}
	if err := (&Journal{db: db}).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	if !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS lifecycle_outcomes") {
		t.Fatalf("unexpected schema sql %q", db.sql[0])
	}
}
