/**
 * @description
 * Append-only audit journal of lifecycle outcomes. Rows are written once and
 * never read back as account state; the remote services stay the only
 * source of truth.
 */
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

const createOutcomesTable = `
	CREATE TABLE IF NOT EXISTS lifecycle_outcomes (
		id               UUID PRIMARY KEY,
		operation        TEXT        NOT NULL,
		uid              TEXT        NOT NULL,
		target           TEXT,
		kind             TEXT        NOT NULL,
		message          TEXT        NOT NULL,
		error            TEXT,
		effective_status TEXT,
		subscription_id  TEXT,
		view_stale       BOOLEAN     NOT NULL DEFAULT FALSE,
		started_at       TIMESTAMPTZ NOT NULL,
		finished_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS lifecycle_outcomes_uid_idx ON lifecycle_outcomes (uid, finished_at DESC);
`

const insertOutcome = `
	INSERT INTO lifecycle_outcomes (
		id, operation, uid, target, kind, message, error,
		effective_status, subscription_id, view_stale, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING
`

// execer is the subset of *pgxpool.Pool the journal uses.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Journal writes lifecycle outcomes to Postgres.
type Journal struct {
	db execer
}

// NewJournal creates a journal on top of a pgx pool.
func NewJournal(db *pgxpool.Pool) *Journal {
	return &Journal{db: db}
}

// EnsureSchema creates the outcomes table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, createOutcomesTable); err != nil {
		return fmt.Errorf("create lifecycle_outcomes: %w", err)
	}
	return nil
}

// Record inserts the outcome. Re-recording the same outcome id is a no-op.
func (j *Journal) Record(ctx context.Context, outcome *domain.Outcome) error {
	var effectiveStatus, subscriptionID *string
	if outcome.Account != nil {
		effectiveStatus = nullable(string(outcome.Account.EffectiveStatus))
		if outcome.Account.Subscription != nil {
			subscriptionID = nullable(outcome.Account.Subscription.ID)
		}
	}

	_, err := j.db.Exec(ctx, insertOutcome,
		outcome.ID,
		string(outcome.Operation),
		outcome.UID,
		nullable(outcome.Target),
		string(outcome.Kind),
		outcome.Message,
		nullable(outcome.ErrorText),
		effectiveStatus,
		subscriptionID,
		outcome.ViewStale,
		outcome.StartedAt,
		outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle outcome %s: %w", outcome.ID, err)
	}
	return nil
}

// NopJournal is used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *domain.Outcome) error { return nil }

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
