package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

// statusCheck describes one write-then-verify comparison.
type statusCheck struct {
	entity   string
	id       string
	field    string
	expected string
	read     func(ctx context.Context) (string, error)
	matches  func(observed string) bool
}

// verify waits for the settle delay, re-reads the entity and compares the
// field. A mismatch is an *domain.UnconfirmedWriteError; a failed read is
// returned as-is because nothing was observed.
func (l *Lifecycle) verify(ctx context.Context, check statusCheck) error {
	if err := l.sleep(ctx, l.settleDelay); err != nil {
		return fmt.Errorf("wait before verifying %s %s: %w", check.entity, check.id, err)
	}

	observed, err := check.read(ctx)
	if err != nil {
		return fmt.Errorf("verify %s %s: %w", check.entity, check.id, err)
	}
	if !check.matches(observed) {
		return &domain.UnconfirmedWriteError{
			Entity:   check.entity,
			ID:       check.id,
			Field:    check.field,
			Expected: check.expected,
			Observed: observed,
		}
	}

	l.logger.Debug("write verified",
		"entity", check.entity,
		"id", check.id,
		"field", check.field,
		"value", observed,
	)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
