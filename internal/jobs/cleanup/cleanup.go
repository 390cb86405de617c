package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultPendingRetention = 30 * 24 * time.Hour

type pendingPurger interface {
	DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job purges pending purchases that were started but never verified.
// Completed purchases are never touched: the ledger of owned goods is
// append-only, abandoned checkouts are not.
type Job struct {
	purchases pendingPurger
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(purchases pendingPurger, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = defaultPendingRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purchases: purchases,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.purchases == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.purchases.DeletePendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge stale pending purchases: %w", err)
	}
	if rows > 0 {
		j.logger.Info("purged stale pending purchases", zap.Int64("deleted", rows))
	}

	return nil
}
