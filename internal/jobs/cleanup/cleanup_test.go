package cleanup

import (
	"context"
	"testing"
	"time"
)

type pendingRow struct {
	PurchasedAt time.Time
	IsCompleted bool
	Deleted     bool
}

type fakePurger struct {
	rows []pendingRow
}

func (f *fakePurger) DeletePendingOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	for i := range f.rows {
		row := &f.rows[i]
		if row.Deleted || row.IsCompleted {
			continue
		}
		if row.PurchasedAt.Before(cutoff) {
			row.Deleted = true
			affected++
		}
	}
	return affected, nil
}

func TestRunPurgesOnlyStalePending(t *testing.T) {
	now := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

	purger := &fakePurger{rows: []pendingRow{
		{PurchasedAt: now.Add(-31 * 24 * time.Hour)},
		{PurchasedAt: now.Add(-29 * 24 * time.Hour)},
		{PurchasedAt: now.Add(-100 * 24 * time.Hour), IsCompleted: true},
	}}

	job := New(purger, 30*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if !purger.rows[0].Deleted {
		t.Fatalf("stale pending purchase must be purged")
	}
	if purger.rows[1].Deleted {
		t.Fatalf("fresh pending purchase must survive")
	}
	if purger.rows[2].Deleted {
		t.Fatalf("completed purchase must never be purged")
	}
}

func TestRunWithoutStoreIsNoop(t *testing.T) {
	job := New(nil, time.Hour, nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
}
