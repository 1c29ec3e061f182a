package realtime

import (
	"context"
	"math/rand"
	"time"

	"workbridge_backend/internal/config"
)

// SnapshotRow is one row of a point-in-time backfill query.
type SnapshotRow struct {
	ID       string
	Payload  Row
	ServerTS time.Time
}

// SnapshotFetcher runs the scoped snapshot query backing reconciliation.
// The scope must be identical to the one gating the live feed.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, entity EntityType, identity Identity) ([]SnapshotRow, error)
}

// Reconciler converges the cache with the backing store after a gap:
// initial subscription, reconnect, or explicit refresh. Snapshot rows go
// through the cache's last-write-wins rule, so running concurrently with
// live delivery is safe and merges never move the cache backward.
type Reconciler struct {
	fetcher     SnapshotFetcher
	cache       *EntityCache
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
}

func NewReconciler(fetcher SnapshotFetcher, cache *EntityCache, cfg config.RealtimeConfig) *Reconciler {
	return &Reconciler{
		fetcher:     fetcher,
		cache:       cache,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		maxAttempts: 5,
	}
}

// Fetch runs the snapshot query with backoff. Safe to call off the
// session loop; only Merge touches the cache.
func (r *Reconciler) Fetch(ctx context.Context, entity EntityType, identity Identity) ([]SnapshotRow, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, r.backoffFor(attempt)) {
				return nil, ctx.Err()
			}
		}
		rows, err := r.fetcher.FetchSnapshot(ctx, entity, identity)
		if err == nil {
			return rows, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Merge applies snapshot rows on the session loop. startedAt is when the
// snapshot was taken: cached rows older than it that the snapshot no
// longer contains were deleted during the gap and are dropped. Rows the
// snapshot returned but live delivery already superseded lose under
// last-write-wins, which is exactly the idempotence reconciliation needs.
func (r *Reconciler) Merge(entity EntityType, rows []SnapshotRow, startedAt time.Time) {
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.ID] = true
		r.cache.Merge(entity, row.ID, row.Payload, row.ServerTS)
	}

	for _, entry := range r.cache.List(entity, nil) {
		if present[entry.EntityID] || entry.Optimistic {
			continue
		}
		if entry.ServerTS.Before(startedAt) {
			r.cache.Remove(entity, entry.EntityID, startedAt)
		}
	}
}

func (r *Reconciler) backoffFor(attempt int) time.Duration {
	max := r.backoffBase << uint(attempt)
	if max > r.backoffCap || max <= 0 {
		max = r.backoffCap
	}
	return time.Duration(rand.Int63n(int64(max))) + time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
