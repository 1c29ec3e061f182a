package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"workbridge_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int
	// failures counts errors returned before success.
	failures int
	rows     []SnapshotRow
	err      error
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, entity EntityType, identity Identity) ([]SnapshotRow, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, errors.New("snapshot query failed")
	}
	return f.rows, nil
}

func fastBackoff() config.RealtimeConfig {
	return config.RealtimeConfig{
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	}
}

func TestReconcilerFetchRetries(t *testing.T) {
	fetcher := &fakeFetcher{failures: 2, rows: []SnapshotRow{{ID: "n1", Payload: Row{"id": "n1"}}}}
	rec := NewReconciler(fetcher, NewEntityCache(10), fastBackoff())

	rows, err := rec.Fetch(context.Background(), EntityNotification, Identity{ID: "u1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, fetcher.calls)
}

func TestReconcilerFetchGivesUp(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("db down")}
	rec := NewReconciler(fetcher, NewEntityCache(10), fastBackoff())

	_, err := rec.Fetch(context.Background(), EntityNotification, Identity{ID: "u1"})
	require.Error(t, err)
	assert.Equal(t, rec.maxAttempts, fetcher.calls)
}

func TestReconcilerFetchHonorsContext(t *testing.T) {
	fetcher := &fakeFetcher{failures: 100}
	rec := NewReconciler(fetcher, NewEntityCache(10), config.RealtimeConfig{
		BackoffBase: time.Hour,
		BackoffCap:  time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Fetch(ctx, EntityNotification, Identity{ID: "u1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcilerMergeConverges(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)
	rec := NewReconciler(&fakeFetcher{}, cache, fastBackoff())

	// State before the gap: p1 pending, p2 exists, p3 exists.
	cache.Apply(eventAt(EntityProposal, "p1", ChangeCreated, base.Add(-time.Minute), Row{"status": "pending"}))
	cache.Apply(eventAt(EntityProposal, "p2", ChangeCreated, base.Add(-time.Minute), Row{}))
	cache.Apply(eventAt(EntityProposal, "p3", ChangeCreated, base.Add(-time.Minute), Row{}))

	// During the gap: p1 was accepted, p2 deleted, p4 created.
	snapshot := []SnapshotRow{
		{ID: "p1", Payload: Row{"id": "p1", "status": "accepted"}, ServerTS: base.Add(-time.Second)},
		{ID: "p3", Payload: Row{"id": "p3"}, ServerTS: base.Add(-time.Minute)},
		{ID: "p4", Payload: Row{"id": "p4"}, ServerTS: base.Add(-time.Second)},
	}
	rec.Merge(EntityProposal, snapshot, base)

	p1, ok := cache.Get(EntityProposal, "p1")
	require.True(t, ok)
	assert.Equal(t, "accepted", p1.Payload.Str("status"))

	_, ok = cache.Get(EntityProposal, "p2")
	assert.False(t, ok, "rows absent from the snapshot were deleted during the gap")

	_, ok = cache.Get(EntityProposal, "p3")
	assert.True(t, ok)
	_, ok = cache.Get(EntityProposal, "p4")
	assert.True(t, ok)
}

func TestReconcilerMergeIdempotent(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)
	rec := NewReconciler(&fakeFetcher{}, cache, fastBackoff())

	snapshot := []SnapshotRow{
		{ID: "n1", Payload: Row{"id": "n1", "is_read": false}, ServerTS: base.Add(-time.Second)},
	}

	var changes int
	cache.OnChange(EntityNotification, func(CacheEntry, ChangeKind) { changes++ })

	rec.Merge(EntityNotification, snapshot, base)
	rec.Merge(EntityNotification, snapshot, base.Add(time.Second))

	assert.Equal(t, 1, changes, "re-merging identical state is a no-op")
}

func TestReconcilerMergeDoesNotMoveCacheBackward(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)
	rec := NewReconciler(&fakeFetcher{}, cache, fastBackoff())

	// Live delivery already advanced past what the snapshot saw.
	cache.Apply(eventAt(EntityNotification, "n1", ChangeUpdated, base, Row{"is_read": true}))

	rec.Merge(EntityNotification, []SnapshotRow{
		{ID: "n1", Payload: Row{"id": "n1", "is_read": false}, ServerTS: base.Add(-time.Second)},
	}, base.Add(-500*time.Millisecond))

	entry, ok := cache.Get(EntityNotification, "n1")
	require.True(t, ok)
	assert.True(t, entry.Payload.Bool("is_read"), "older snapshot row loses under last-write-wins")
}

func TestReconcilerMergeSparesRecentAndOptimisticEntries(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)
	rec := NewReconciler(&fakeFetcher{}, cache, fastBackoff())

	// Arrived live after the snapshot was taken; its absence from the
	// snapshot means nothing.
	cache.Apply(eventAt(EntityNotification, "fresh", ChangeCreated, base.Add(time.Second), Row{}))
	cache.PutOptimistic(EntityNotification, "local", Row{"id": "local", "is_read": true})

	rec.Merge(EntityNotification, nil, base)

	_, ok := cache.Get(EntityNotification, "fresh")
	assert.True(t, ok)
	_, ok = cache.Get(EntityNotification, "local")
	assert.True(t, ok)
}
