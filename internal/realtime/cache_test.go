package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(entity EntityType, id string, kind ChangeKind, ts time.Time, payload Row) DomainEvent {
	if payload == nil {
		payload = Row{}
	}
	payload["id"] = id
	return DomainEvent{
		EntityType: entity,
		EntityID:   id,
		Kind:       kind,
		Payload:    payload,
		ServerTS:   ts,
		DedupeKey:  DedupeKeyFor(entity, id, kind, ts),
	}
}

func TestCacheLastWriteWins(t *testing.T) {
	base := time.Now()
	older := eventAt(EntityJob, "j1", ChangeUpdated, base, Row{"title": "old"})
	newer := eventAt(EntityJob, "j1", ChangeUpdated, base.Add(time.Second), Row{"title": "new"})

	// Regardless of arrival order, the newer payload must stick.
	for name, order := range map[string][]DomainEvent{
		"in order":     {older, newer},
		"out of order": {newer, older},
	} {
		cache := NewEntityCache(10)
		for _, ev := range order {
			cache.Apply(ev)
		}
		entry, ok := cache.Get(EntityJob, "j1")
		require.True(t, ok, name)
		assert.Equal(t, "new", entry.Payload.Str("title"), name)
	}
}

func TestCacheOrderingPermutationsConverge(t *testing.T) {
	base := time.Now()
	events := []DomainEvent{
		eventAt(EntityProposal, "p1", ChangeCreated, base, Row{"status": "pending"}),
		eventAt(EntityProposal, "p1", ChangeUpdated, base.Add(time.Second), Row{"status": "accepted"}),
		eventAt(EntityProposal, "p2", ChangeCreated, base.Add(2*time.Second), Row{"status": "pending"}),
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		cache := NewEntityCache(10)
		for _, i := range perm {
			cache.Apply(events[i])
		}
		p1, ok := cache.Get(EntityProposal, "p1")
		require.True(t, ok)
		assert.Equal(t, "accepted", p1.Payload.Str("status"), "perm %v", perm)
		_, ok = cache.Get(EntityProposal, "p2")
		assert.True(t, ok, "perm %v", perm)
	}
}

func TestCacheDeleteTombstone(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)

	cache.Apply(eventAt(EntityNotification, "n1", ChangeCreated, base, Row{}))
	cache.Apply(eventAt(EntityNotification, "n1", ChangeDeleted, base.Add(2*time.Second), Row{}))

	// An update from between creation and deletion must not resurrect it.
	changed := cache.Apply(eventAt(EntityNotification, "n1", ChangeUpdated, base.Add(time.Second), Row{}))
	assert.False(t, changed)
	_, ok := cache.Get(EntityNotification, "n1")
	assert.False(t, ok)
}

func TestCacheStaleDeleteIgnored(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)

	cache.Apply(eventAt(EntityJob, "j1", ChangeUpdated, base.Add(5*time.Second), Row{"title": "kept"}))

	// A delete that predates the cached state arrives late.
	changed := cache.Apply(eventAt(EntityJob, "j1", ChangeDeleted, base, Row{}))
	assert.False(t, changed)
	entry, ok := cache.Get(EntityJob, "j1")
	require.True(t, ok)
	assert.Equal(t, "kept", entry.Payload.Str("title"))
}

func TestCacheLRUEviction(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(3)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("n%d", i)
		cache.Apply(eventAt(EntityNotification, id, ChangeCreated, base.Add(time.Duration(i)*time.Second), Row{}))
	}

	assert.Equal(t, 3, cache.Len(EntityNotification))
	_, ok := cache.Get(EntityNotification, "n0")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = cache.Get(EntityNotification, "n4")
	assert.True(t, ok)
}

func TestCacheEvictionIsSilent(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(2)

	var deletions int
	cache.OnChange(EntityNotification, func(entry CacheEntry, kind ChangeKind) {
		if kind == ChangeDeleted {
			deletions++
		}
	})

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("n%d", i)
		cache.Apply(eventAt(EntityNotification, id, ChangeCreated, base.Add(time.Duration(i)*time.Second), Row{}))
	}
	assert.Zero(t, deletions, "capacity evictions must not look like domain deletes")
}

func TestCacheOptimisticReplacedByAuthoritative(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)

	cache.Apply(eventAt(EntityNotification, "n1", ChangeCreated, base, Row{"is_read": false}))
	cache.PutOptimistic(EntityNotification, "n1", Row{"id": "n1", "is_read": true})

	entry, ok := cache.Get(EntityNotification, "n1")
	require.True(t, ok)
	assert.True(t, entry.Optimistic)
	assert.True(t, entry.Payload.Bool("is_read"))

	// The authoritative confirmation carries a server timestamp far behind
	// the optimistic local stamp; it must still win.
	cache.Apply(eventAt(EntityNotification, "n1", ChangeUpdated, base.Add(time.Millisecond), Row{"is_read": true, "read_at": "x"}))
	entry, ok = cache.Get(EntityNotification, "n1")
	require.True(t, ok)
	assert.False(t, entry.Optimistic)
	assert.Equal(t, "x", entry.Payload.Str("read_at"))
}

func TestCacheUnreadCount(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)

	cache.Apply(eventAt(EntityNotification, "n1", ChangeCreated, base, Row{"is_read": false}))
	cache.Apply(eventAt(EntityNotification, "n2", ChangeCreated, base, Row{"is_read": false}))
	cache.Apply(eventAt(EntityNotification, "n3", ChangeCreated, base, Row{"is_read": true}))
	assert.Equal(t, 2, cache.UnreadCount(EntityNotification))

	cache.Apply(eventAt(EntityNotification, "n1", ChangeUpdated, base.Add(time.Second), Row{"is_read": true}))
	assert.Equal(t, 1, cache.UnreadCount(EntityNotification))
}

func TestCacheChangeListeners(t *testing.T) {
	base := time.Now()
	cache := NewEntityCache(10)

	var kinds []ChangeKind
	cache.OnChange(EntityJob, func(entry CacheEntry, kind ChangeKind) {
		kinds = append(kinds, kind)
	})

	cache.Apply(eventAt(EntityJob, "j1", ChangeCreated, base, Row{}))
	cache.Apply(eventAt(EntityJob, "j1", ChangeUpdated, base.Add(time.Second), Row{}))
	// Stale event: no notification.
	cache.Apply(eventAt(EntityJob, "j1", ChangeUpdated, base, Row{}))
	cache.Apply(eventAt(EntityJob, "j1", ChangeDeleted, base.Add(2*time.Second), Row{}))

	assert.Equal(t, []ChangeKind{ChangeCreated, ChangeUpdated, ChangeDeleted}, kinds)
}
