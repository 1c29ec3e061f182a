package realtime

import (
	"container/list"
	"time"
)

// CacheEntry is the latest known state of one entity.
type CacheEntry struct {
	EntityType EntityType
	EntityID   string
	Payload    Row
	ServerTS   time.Time
	// Optimistic marks a locally predicted write awaiting the
	// authoritative event; any authoritative data replaces it.
	Optimistic bool
}

// ChangeListener observes cache mutations.
type ChangeListener func(entry CacheEntry, kind ChangeKind)

// EntityCache is the session-private read model downstream UI consumes.
// Writes happen only on the session loop (normalizer and reconciler), so
// no locking is needed; reads from other goroutines go through the
// session's synchronous accessors.
//
// Invariants: an entry is never overwritten by data with an older
// ServerTS, and a deleted entity cannot be resurrected by a stale event
// (tombstones keep the deletion timestamp).
type EntityCache struct {
	cap       int
	types     map[EntityType]*typeCache
	listeners map[EntityType][]ChangeListener
}

type typeCache struct {
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	tombstones map[string]time.Time
}

func NewEntityCache(cap int) *EntityCache {
	return &EntityCache{
		cap:       cap,
		types:     make(map[EntityType]*typeCache),
		listeners: make(map[EntityType][]ChangeListener),
	}
}

func (c *EntityCache) typeCacheFor(entity EntityType) *typeCache {
	tc, ok := c.types[entity]
	if !ok {
		tc = &typeCache{
			entries:    make(map[string]*list.Element),
			lru:        list.New(),
			tombstones: make(map[string]time.Time),
		}
		c.types[entity] = tc
	}
	return tc
}

// OnChange registers a listener for one entity type. Listeners run
// synchronously on the session loop.
func (c *EntityCache) OnChange(entity EntityType, fn ChangeListener) {
	c.listeners[entity] = append(c.listeners[entity], fn)
}

func (c *EntityCache) notify(entry CacheEntry, kind ChangeKind) {
	for _, fn := range c.listeners[entry.EntityType] {
		fn(entry, kind)
	}
}

// Get returns the cached entry, marking it recently used.
func (c *EntityCache) Get(entity EntityType, entityID string) (CacheEntry, bool) {
	tc := c.typeCacheFor(entity)
	el, ok := tc.entries[entityID]
	if !ok {
		return CacheEntry{}, false
	}
	tc.lru.MoveToFront(el)
	return *el.Value.(*CacheEntry), true
}

// Apply merges a normalized live event. Returns true when the cache
// changed, false when the event was stale and rejected.
func (c *EntityCache) Apply(ev DomainEvent) bool {
	if ev.Kind == ChangeDeleted {
		return c.remove(ev.EntityType, ev.EntityID, ev.ServerTS)
	}
	return c.put(ev.EntityType, ev.EntityID, ev.Payload, ev.ServerTS, ev.Kind)
}

// Merge applies an authoritative snapshot row from reconciliation through
// the same write rule as live events, so backfill can never move the
// cache backward in time.
func (c *EntityCache) Merge(entity EntityType, entityID string, payload Row, serverTS time.Time) bool {
	return c.put(entity, entityID, payload, serverTS, ChangeUpdated)
}

// Remove deletes an entry with delete-time ordering. Used by Apply for
// deleted events and by reconciliation for rows missing from a snapshot.
func (c *EntityCache) Remove(entity EntityType, entityID string, deletedTS time.Time) bool {
	return c.remove(entity, entityID, deletedTS)
}

// PutOptimistic installs a locally predicted write stamped with local
// time. Any authoritative data (live event or snapshot row) replaces it
// regardless of timestamps, so a fast local clock cannot pin stale state.
func (c *EntityCache) PutOptimistic(entity EntityType, entityID string, payload Row) {
	tc := c.typeCacheFor(entity)

	if el, ok := tc.entries[entityID]; ok {
		entry := el.Value.(*CacheEntry)
		entry.Payload = payload
		entry.ServerTS = time.Now()
		entry.Optimistic = true
		tc.lru.MoveToFront(el)
		c.notify(*entry, ChangeUpdated)
		return
	}
	if _, deleted := tc.tombstones[entityID]; deleted {
		return
	}
	entry := &CacheEntry{
		EntityType: entity,
		EntityID:   entityID,
		Payload:    payload,
		ServerTS:   time.Now(),
		Optimistic: true,
	}
	tc.entries[entityID] = tc.lru.PushFront(entry)
	c.notify(*entry, ChangeUpdated)
	c.evict(tc)
}

func (c *EntityCache) put(entity EntityType, entityID string, payload Row, serverTS time.Time, kind ChangeKind) bool {
	tc := c.typeCacheFor(entity)

	// A tombstone newer than this data means the row was deleted after
	// the state this event describes; never resurrect it.
	if ts, ok := tc.tombstones[entityID]; ok && !serverTS.After(ts) {
		return false
	}

	if el, ok := tc.entries[entityID]; ok {
		entry := el.Value.(*CacheEntry)
		if !entry.Optimistic && !serverTS.After(entry.ServerTS) {
			// Last-write-wins by server time, not by arrival order. Equal
			// timestamps describe the same write; re-applying it (snapshot
			// after live, or vice versa) is a no-op.
			return false
		}
		entry.Payload = payload
		entry.ServerTS = serverTS
		entry.Optimistic = false
		tc.lru.MoveToFront(el)
		c.notify(*entry, kind)
		return true
	}

	entry := &CacheEntry{
		EntityType: entity,
		EntityID:   entityID,
		Payload:    payload,
		ServerTS:   serverTS,
	}
	tc.entries[entityID] = tc.lru.PushFront(entry)
	c.notify(*entry, kind)
	c.evict(tc)
	return true
}

func (c *EntityCache) remove(entity EntityType, entityID string, deletedTS time.Time) bool {
	tc := c.typeCacheFor(entity)

	if el, ok := tc.entries[entityID]; ok {
		entry := el.Value.(*CacheEntry)
		if !entry.Optimistic && entry.ServerTS.After(deletedTS) {
			// Stale delete arriving after a newer update: ignore it so
			// the entry is neither resurrected nor killed.
			return false
		}
		tc.lru.Remove(el)
		delete(tc.entries, entityID)
		tc.tombstones[entityID] = deletedTS
		c.pruneTombstones(tc)
		c.notify(CacheEntry{EntityType: entity, EntityID: entityID, ServerTS: deletedTS}, ChangeDeleted)
		return true
	}

	// Nothing cached, but remember the deletion so an out-of-order
	// earlier event cannot bring the row back.
	tc.tombstones[entityID] = deletedTS
	c.pruneTombstones(tc)
	return false
}

// evict trims least-recently-used entries past the per-type cap. Evictions
// are capacity management, not domain changes, so listeners stay silent.
func (c *EntityCache) evict(tc *typeCache) {
	for c.cap > 0 && tc.lru.Len() > c.cap {
		el := tc.lru.Back()
		if el == nil {
			return
		}
		entry := el.Value.(*CacheEntry)
		tc.lru.Remove(el)
		delete(tc.entries, entry.EntityID)
	}
}

func (c *EntityCache) pruneTombstones(tc *typeCache) {
	if c.cap <= 0 || len(tc.tombstones) <= c.cap {
		return
	}
	var oldestID string
	var oldestTS time.Time
	for id, ts := range tc.tombstones {
		if oldestID == "" || ts.Before(oldestTS) {
			oldestID, oldestTS = id, ts
		}
	}
	delete(tc.tombstones, oldestID)
}

// List returns entries of one type, most recently used first. A nil
// filter returns everything.
func (c *EntityCache) List(entity EntityType, filter func(CacheEntry) bool) []CacheEntry {
	tc := c.typeCacheFor(entity)
	out := make([]CacheEntry, 0, tc.lru.Len())
	for el := tc.lru.Front(); el != nil; el = el.Next() {
		entry := *el.Value.(*CacheEntry)
		if filter == nil || filter(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// Len reports how many entries of one type are cached.
func (c *EntityCache) Len(entity EntityType) int {
	return c.typeCacheFor(entity).lru.Len()
}

// UnreadCount counts cached rows with is_read=false. The badge reads this
// instead of keeping its own counter, so the two cannot drift.
func (c *EntityCache) UnreadCount(entity EntityType) int {
	count := 0
	tc := c.typeCacheFor(entity)
	for el := tc.lru.Front(); el != nil; el = el.Next() {
		if !el.Value.(*CacheEntry).Payload.Bool("is_read") {
			count++
		}
	}
	return count
}

// Clear wipes everything; used on sign-out and ban.
func (c *EntityCache) Clear() {
	c.types = make(map[EntityType]*typeCache)
}
