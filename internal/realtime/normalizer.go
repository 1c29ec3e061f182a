package realtime

import (
	"encoding/json"
	"time"

	"workbridge_backend/internal/logger"
)

// Normalizer converts raw CDC payloads into typed domain events, drops
// anything the session's active scopes do not authorize, and collapses
// duplicate emissions inside the dedup window. Visibility is enforced
// here, on our side of the wire; an overly broad raw stream leaks
// nothing.
type Normalizer struct {
	window time.Duration
	scopes func() []Scope
	now    func() time.Time

	seen map[uint64]time.Time
}

func NewNormalizer(window time.Duration, scopes func() []Scope) *Normalizer {
	return &Normalizer{
		window: window,
		scopes: scopes,
		now:    time.Now,
		seen:   make(map[uint64]time.Time),
	}
}

// Ingest processes one raw event. The bool is false when the event was
// dropped: unknown table, unauthorized scope, or a duplicate.
func (n *Normalizer) Ingest(raw RawEvent) (DomainEvent, bool) {
	entity, ok := EntityForTable(raw.Table)
	if !ok {
		return DomainEvent{}, false
	}
	kind, ok := KindForAction(raw.Action)
	if !ok {
		logger.Warn("normalizer: unknown action", "action", raw.Action, "table", raw.Table)
		return DomainEvent{}, false
	}

	// Deletes describe the old row; everything else the new one.
	rowJSON := raw.Data.New
	if kind == ChangeDeleted {
		rowJSON = raw.Data.Old
	}
	if len(rowJSON) == 0 || string(rowJSON) == "null" {
		return DomainEvent{}, false
	}

	var row Row
	if err := json.Unmarshal(rowJSON, &row); err != nil {
		logger.Warn("normalizer: undecodable row", "table", raw.Table, "error", err)
		return DomainEvent{}, false
	}

	entityID := row.Str("id")
	if entityID == "" {
		return DomainEvent{}, false
	}

	serverTS, ok := row.Time("updated_at")
	if !ok {
		serverTS, ok = row.Time("created_at")
	}
	if !ok {
		serverTS = n.now()
	}

	ev := DomainEvent{
		EntityType: entity,
		EntityID:   entityID,
		Kind:       kind,
		Payload:    row,
		ServerTS:   serverTS,
		DedupeKey:  DedupeKeyFor(entity, entityID, kind, serverTS),
	}

	// Scope check first: unauthorized events are dropped silently and
	// never recorded, cached, or counted as seen.
	if !n.anyScopeMatches(ev) {
		return DomainEvent{}, false
	}

	now := n.now()
	if emittedAt, dup := n.seen[ev.DedupeKey]; dup && now.Sub(emittedAt) < n.window {
		return DomainEvent{}, false
	}
	n.seen[ev.DedupeKey] = now
	n.sweep(now)

	return ev, true
}

func (n *Normalizer) anyScopeMatches(ev DomainEvent) bool {
	for _, scope := range n.scopes() {
		if scope.Matches(ev) {
			return true
		}
	}
	return false
}

func (n *Normalizer) sweep(now time.Time) {
	if len(n.seen) < 1024 {
		return
	}
	for key, emittedAt := range n.seen {
		if now.Sub(emittedAt) >= n.window {
			delete(n.seen, key)
		}
	}
}
