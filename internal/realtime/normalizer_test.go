package realtime

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawInsert(table, id string, fields map[string]any, ts time.Time) RawEvent {
	row := map[string]any{"id": id, "updated_at": ts.Format(time.RFC3339Nano)}
	for k, v := range fields {
		row[k] = v
	}
	rowJSON, _ := json.Marshal(row)
	return RawEvent{
		EventID: fmt.Sprintf("evt-%s-%d", id, ts.UnixNano()),
		Table:   table,
		Action:  ActionInsert,
		Data:    RawEventData{New: rowJSON},
	}
}

func rawDelete(table, id string, fields map[string]any, ts time.Time) RawEvent {
	row := map[string]any{"id": id, "updated_at": ts.Format(time.RFC3339Nano)}
	for k, v := range fields {
		row[k] = v
	}
	rowJSON, _ := json.Marshal(row)
	return RawEvent{
		EventID: fmt.Sprintf("evt-del-%s", id),
		Table:   table,
		Action:  ActionDelete,
		Data:    RawEventData{Old: rowJSON},
	}
}

func scopesOf(scopes ...Scope) func() []Scope {
	return func() []Scope { return scopes }
}

func TestNormalizerDedupWithinWindow(t *testing.T) {
	ts := time.Now()
	norm := NewNormalizer(2*time.Second, scopesOf(AllOf(EntityNotification)))

	raw := rawInsert(TableNotifications, "n1", map[string]any{"user_id": "u1"}, ts)

	_, ok := norm.Ingest(raw)
	require.True(t, ok)
	// The same logical change delivered twice collapses to one event.
	_, ok = norm.Ingest(raw)
	assert.False(t, ok)
}

func TestNormalizerDedupExpiresAfterWindow(t *testing.T) {
	ts := time.Now()
	norm := NewNormalizer(2*time.Second, scopesOf(AllOf(EntityNotification)))

	clock := ts
	norm.now = func() time.Time { return clock }

	raw := rawInsert(TableNotifications, "n1", nil, ts)
	_, ok := norm.Ingest(raw)
	require.True(t, ok)

	clock = clock.Add(3 * time.Second)
	_, ok = norm.Ingest(raw)
	assert.True(t, ok, "after the window the same key may pass again")
}

func TestNormalizerScopeFiltering(t *testing.T) {
	ts := time.Now()
	me := Identity{ID: "emp-1", Role: "employer"}
	scope, err := ScopeFor(EntityProposal, me)
	require.NoError(t, err)
	norm := NewNormalizer(2*time.Second, scopesOf(scope))

	mine := rawInsert(TableProposals, "p1", map[string]any{"employer_id": "emp-1"}, ts)
	theirs := rawInsert(TableProposals, "p2", map[string]any{"employer_id": "emp-2"}, ts)

	ev, ok := norm.Ingest(mine)
	require.True(t, ok)
	assert.Equal(t, "p1", ev.EntityID)
	assert.Equal(t, ChangeCreated, ev.Kind)

	_, ok = norm.Ingest(theirs)
	assert.False(t, ok, "events outside the scope are dropped")
}

func TestNormalizerUnauthorizedEventsNotRecordedAsSeen(t *testing.T) {
	ts := time.Now()
	scope, err := ScopeFor(EntityNotification, Identity{ID: "u1", Role: "freelancer"})
	require.NoError(t, err)

	// First pass: scope does not match, event dropped.
	empty := NewNormalizer(2*time.Second, scopesOf())
	raw := rawInsert(TableNotifications, "n1", map[string]any{"user_id": "u1"}, ts)
	_, ok := empty.Ingest(raw)
	require.False(t, ok)

	// The same normalizer, now scoped, must still accept the event: being
	// dropped for authorization must not have burned its dedup key.
	empty.scopes = scopesOf(scope)
	_, ok = empty.Ingest(raw)
	assert.True(t, ok)
}

func TestNormalizerDeleteUsesOldRow(t *testing.T) {
	ts := time.Now()
	norm := NewNormalizer(2*time.Second, scopesOf(AllOf(EntityNotification)))

	ev, ok := norm.Ingest(rawDelete(TableNotifications, "n9", map[string]any{"user_id": "u1"}, ts))
	require.True(t, ok)
	assert.Equal(t, ChangeDeleted, ev.Kind)
	assert.Equal(t, "n9", ev.EntityID)
	assert.Equal(t, "u1", ev.Payload.Str("user_id"))
}

func TestNormalizerDropsUnknownAndMalformed(t *testing.T) {
	ts := time.Now()
	norm := NewNormalizer(2*time.Second, scopesOf(AllOf(EntityNotification)))

	_, ok := norm.Ingest(rawInsert("audit_log", "a1", nil, ts))
	assert.False(t, ok, "unknown table")

	_, ok = norm.Ingest(RawEvent{Table: TableNotifications, Action: ActionInsert})
	assert.False(t, ok, "missing row payload")

	_, ok = norm.Ingest(RawEvent{
		Table:  TableNotifications,
		Action: "TRUNCATE",
		Data:   RawEventData{New: json.RawMessage(`{"id":"n1"}`)},
	})
	assert.False(t, ok, "unknown action")
}

func TestNormalizerServerTimestampFallback(t *testing.T) {
	norm := NewNormalizer(2*time.Second, scopesOf(AllOf(EntityNotification)))

	created := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	rowJSON, _ := json.Marshal(map[string]any{"id": "n1", "created_at": created.Format(time.RFC3339)})
	ev, ok := norm.Ingest(RawEvent{
		Table:  TableNotifications,
		Action: ActionInsert,
		Data:   RawEventData{New: rowJSON},
	})
	require.True(t, ok)
	assert.True(t, ev.ServerTS.Equal(created), "created_at backs updated_at")
}
