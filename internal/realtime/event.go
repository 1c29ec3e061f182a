package realtime

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

// EntityType names a kind of row the broker propagates.
type EntityType string

const (
	EntityNotification EntityType = "notification"
	EntityMessage      EntityType = "message"
	EntityProposal     EntityType = "proposal"
	EntityJob          EntityType = "job"
	EntityPayout       EntityType = "payout"
)

// ChangeKind classifies what happened to the row.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Wire actions emitted by the notify_event() trigger.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// RawEvent mirrors the JSON payload the notify_event() trigger publishes
// on the events channel: {event_id, table, action, data:{old,new}}.
type RawEvent struct {
	EventID string       `json:"event_id"`
	Table   string       `json:"table"`
	Action  string       `json:"action"`
	Data    RawEventData `json:"data"`
}

type RawEventData struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// Row is a decoded database row as delivered by row_to_json, keyed by
// column name.
type Row map[string]any

// Str returns the string value for key, or "".
func (r Row) Str(key string) string {
	v, _ := r[key].(string)
	return v
}

// Bool returns the bool value for key, or false.
func (r Row) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// Time parses the value for key as an RFC3339 timestamp.
func (r Row) Time(key string) (time.Time, bool) {
	s, ok := r[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DomainEvent is a normalized, immutable change event.
type DomainEvent struct {
	EntityType EntityType
	EntityID   string
	Kind       ChangeKind
	Payload    Row
	ServerTS   time.Time
	DedupeKey  uint64
}

// DedupeKeyFor builds the stable key duplicates collapse under: the same
// logical change always hashes identically no matter which subscription
// or replay delivered it.
func DedupeKeyFor(entity EntityType, entityID string, kind ChangeKind, serverTS time.Time) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", entity, entityID, kind, serverTS.UnixNano())
	return h.Sum64()
}

// Table names watched on the CDC channel.
const (
	TableUsers         = "users"
	TableNotifications = "notifications"
	TableMessages      = "messages"
	TableProposals     = "proposals"
	TableJobs          = "jobs"
	TablePayouts       = "payouts"
)

var tableToEntity = map[string]EntityType{
	TableNotifications: EntityNotification,
	TableMessages:      EntityMessage,
	TableProposals:     EntityProposal,
	TableJobs:          EntityJob,
	TablePayouts:       EntityPayout,
}

var entityToTable = map[EntityType]string{
	EntityNotification: TableNotifications,
	EntityMessage:      TableMessages,
	EntityProposal:     TableProposals,
	EntityJob:          TableJobs,
	EntityPayout:       TablePayouts,
}

// EntityForTable maps a CDC table name to its entity type.
func EntityForTable(table string) (EntityType, bool) {
	e, ok := tableToEntity[table]
	return e, ok
}

// TableForEntity maps an entity type to the table its events come from.
func TableForEntity(entity EntityType) string {
	return entityToTable[entity]
}

// KindForAction maps a trigger action to a change kind.
func KindForAction(action string) (ChangeKind, bool) {
	switch action {
	case ActionInsert:
		return ChangeCreated, true
	case ActionUpdate:
		return ChangeUpdated, true
	case ActionDelete:
		return ChangeDeleted, true
	}
	return "", false
}
