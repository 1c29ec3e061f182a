package realtime

import (
	"time"
)

// Toast is a transient user-visible popup.
type Toast struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
}

// CacheChange mirrors a cache mutation to the presentation layer.
type CacheChange struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Kind       ChangeKind `json:"kind"`
	Payload    Row        `json:"payload,omitempty"`
	ServerTS   time.Time  `json:"server_ts"`
}

// Sink is the only surface the presentation layer depends on. The
// websocket client implements it; nothing UI-facing ever touches the
// transport.
type Sink interface {
	SendToast(toast Toast)
	SendCacheChange(change CacheChange)
	SendUnreadCount(entity EntityType, count int)
	SendConnectivity(connected bool)
	// CloseSession ends the connection; only ban/invalidation uses it.
	CloseSession(reason string)
}

// Fanout turns normalized events into user-visible side effects: one
// toast and one badge update per real-world change. It keeps its own
// dedup set, separate from the normalizer's, because an event may
// legitimately update several cache entries yet must present only once.
type Fanout struct {
	sink     Sink
	cache    *EntityCache
	identity func() Identity
	window   time.Duration
	now      func() time.Time

	seen map[uint64]time.Time
}

func NewFanout(sink Sink, cache *EntityCache, identity func() Identity, window time.Duration) *Fanout {
	return &Fanout{
		sink:     sink,
		cache:    cache,
		identity: identity,
		window:   window,
		now:      time.Now,
		seen:     make(map[uint64]time.Time),
	}
}

// Present surfaces ev to the user at most once per dedup window.
func (f *Fanout) Present(ev DomainEvent) {
	now := f.now()
	if presentedAt, dup := f.seen[ev.DedupeKey]; dup && now.Sub(presentedAt) < f.window {
		return
	}
	f.seen[ev.DedupeKey] = now
	f.sweep(now)

	if ev.Kind == ChangeCreated && f.addressedToMe(ev) {
		f.sink.SendToast(f.toastFor(ev))
	}

	// The badge is derived from the cache's unread count, never from a
	// counter of our own, so the two cannot drift.
	if ev.EntityType == EntityNotification {
		f.sink.SendUnreadCount(EntityNotification, f.cache.UnreadCount(EntityNotification))
	}
}

// addressedToMe limits toasts to events explicitly directed at the
// current identity; watching a broad admin feed does not spam popups.
func (f *Fanout) addressedToMe(ev DomainEvent) bool {
	me := f.identity()
	switch ev.EntityType {
	case EntityNotification:
		return ev.Payload.Str("user_id") == me.ID
	case EntityMessage:
		return ev.Payload.Str("recipient_id") == me.ID
	}
	return false
}

func (f *Fanout) toastFor(ev DomainEvent) Toast {
	toast := Toast{
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
	}
	switch ev.EntityType {
	case EntityNotification:
		toast.Title = ev.Payload.Str("title")
		toast.Body = ev.Payload.Str("message")
	case EntityMessage:
		toast.Title = "New message"
		toast.Body = ev.Payload.Str("body")
	}
	return toast
}

func (f *Fanout) sweep(now time.Time) {
	if len(f.seen) < 1024 {
		return
	}
	for key, presentedAt := range f.seen {
		if now.Sub(presentedAt) >= f.window {
			delete(f.seen, key)
		}
	}
}
