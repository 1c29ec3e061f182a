package realtime

import (
	"time"
)

// SubState tracks a subscription through its lifecycle:
// Requested -> Active -> [Disconnected -> Reconciling -> Active] ->
// Released -> TornDown. There is no error state; failures fall back to
// Disconnected and retry.
type SubState int

const (
	SubRequested SubState = iota
	SubActive
	SubDisconnected
	SubReconciling
	SubReleased
	SubTornDown
)

// Subscription is one logical feed: an entity type plus the scope an
// identity is entitled to. Many consumers share it via refcounting.
type Subscription struct {
	Entity EntityType
	Scope  Scope

	refCount int
	state    SubState
	// generation is bumped on teardown so in-flight backfill results for
	// a dead subscription can be recognized and discarded.
	generation uint64

	graceCancel func()
}

func (s *Subscription) State() SubState    { return s.state }
func (s *Subscription) RefCount() int      { return s.refCount }
func (s *Subscription) Generation() uint64 { return s.generation }

// Handle is one consumer's claim on a subscription. Releasing it twice is
// a no-op.
type Handle struct {
	sub      *Subscription
	released bool
}

func (h *Handle) Subscription() *Subscription { return h.sub }

// scheduleFunc defers fn by d on the session loop and returns a cancel.
type scheduleFunc func(d time.Duration, fn func()) (cancel func())

// Mux maps logical subscriptions onto the shared transport with reference
// counting: three widgets asking for "my unread notifications" share one
// feed. Release at refcount zero tears the feed down only after a grace
// period, absorbing subscribe/unsubscribe thrash during navigation.
//
// All methods must run on the session loop.
type Mux struct {
	grace    time.Duration
	schedule scheduleFunc

	// onActivate opens the underlying feed (transport registration +
	// initial backfill); onTeardown closes it.
	onActivate func(*Subscription)
	onTeardown func(*Subscription)

	subs map[string]*Subscription
}

func NewMux(grace time.Duration, schedule scheduleFunc, onActivate, onTeardown func(*Subscription)) *Mux {
	return &Mux{
		grace:      grace,
		schedule:   schedule,
		onActivate: onActivate,
		onTeardown: onTeardown,
		subs:       make(map[string]*Subscription),
	}
}

func subKey(entity EntityType, scope Scope) string {
	return string(entity) + "|" + scope.Key()
}

// Acquire returns a handle on the logical feed for (entity, scope),
// creating and activating it on first use.
func (m *Mux) Acquire(entity EntityType, scope Scope) *Handle {
	key := subKey(entity, scope)

	if sub, ok := m.subs[key]; ok {
		if sub.graceCancel != nil {
			// Re-acquired within the grace period: keep the feed alive.
			sub.graceCancel()
			sub.graceCancel = nil
		}
		sub.refCount++
		if sub.state == SubReleased {
			sub.state = SubActive
		}
		return &Handle{sub: sub}
	}

	sub := &Subscription{
		Entity:   entity,
		Scope:    scope,
		refCount: 1,
		state:    SubRequested,
	}
	m.subs[key] = sub
	m.onActivate(sub)
	if sub.state == SubRequested {
		sub.state = SubActive
	}
	return &Handle{sub: sub}
}

// Release drops one claim. At refcount zero the subscription is torn down
// after the grace period, unless re-acquired first.
func (m *Mux) Release(h *Handle) {
	if h == nil || h.released || h.sub == nil {
		return
	}
	h.released = true

	sub := h.sub
	if sub.refCount > 0 {
		sub.refCount--
	}
	if sub.refCount > 0 {
		return
	}

	sub.state = SubReleased
	sub.graceCancel = m.schedule(m.grace, func() {
		sub.graceCancel = nil
		if sub.refCount == 0 && sub.state == SubReleased {
			m.teardown(sub)
		}
	})
}

func (m *Mux) teardown(sub *Subscription) {
	sub.state = SubTornDown
	sub.generation++
	delete(m.subs, subKey(sub.Entity, sub.Scope))
	m.onTeardown(sub)
}

// ForceReleaseAll tears every subscription down immediately, skipping the
// grace period. Used when the identity changes or the session dies; the
// caller re-acquires against the new identity's scopes as needed.
func (m *Mux) ForceReleaseAll() []EntityType {
	entities := make([]EntityType, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.graceCancel != nil {
			sub.graceCancel()
			sub.graceCancel = nil
		}
		entities = append(entities, sub.Entity)
		m.teardown(sub)
	}
	return entities
}

// Active returns the live subscriptions (anything not yet torn down).
func (m *Mux) Active() []*Subscription {
	out := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub)
	}
	return out
}

// ActiveScopes returns the scopes the normalizer filters against.
func (m *Mux) ActiveScopes() []Scope {
	scopes := make([]Scope, 0, len(m.subs))
	for _, sub := range m.subs {
		scopes = append(scopes, sub.Scope)
	}
	return scopes
}

// Find returns the live subscription for (entity, scope), if any.
func (m *Mux) Find(entity EntityType, scope Scope) (*Subscription, bool) {
	sub, ok := m.subs[subKey(entity, scope)]
	return sub, ok
}
