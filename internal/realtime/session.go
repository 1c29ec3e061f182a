package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"workbridge_backend/internal/config"
	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/repositories"

	"github.com/google/uuid"
)

// Close reasons passed to Sink.CloseSession.
const (
	CloseReasonBanned      = "banned"
	CloseReasonInvalidated = "session_invalidated"
)

// Session is one browser connection's private broker: its own identity,
// subscriptions, cache and side-effect state. A single goroutine (Run)
// executes every callback, so components need no internal locking; other
// goroutines interact only through posted commands.
type Session struct {
	id   string
	cfg  config.RealtimeConfig
	hub  *Hub
	src  ChangeSource
	sink Sink

	store *SessionStore
	cache *EntityCache
	mux   *Mux
	norm  *Normalizer
	rec   *Reconciler
	fan   *Fanout

	// handles tracks this connection's claims per entity type, so an
	// identity change can rebind exactly what was held.
	handles map[EntityType][]*Handle

	ctx       context.Context
	inbox     chan RawEvent
	signals   chan connSignal
	commands  chan func()
	done      chan struct{}
	closeOnce sync.Once
	gapped    atomic.Bool
}

func (s *Session) ID() string { return s.id }

// Run drives the session loop until ctx ends or the session closes. The
// hub must already be running.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	s.hub.Attach(s)
	defer s.hub.Detach(s)
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case raw := <-s.inbox:
			s.handleRaw(raw)
		case sig := <-s.signals:
			s.handleSignal(sig)
		case cmd := <-s.commands:
			cmd()
		}
	}
}

// Close ends the session; idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// --- loop plumbing ---

func (s *Session) post(fn func()) {
	select {
	case s.commands <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for it, giving callers the
// synchronous, race-free reads the cache contract promises.
func (s *Session) call(fn func()) {
	ran := make(chan struct{})
	s.post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-s.done:
	}
}

func (s *Session) markGap() { s.gapped.Store(true) }

func (s *Session) signal(sig connSignal) {
	select {
	case s.signals <- sig:
	default:
	}
}

// schedule defers fn onto the session loop; the mux uses it for grace
// period teardown so timer callbacks never race the loop.
func (s *Session) schedule(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, func() { s.post(fn) })
	return func() { timer.Stop() }
}

// --- public API (any goroutine) ---

// Subscribe acquires the caller's feed for an entity type. Repeated calls
// refcount onto the same underlying subscription.
func (s *Session) Subscribe(entity EntityType) error {
	var err error
	s.call(func() { err = s.subscribe(entity) })
	return err
}

// Unsubscribe releases one prior claim on the entity's feed.
func (s *Session) Unsubscribe(entity EntityType) {
	s.call(func() { s.unsubscribe(entity) })
}

// Refresh forces a backfill of an active feed (pull-to-refresh).
func (s *Session) Refresh(entity EntityType) {
	s.post(func() {
		scope, err := ScopeFor(entity, s.store.Current())
		if err != nil {
			return
		}
		if sub, ok := s.mux.Find(entity, scope); ok {
			s.startReconcile(sub)
		}
	})
}

// MarkNotificationRead applies the optimistic half of a mark-read
// mutation: the cache flips immediately and the authoritative UPDATE
// event reconciles it moments later.
func (s *Session) MarkNotificationRead(notificationID string) {
	s.post(func() {
		entry, ok := s.cache.Get(EntityNotification, notificationID)
		if !ok {
			return
		}
		payload := make(Row, len(entry.Payload))
		for k, v := range entry.Payload {
			payload[k] = v
		}
		payload["is_read"] = true
		s.cache.PutOptimistic(EntityNotification, notificationID, payload)
	})
}

// ListCache returns the cached entries for an entity type, newest use
// first. Synchronous and safe from any goroutine.
func (s *Session) ListCache(entity EntityType) []CacheEntry {
	var out []CacheEntry
	s.call(func() { out = s.cache.List(entity, nil) })
	return out
}

// UnreadCount returns the cache-derived unread badge value.
func (s *Session) UnreadCount(entity EntityType) int {
	var count int
	s.call(func() { count = s.cache.UnreadCount(entity) })
	return count
}

// Identity returns the identity the session currently acts as.
func (s *Session) Identity() Identity {
	var identity Identity
	s.call(func() { identity = s.store.Current() })
	return identity
}

// --- loop-side logic ---

func (s *Session) subscribe(entity EntityType) error {
	scope, err := ScopeFor(entity, s.store.Current())
	if err != nil {
		return err
	}
	h := s.mux.Acquire(entity, scope)
	s.handles[entity] = append(s.handles[entity], h)
	return nil
}

func (s *Session) unsubscribe(entity EntityType) {
	hs := s.handles[entity]
	if len(hs) == 0 {
		return
	}
	h := hs[len(hs)-1]
	s.handles[entity] = hs[:len(hs)-1]
	s.mux.Release(h)
}

func (s *Session) handleRaw(raw RawEvent) {
	if s.gapped.Swap(false) {
		// Events were dropped on the way to this session; converge via
		// backfill instead of trusting the partial stream.
		for _, sub := range s.mux.Active() {
			s.startReconcile(sub)
		}
	}

	if raw.Table == TableUsers {
		s.handleUserChange(raw)
		return
	}

	ev, ok := s.norm.Ingest(raw)
	if !ok {
		return
	}
	s.cache.Apply(ev)
	s.fan.Present(ev)
}

// handleUserChange watches the users table for changes to this session's
// own principal: bans, role flips, account deletion.
func (s *Session) handleUserChange(raw RawEvent) {
	me := s.store.Current()
	if me.Anonymous() {
		return
	}

	rowJSON := raw.Data.New
	if len(rowJSON) == 0 || string(rowJSON) == "null" {
		rowJSON = raw.Data.Old
	}
	var row Row
	if err := json.Unmarshal(rowJSON, &row); err != nil || row.Str("id") != me.ID {
		return
	}

	if raw.Action == ActionDelete {
		s.invalidate(CloseReasonInvalidated)
		return
	}

	identity, err := s.store.Resolve(me.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.invalidate(CloseReasonInvalidated)
		}
		return
	}
	// Fires onIdentityChanged only if the (id, role, status) tuple
	// actually changed.
	s.store.Set(identity)
}

func (s *Session) onIdentityChanged(old, current Identity) {
	if current.Banned() {
		s.invalidate(CloseReasonBanned)
		return
	}

	// Role switch or re-login: everything bound to the old identity is
	// force-released and re-acquired against the new scopes. The cache
	// goes too; its rows were gathered under the old visibility rules.
	counts := make(map[EntityType]int, len(s.handles))
	for entity, hs := range s.handles {
		counts[entity] = len(hs)
	}
	s.handles = make(map[EntityType][]*Handle)
	s.mux.ForceReleaseAll()
	s.cache.Clear()

	for entity, count := range counts {
		for i := 0; i < count; i++ {
			if err := s.subscribe(entity); err != nil {
				// The new role has no such feed; the claim lapses.
				logger.Debug("feed not rebound after identity change",
					"session_id", s.id, "entity", string(entity), "error", err)
				break
			}
		}
	}
}

// invalidate is the single fatal path: ban or account removal.
func (s *Session) invalidate(reason string) {
	s.mux.ForceReleaseAll()
	s.handles = make(map[EntityType][]*Handle)
	s.cache.Clear()
	s.store.Clear()
	s.sink.CloseSession(reason)
	s.Close()
}

func (s *Session) handleSignal(sig connSignal) {
	if sig.lost {
		// The transport shed events while we stayed connected; the live
		// stream is no longer complete, so converge every feed.
		for _, sub := range s.mux.Active() {
			s.startReconcile(sub)
		}
		return
	}

	s.sink.SendConnectivity(sig.connected)
	if !sig.connected {
		for _, sub := range s.mux.Active() {
			if sub.State() == SubActive {
				sub.state = SubDisconnected
			}
		}
		return
	}

	needBackfill := sig.gap >= s.cfg.StaleThreshold || s.gapped.Swap(false)
	for _, sub := range s.mux.Active() {
		if needBackfill || sub.State() == SubDisconnected {
			s.startReconcile(sub)
		}
	}
}

// startReconcile launches a backfill for one subscription. The fetch runs
// off-loop; the merge comes back through a command and is discarded if
// the subscription was torn down meanwhile.
func (s *Session) startReconcile(sub *Subscription) {
	if sub.state == SubTornDown || sub.state == SubReconciling {
		return
	}
	sub.state = SubReconciling

	gen := sub.generation
	entity := sub.Entity
	identity := s.store.Current()
	startedAt := time.Now()
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		rows, err := s.rec.Fetch(ctx, entity, identity)
		s.post(func() {
			if sub.generation != gen || sub.state == SubTornDown {
				// Released while in flight; the result is discarded.
				return
			}
			if err != nil {
				// Serve stale state and let the next trigger retry.
				logger.Warn("backfill failed, cache possibly stale",
					"session_id", s.id, "entity", string(entity), "error", err)
				sub.state = SubActive
				return
			}
			s.rec.Merge(entity, rows, startedAt)
			sub.state = SubActive
		})
	}()
}

func (s *Session) teardown() {
	s.mux.ForceReleaseAll()
	s.handles = make(map[EntityType][]*Handle)
	s.cache.Clear()
	s.store.Clear()
}

// Service wires process-level pieces (hub, transport, snapshot queries)
// and mints sessions for authenticated connections.
type Service struct {
	hub     *Hub
	source  ChangeSource
	fetcher SnapshotFetcher
	users   repositories.UserRepository
	cfg     config.RealtimeConfig
}

var ErrSessionBanned = errors.New("realtime: user is banned")

func NewService(hub *Hub, source ChangeSource, fetcher SnapshotFetcher, users repositories.UserRepository, cfg config.RealtimeConfig) *Service {
	return &Service{
		hub:     hub,
		source:  source,
		fetcher: fetcher,
		users:   users,
		cfg:     cfg,
	}
}

// NewSession resolves the caller's identity and builds its private
// broker. The caller must invoke Run on a goroutine and Close when the
// connection ends.
func (svc *Service) NewSession(userID string, sink Sink) (*Session, error) {
	store := NewSessionStore(svc.users)
	identity, err := store.Resolve(userID)
	if err != nil {
		return nil, err
	}
	if identity.Banned() {
		return nil, ErrSessionBanned
	}
	store.Set(identity)

	s := &Session{
		id:       uuid.NewString(),
		cfg:      svc.cfg,
		hub:      svc.hub,
		src:      svc.source,
		sink:     sink,
		store:    store,
		handles:  make(map[EntityType][]*Handle),
		inbox:    make(chan RawEvent, svc.cfg.SessionInboxCap),
		signals:  make(chan connSignal, 4),
		commands: make(chan func(), 64),
		done:     make(chan struct{}),
	}

	s.cache = NewEntityCache(svc.cfg.CacheCap)
	s.mux = NewMux(svc.cfg.ReleaseGrace, s.schedule,
		func(sub *Subscription) {
			svc.source.Subscribe(TableForEntity(sub.Entity))
			s.startReconcile(sub)
		},
		func(sub *Subscription) {
			svc.source.Unsubscribe(TableForEntity(sub.Entity))
		},
	)
	s.norm = NewNormalizer(svc.cfg.DedupWindow, s.mux.ActiveScopes)
	s.rec = NewReconciler(svc.fetcher, s.cache, svc.cfg)
	s.fan = NewFanout(sink, s.cache, store.Current, svc.cfg.DedupWindow)
	store.OnIdentityChanged(s.onIdentityChanged)

	// Every cache mutation is mirrored to the client; dashboards render
	// from these frames and never talk to the transport.
	for _, entity := range []EntityType{EntityNotification, EntityMessage, EntityProposal, EntityJob, EntityPayout} {
		entity := entity
		s.cache.OnChange(entity, func(entry CacheEntry, kind ChangeKind) {
			sink.SendCacheChange(CacheChange{
				EntityType: entity,
				EntityID:   entry.EntityID,
				Kind:       kind,
				Payload:    entry.Payload,
				ServerTS:   entry.ServerTS,
			})
			if entity == EntityNotification {
				sink.SendUnreadCount(EntityNotification, s.cache.UnreadCount(EntityNotification))
			}
		})
	}

	return s, nil
}
