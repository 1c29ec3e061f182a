package realtime

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"workbridge_backend/internal/config"
	"workbridge_backend/internal/logger"

	"github.com/lib/pq"
)

// ChangeSource is the wire-level change feed the broker consumes. One
// physical connection serves the whole process; sessions never touch it
// directly.
type ChangeSource interface {
	Start(ctx context.Context) error
	// Subscribe registers interest in a table's changes; refcounted, so
	// many sessions sharing a table keep one registration.
	Subscribe(table string)
	Unsubscribe(table string)
	Events() <-chan RawEvent
	// Ready fires after every (re)connect, once the LISTEN registration
	// covering all subscribed tables has been re-issued.
	Ready() <-chan struct{}
	// Disconnects fires when the connection is lost; delivery resumes
	// after the next Ready.
	Disconnects() <-chan error
	// Gaps fires when events were shed while connected (full buffer);
	// consumers can no longer trust the stream and must backfill.
	Gaps() <-chan struct{}
	Connected() bool
}

// channelName is the single NOTIFY channel all table triggers publish on.
const channelName = "events"

// PQTransport implements ChangeSource over Postgres LISTEN/NOTIFY, fed by
// the notify_event() triggers installed at migration time. Connection loss
// is never fatal: the transport redials forever with full-jitter
// exponential backoff.
type PQTransport struct {
	dsn         string
	backoffBase time.Duration
	backoffCap  time.Duration

	events      chan RawEvent
	ready       chan struct{}
	disconnects chan error
	gaps        chan struct{}
	connected   atomic.Bool

	mu     sync.Mutex
	tables map[string]int // refcounted table interest
}

func NewPQTransport(dsn string, cfg config.RealtimeConfig) *PQTransport {
	return &PQTransport{
		dsn:         dsn,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		events:      make(chan RawEvent, 1024),
		ready:       make(chan struct{}, 1),
		disconnects: make(chan error, 8),
		gaps:        make(chan struct{}, 1),
		tables:      map[string]int{TableUsers: 1}, // identity changes are always watched
	}
}

func (t *PQTransport) Events() <-chan RawEvent   { return t.events }
func (t *PQTransport) Ready() <-chan struct{}    { return t.ready }
func (t *PQTransport) Disconnects() <-chan error { return t.disconnects }
func (t *PQTransport) Gaps() <-chan struct{}     { return t.gaps }
func (t *PQTransport) Connected() bool           { return t.connected.Load() }

func (t *PQTransport) Subscribe(table string) {
	t.mu.Lock()
	t.tables[table]++
	t.mu.Unlock()
}

func (t *PQTransport) Unsubscribe(table string) {
	t.mu.Lock()
	if t.tables[table] > 0 {
		t.tables[table]--
	}
	if t.tables[table] == 0 {
		delete(t.tables, table)
	}
	t.mu.Unlock()
}

func (t *PQTransport) watched(table string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tables[table] > 0
}

// Start launches the listen loop. It returns immediately; readiness is
// signaled through Ready.
func (t *PQTransport) Start(ctx context.Context) error {
	go t.run(ctx)
	return nil
}

func (t *PQTransport) run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		listener := pq.NewListener(t.dsn, t.backoffBase, t.backoffCap, nil)
		if err := listener.Listen(channelName); err != nil {
			listener.Close()
			t.dropConnection(err)
			if !t.sleep(ctx, t.backoffFor(attempt)) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		t.connected.Store(true)
		logger.Info("cdc transport connected", "channel", channelName)
		select {
		case t.ready <- struct{}{}:
		default:
		}

		if !t.pump(ctx, listener) {
			listener.Close()
			return
		}
		listener.Close()

		// connection lost; back off before redialing
		if !t.sleep(ctx, t.backoffFor(attempt)) {
			return
		}
		attempt++
	}
}

// pump drains notifications until the connection drops (false return means
// the context ended).
func (t *PQTransport) pump(ctx context.Context, listener *pq.Listener) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-listener.Notify:
			if !ok {
				t.dropConnection(nil)
				return true
			}
			if n == nil {
				// pq reports an internal reconnect with a nil
				// notification; events may have been missed, so treat it
				// as a drop and redial under our own backoff.
				t.dropConnection(nil)
				return true
			}
			t.deliver(n.Extra)
		}
	}
}

func (t *PQTransport) deliver(payload string) {
	var raw RawEvent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		logger.Warn("cdc transport: undecodable notification", "error", err)
		return
	}
	if !t.watched(raw.Table) {
		return
	}
	select {
	case t.events <- raw:
	default:
		// A full buffer means consumers are hopelessly behind; drop the
		// event and raise a gap so sessions converge via backfill.
		logger.Warn("cdc transport: event buffer full, dropping", "table", raw.Table)
		select {
		case t.gaps <- struct{}{}:
		default:
		}
	}
}

func (t *PQTransport) dropConnection(err error) {
	if t.connected.Swap(false) {
		logger.Warn("cdc transport disconnected", "error", err)
	}
	select {
	case t.disconnects <- err:
	default:
	}
}

// backoffFor returns a full-jitter delay: uniform in (0, min(cap, base*2^n)].
func (t *PQTransport) backoffFor(attempt int) time.Duration {
	max := t.backoffBase << uint(attempt)
	if max > t.backoffCap || max <= 0 {
		max = t.backoffCap
	}
	return time.Duration(rand.Int63n(int64(max))) + time.Millisecond
}

func (t *PQTransport) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
