package realtime

import (
	"context"
	"time"

	"workbridge_backend/internal/config"
	"workbridge_backend/internal/logger"
)

// connSignal tells a session about transport-level connectivity.
type connSignal struct {
	connected bool
	// gap is how long the feed was down, known only on reconnect.
	gap time.Duration
	// lost means events were shed upstream while connected; the stream is
	// untrustworthy until the session backfills.
	lost bool
}

// Hub owns the process-wide ChangeSource and fans raw events out to every
// registered session. Sessions stay fully isolated from each other: the
// hub only ever writes into their inbox channels.
type Hub struct {
	source ChangeSource
	cfg    config.RealtimeConfig

	register   chan *Session
	unregister chan *Session
	sessions   map[string]*Session
	// stopped unblocks Attach/Detach once Run has returned, so sessions
	// tearing down during shutdown never hang on a dead loop.
	stopped chan struct{}
}

func NewHub(source ChangeSource, cfg config.RealtimeConfig) *Hub {
	return &Hub{
		source:     source,
		cfg:        cfg,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		sessions:   make(map[string]*Session),
		stopped:    make(chan struct{}),
	}
}

// Attach registers a session for event delivery.
func (h *Hub) Attach(s *Session) {
	select {
	case h.register <- s:
	case <-h.stopped:
	}
}

// Detach removes a session; its inbox is no longer written to afterwards.
func (h *Hub) Detach(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.stopped:
	}
}

// Run drives the fanout loop until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	var downSince time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.sessions[s.id] = s
			logger.Debug("realtime session attached", "session_id", s.id, "total", len(h.sessions))

		case s := <-h.unregister:
			delete(h.sessions, s.id)
			logger.Debug("realtime session detached", "session_id", s.id, "total", len(h.sessions))

		case raw := <-h.source.Events():
			for _, s := range h.sessions {
				select {
				case s.inbox <- raw:
				default:
					// Inbox full: the session missed this event and must
					// backfill; flag it instead of blocking the fanout.
					s.markGap()
				}
			}

		case <-h.source.Gaps():
			for _, s := range h.sessions {
				s.signal(connSignal{connected: true, lost: true})
			}

		case err := <-h.source.Disconnects():
			_ = err
			downSince = time.Now()
			for _, s := range h.sessions {
				s.signal(connSignal{connected: false})
			}

		case <-h.source.Ready():
			var gap time.Duration
			if !downSince.IsZero() {
				gap = time.Since(downSince)
				downSince = time.Time{}
			}
			for _, s := range h.sessions {
				s.signal(connSignal{connected: true, gap: gap})
			}
		}
	}
}
