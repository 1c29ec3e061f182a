package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"workbridge_backend/internal/config"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- fakes ---

type fakeSource struct {
	events      chan RawEvent
	ready       chan struct{}
	disconnects chan error
	gaps        chan struct{}

	mu     sync.Mutex
	tables map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events:      make(chan RawEvent, 64),
		ready:       make(chan struct{}, 1),
		disconnects: make(chan error, 1),
		gaps:        make(chan struct{}, 1),
		tables:      map[string]int{TableUsers: 1}, // identity changes always watched, as in the real transport
	}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Events() <-chan RawEvent         { return f.events }
func (f *fakeSource) Ready() <-chan struct{}          { return f.ready }
func (f *fakeSource) Disconnects() <-chan error       { return f.disconnects }
func (f *fakeSource) Gaps() <-chan struct{}           { return f.gaps }
func (f *fakeSource) Connected() bool                 { return true }

func (f *fakeSource) Subscribe(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table]++
}

func (f *fakeSource) Unsubscribe(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table]--
}

func (f *fakeSource) refs(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table]
}

type fakeSink struct {
	mu           sync.Mutex
	toasts       []Toast
	changes      []CacheChange
	unreadCounts []int
	connectivity []bool
	closedReason string
}

func (f *fakeSink) SendToast(toast Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast)
}

func (f *fakeSink) SendCacheChange(change CacheChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
}

func (f *fakeSink) SendUnreadCount(entity EntityType, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreadCounts = append(f.unreadCounts, count)
}

func (f *fakeSink) SendConnectivity(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectivity = append(f.connectivity, connected)
}

func (f *fakeSink) CloseSession(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedReason = reason
}

func (f *fakeSink) toastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toasts)
}

func (f *fakeSink) lastToast() Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toasts[len(f.toasts)-1]
}

func (f *fakeSink) lastUnread() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.unreadCounts) == 0 {
		return 0, false
	}
	return f.unreadCounts[len(f.unreadCounts)-1], true
}

func (f *fakeSink) closed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedReason
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByID(id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) FindByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) Create(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateRole(userID string, role models.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Role = role
	}
	return nil
}

func (f *fakeUserRepo) UpdateStatus(userID string, status models.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Status = status
	}
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(string) error { return nil }

func (f *fakeUserRepo) FindFreelancerProfile(string) (*models.FreelancerProfile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindEmployerProfile(string) (*models.EmployerProfile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) UpsertFreelancerProfile(*models.FreelancerProfile) error { return nil }
func (f *fakeUserRepo) UpsertEmployerProfile(*models.EmployerProfile) error     { return nil }

// snapshotFetcher is swappable mid-test to simulate state changing
// during a disconnect.
type snapshotFetcher struct {
	mu    sync.Mutex
	rows  map[EntityType][]SnapshotRow
	calls int
}

func (f *snapshotFetcher) set(entity EntityType, rows []SnapshotRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[EntityType][]SnapshotRow)
	}
	f.rows[entity] = rows
}

func (f *snapshotFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *snapshotFetcher) FetchSnapshot(ctx context.Context, entity EntityType, identity Identity) ([]SnapshotRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rows[entity], nil
}

// --- harness ---

type sessionHarness struct {
	source  *fakeSource
	sink    *fakeSink
	users   *fakeUserRepo
	fetcher *snapshotFetcher
	session *Session
	cancel  context.CancelFunc
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		DedupWindow:     2 * time.Second,
		ReleaseGrace:    20 * time.Millisecond,
		CacheCap:        100,
		BackoffBase:     time.Millisecond,
		BackoffCap:      2 * time.Millisecond,
		StaleThreshold:  3 * time.Second,
		SessionInboxCap: 64,
	}
}

func startSession(t *testing.T, user *models.User) *sessionHarness {
	t.Helper()

	source := newFakeSource()
	users := newFakeUserRepo(user)
	fetcher := &snapshotFetcher{}
	sink := &fakeSink{}
	cfg := testRealtimeConfig()

	hub := NewHub(source, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := NewService(hub, source, fetcher, users, cfg)
	session, err := svc.NewSession(user.ID, sink)
	require.NoError(t, err)
	go session.Run(ctx)

	t.Cleanup(func() {
		session.Close()
		cancel()
	})
	return &sessionHarness{
		source:  source,
		sink:    sink,
		users:   users,
		fetcher: fetcher,
		session: session,
		cancel:  cancel,
	}
}

func employer(id string) *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: id},
		Email:     id + "@example.com",
		Role:      models.UserRoleEmployer,
		Status:    models.UserStatusActive,
	}
}

// --- scenarios ---

func TestSessionNotificationToastExactlyOnce(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityNotification))

	ts := time.Now()
	raw := rawInsert(TableNotifications, "n1", map[string]any{
		"user_id": "emp-1",
		"title":   "New proposal",
		"message": "You received a new proposal",
		"is_read": false,
	}, ts)

	// The trigger fires once but delivery can duplicate; the user must
	// still see one toast and a badge of one.
	h.source.events <- raw
	h.source.events <- raw

	require.Eventually(t, func() bool { return h.sink.toastCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "New proposal", h.sink.lastToast().Title)

	assert.Equal(t, 1, h.session.UnreadCount(EntityNotification))
	count, ok := h.sink.lastUnread()
	require.True(t, ok)
	assert.Equal(t, 1, count)

	// Still exactly one toast after everything settled.
	assert.Equal(t, 1, h.sink.toastCount())
}

func TestSessionScopeIsolation(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityProposal))

	ts := time.Now()
	h.source.events <- rawInsert(TableProposals, "theirs", map[string]any{"employer_id": "emp-2"}, ts)
	h.source.events <- rawInsert(TableProposals, "mine", map[string]any{"employer_id": "emp-1"}, ts)

	require.Eventually(t, func() bool {
		return len(h.session.ListCache(EntityProposal)) == 1
	}, time.Second, 5*time.Millisecond)

	entries := h.session.ListCache(EntityProposal)
	require.Len(t, entries, 1)
	assert.Equal(t, "mine", entries[0].EntityID, "another employer's proposal must never land in this cache")
	assert.Zero(t, h.sink.toastCount(), "proposal rows do not toast; their notifications do")
}

func TestSessionOptimisticMarkRead(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityNotification))

	ts := time.Now()
	h.source.events <- rawInsert(TableNotifications, "n1", map[string]any{
		"user_id": "emp-1", "is_read": false,
	}, ts)

	require.Eventually(t, func() bool {
		return h.session.UnreadCount(EntityNotification) == 1
	}, time.Second, 5*time.Millisecond)

	// The badge drops immediately, before any server confirmation.
	h.session.MarkNotificationRead("n1")
	assert.Equal(t, 0, h.session.UnreadCount(EntityNotification))

	// The authoritative UPDATE lands later and settles the entry.
	h.source.events <- RawEvent{
		EventID: "evt-n1-read",
		Table:   TableNotifications,
		Action:  ActionUpdate,
		Data: RawEventData{New: mustRow(map[string]any{
			"id": "n1", "user_id": "emp-1", "is_read": true,
			"updated_at": ts.Add(time.Second).Format(time.RFC3339Nano),
		})},
	}
	require.Eventually(t, func() bool {
		entries := h.session.ListCache(EntityNotification)
		return len(entries) == 1 && !entries[0].Optimistic
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.session.UnreadCount(EntityNotification))
}

func TestSessionReconnectReconciles(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityProposal))

	ts := time.Now()
	h.source.events <- rawInsert(TableProposals, "p1", map[string]any{
		"employer_id": "emp-1", "status": "pending",
	}, ts)
	require.Eventually(t, func() bool {
		return len(h.session.ListCache(EntityProposal)) == 1
	}, time.Second, 5*time.Millisecond)

	// Two proposals arrived while the feed was down; the backfill query
	// sees them, the dead stream never will.
	h.fetcher.set(EntityProposal, []SnapshotRow{
		{ID: "p1", Payload: Row{"id": "p1", "employer_id": "emp-1", "status": "pending"}, ServerTS: ts},
		{ID: "p2", Payload: Row{"id": "p2", "employer_id": "emp-1"}, ServerTS: ts.Add(time.Second)},
		{ID: "p3", Payload: Row{"id": "p3", "employer_id": "emp-1"}, ServerTS: ts.Add(2 * time.Second)},
	})

	h.source.disconnects <- nil
	h.source.ready <- struct{}{}

	require.Eventually(t, func() bool {
		return len(h.session.ListCache(EntityProposal)) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestSessionUpstreamDropTriggersBackfill(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityProposal))

	// Let the subscription's initial snapshot land first.
	require.Eventually(t, func() bool { return h.fetcher.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	before := h.fetcher.callCount()

	h.fetcher.set(EntityProposal, []SnapshotRow{
		{ID: "p1", Payload: Row{"id": "p1", "employer_id": "emp-1"}, ServerTS: time.Now()},
	})

	// The transport shed events under pressure without any disconnect;
	// the session must notice and re-snapshot. A saturated transport
	// keeps raising gaps, so the poll re-raises too.
	require.Eventually(t, func() bool {
		select {
		case h.source.gaps <- struct{}{}:
		default:
		}
		return h.fetcher.callCount() > before && len(h.session.ListCache(EntityProposal)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionBanTerminates(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityNotification))

	h.users.UpdateStatus("emp-1", models.UserStatusBanned)
	h.source.events <- rawInsert(TableUsers, "emp-1", map[string]any{
		"status": "banned", "role": "employer",
	}, time.Now())

	require.Eventually(t, func() bool {
		return h.sink.closed() == CloseReasonBanned
	}, time.Second, 5*time.Millisecond)
}

func TestSessionSharedSubscriptionRefcounting(t *testing.T) {
	h := startSession(t, employer("emp-1"))

	require.NoError(t, h.session.Subscribe(EntityNotification))
	require.NoError(t, h.session.Subscribe(EntityNotification))
	// Two claims collapse into one feed, so the transport sees exactly
	// one registration.
	assert.Equal(t, 1, h.source.refs(TableNotifications))

	h.session.Unsubscribe(EntityNotification)
	// Second claim still holds the feed past the grace period.
	time.Sleep(50 * time.Millisecond)

	ts := time.Now()
	h.source.events <- rawInsert(TableNotifications, "n1", map[string]any{"user_id": "emp-1"}, ts)
	require.Eventually(t, func() bool {
		return len(h.session.ListCache(EntityNotification)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionRefreshPullsSnapshot(t *testing.T) {
	h := startSession(t, employer("emp-1"))
	require.NoError(t, h.session.Subscribe(EntityJob))

	ts := time.Now()
	h.fetcher.set(EntityJob, []SnapshotRow{
		{ID: "j1", Payload: Row{"id": "j1", "employer_id": "emp-1"}, ServerTS: ts},
	})

	h.session.Refresh(EntityJob)
	require.Eventually(t, func() bool {
		return len(h.session.ListCache(EntityJob)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionRejectsBannedUser(t *testing.T) {
	banned := employer("emp-2")
	banned.Status = models.UserStatusBanned

	source := newFakeSource()
	cfg := testRealtimeConfig()
	hub := NewHub(source, cfg)
	svc := NewService(hub, source, &snapshotFetcher{}, newFakeUserRepo(banned), cfg)

	_, err := svc.NewSession("emp-2", &fakeSink{})
	assert.ErrorIs(t, err, ErrSessionBanned)
}

func TestSessionSubscribeWithoutFeedFails(t *testing.T) {
	user := employer("u1")
	user.Role = models.UserRoleNone
	h := startSession(t, user)

	err := h.session.Subscribe(EntityProposal)
	assert.Error(t, err, "a user without a role has no proposal feed")
}

func mustRow(fields map[string]any) json.RawMessage {
	rowJSON, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	return rowJSON
}
