package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebula-miniapp/internal/common/cache"
	apperrors "nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/identity"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
	"nebula-miniapp/internal/features/session/syncloop"
	"nebula-miniapp/internal/platform/backend"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	mu        sync.Mutex
	users     map[string]user.Profile
	accounts  map[string]inventory.Account
	userErr   error
	invErr    error
	calls     int
	userGets  int
	upserts   []user.Profile
	platforms []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{users: map[string]user.Profile{}, accounts: map[string]inventory.Account{}}
}

func (b *fakeBackend) GetUser(_ context.Context, id string) (*user.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.userGets++
	if b.userErr != nil {
		return nil, b.userErr
	}
	p, ok := b.users[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &p, nil
}

func (b *fakeBackend) UpsertUser(_ context.Context, p *user.Profile, platform string) (*user.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.users[p.ID] = *p
	b.upserts = append(b.upserts, *p)
	b.platforms = append(b.platforms, platform)
	out := *p
	return &out, nil
}

func (b *fakeBackend) GetInventory(_ context.Context, id string) (*inventory.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.invErr != nil {
		return nil, b.invErr
	}
	acc, ok := b.accounts[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &acc, nil
}

func (b *fakeBackend) UpsertInventory(_ context.Context, acc *inventory.Account) (*inventory.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.accounts[acc.UserID] = *acc
	out := *acc
	return &out, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) lastUpsert() user.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upserts[len(b.upserts)-1]
}

type fakeCatalog struct {
	items []catalog.Item
	err   error
	calls int
}

func (f *fakeCatalog) Ranked(context.Context) ([]catalog.Item, error) {
	f.calls++
	return f.items, f.err
}

type memMirror struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemMirror() *memMirror { return &memMirror{data: map[string][]byte{}} }

func (m *memMirror) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memMirror) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memMirror) InvalidateSession(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, "session:") && strings.HasSuffix(k, ":"+userID) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memMirror) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fixture struct {
	svc     *Service
	backend *fakeBackend
	catalog *fakeCatalog
	mirror  *memMirror
	clock   *fakeClock
}

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: newFakeBackend(),
		catalog: &fakeCatalog{items: []catalog.Item{{ID: "a"}, {ID: "b"}}},
		mirror:  newMemMirror(),
		clock:   &fakeClock{now: t0},
	}
	cfg := Config{
		IdleTimeout:  2 * time.Minute,
		ReapInterval: time.Hour,
		Sync:         syncloop.Config{Interval: time.Hour, MinAccrualInterval: 15 * time.Second, AccrualUnit: 1, RequestTimeout: time.Second},
	}
	f.svc = New(context.Background(), cfg, Deps{Backend: f.backend, Catalog: f.catalog, Mirror: f.mirror, Clock: f.clock})
	t.Cleanup(func() { f.svc.Shutdown(context.Background()) })
	return f
}

var alice = identity.Identity{UserID: "100", Username: "alice", Platform: "ios", IsPremium: true}

func TestGuestBootstrapMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Bootstrap(context.Background(), identity.Guest("android"))

	assert.True(t, resp.Guest)
	assert.Equal(t, user.GuestID, resp.Profile.ID)
	assert.Equal(t, "Guest", resp.Profile.Username)
	assert.Zero(t, resp.Inventory.Coins)
	assert.Empty(t, resp.Catalog)
	assert.NotNil(t, resp.Catalog)
	assert.Nil(t, resp.Session)
	assert.Empty(t, resp.Error)

	assert.Zero(t, f.backend.callCount())
	assert.Zero(t, f.catalog.calls)
	assert.Zero(t, f.svc.Active())
	assert.Zero(t, f.svc.runner.Active())
}

func TestBootstrapNewUser(t *testing.T) {
	f := newFixture(t)

	resp := f.svc.Bootstrap(context.Background(), alice)

	require.Empty(t, resp.Error)
	assert.False(t, resp.Guest)
	assert.Equal(t, "100", resp.Profile.ID)
	assert.EqualValues(t, 1, resp.Profile.LoginCount)
	assert.Equal(t, []string{"ios"}, resp.Profile.PlatformsSeen)
	assert.Equal(t, user.StatusOnline, resp.Profile.OnlineStatus)
	assert.Equal(t, t0, resp.Profile.FirstLoginAt)
	assert.Len(t, resp.Catalog, 2)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "100", resp.Session.UserID)

	assert.Contains(t, f.backend.accounts, "100")
	assert.Equal(t, []string{"ios"}, f.backend.platforms)
	assert.Equal(t, 1, f.svc.Active())
	assert.True(t, f.mirror.has(cache.SessionInventoryKey("100")))
}

func TestBootstrapExistingUserRecordsLogin(t *testing.T) {
	f := newFixture(t)
	f.backend.users["100"] = user.Profile{ID: "100", Username: "old", LoginCount: 4, PlatformsSeen: []string{"web"}, FirstLoginAt: t0.Add(-time.Hour)}
	f.backend.accounts["100"] = inventory.Account{UserID: "100", Coins: 50}

	resp := f.svc.Bootstrap(context.Background(), alice)

	require.Empty(t, resp.Error)
	assert.EqualValues(t, 5, resp.Profile.LoginCount)
	assert.Equal(t, "alice", resp.Profile.Username)
	assert.Equal(t, []string{"ios", "web"}, resp.Profile.PlatformsSeen)
	assert.Equal(t, t0.Add(-time.Hour), resp.Profile.FirstLoginAt)
	assert.EqualValues(t, 50, resp.Inventory.Coins)
}

func TestBootstrapFailureServesDefaults(t *testing.T) {
	f := newFixture(t)
	f.backend.userErr = errors.New("connection refused")

	resp := f.svc.Bootstrap(context.Background(), alice)

	assert.Contains(t, resp.Error, "connection refused")
	assert.Equal(t, "100", resp.Profile.ID)
	assert.Zero(t, resp.Inventory.Coins)
	assert.Empty(t, resp.Catalog)
	assert.Nil(t, resp.Session)
	assert.Zero(t, f.svc.Active())
}

func TestBootstrapCatalogFailureServesDefaults(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("catalog down")

	resp := f.svc.Bootstrap(context.Background(), alice)

	assert.Contains(t, resp.Error, "catalog down")
	assert.Empty(t, resp.Catalog)
	assert.Zero(t, f.svc.Active())
}

func TestStartRejectsGuest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), identity.Guest(""))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGuestIdentity))
	assert.Zero(t, f.backend.callCount())
}

func TestStartIsHeartbeatWhenRunning(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Start(context.Background(), alice)
	require.NoError(t, err)
	calls := f.backend.callCount()

	f.clock.Advance(time.Minute)
	second, err := f.svc.Start(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, first.Generation, second.Generation)
	assert.Equal(t, t0.Add(time.Minute), second.LastSeen)
	assert.Equal(t, calls, f.backend.callCount())
}

func TestSyncAccruesAndMirrors(t *testing.T) {
	f := newFixture(t)
	f.backend.accounts["100"] = inventory.Account{UserID: "100", Coins: 10}
	resp := f.svc.Bootstrap(context.Background(), alice)
	require.Empty(t, resp.Error)

	snap, err := f.svc.Sync(context.Background(), "100")
	require.NoError(t, err)
	assert.EqualValues(t, 11, snap.Inventory.Coins)
	assert.Equal(t, "active", snap.State)
	require.NotNil(t, snap.LastSync)

	var mirrored inventory.Account
	require.NoError(t, f.mirror.Get(context.Background(), cache.SessionInventoryKey("100"), &mirrored))
	assert.EqualValues(t, 11, mirrored.Coins)

	snap, err = f.svc.Sync(context.Background(), "100")
	require.NoError(t, err)
	assert.EqualValues(t, 11, snap.Inventory.Coins)
}

func TestSyncWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Sync(context.Background(), "100")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestStopMarksOffline(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.svc.Bootstrap(context.Background(), alice).Error)

	require.NoError(t, f.svc.Stop(context.Background(), "100"))

	assert.Equal(t, user.StatusOffline, f.backend.lastUpsert().OnlineStatus)
	assert.EqualValues(t, 1, f.backend.lastUpsert().LoginCount)
	assert.Zero(t, f.svc.Active())
	assert.Zero(t, f.svc.runner.Active())
	assert.False(t, f.mirror.has(cache.SessionInventoryKey("100")))

	_, err := f.svc.Snapshot(context.Background(), "100")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))

	require.NoError(t, f.svc.Stop(context.Background(), "100"))
}

func TestSnapshotFallsBackToMirror(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mirror.Set(context.Background(), cache.SessionInventoryKey("7"), inventory.Account{UserID: "7", Coins: 3}, 0))

	snap, err := f.svc.Snapshot(context.Background(), "7")
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.Equal(t, "terminated", snap.State)
	assert.EqualValues(t, 3, snap.Inventory.Coins)
}

func TestApplyRefusesStaleGeneration(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.Start(context.Background(), alice)
	require.NoError(t, err)

	assert.False(t, f.svc.Apply("100", snap.Generation-1, inventory.Account{UserID: "100", Coins: 999}))
	assert.False(t, f.svc.Apply("nobody", snap.Generation, inventory.Account{Coins: 1}))
	assert.True(t, f.svc.Apply("100", snap.Generation, inventory.Account{UserID: "100", Coins: 5}))
	assert.True(t, f.svc.Apply("100", snap.Generation, inventory.Account{UserID: "100", Coins: 2}))

	got, err := f.svc.Snapshot(context.Background(), "100")
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Inventory.Coins)
}

func TestReapIdle(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.svc.Bootstrap(context.Background(), alice).Error)

	f.clock.Advance(time.Minute)
	assert.Zero(t, f.svc.ReapIdle(context.Background()))

	f.svc.Touch("100")
	f.clock.Advance(119 * time.Second)
	assert.Zero(t, f.svc.ReapIdle(context.Background()))

	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.svc.ReapIdle(context.Background()))
	assert.Zero(t, f.svc.Active())
}

func TestStartNewUserFetchesProfileOnce(t *testing.T) {
	f := newFixture(t)

	snap, err := f.svc.Start(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "100", snap.UserID)

	f.backend.mu.Lock()
	gets := f.backend.userGets
	f.backend.mu.Unlock()
	assert.Equal(t, 1, gets)
	assert.EqualValues(t, 1, f.backend.lastUpsert().LoginCount)
	assert.NotNil(t, f.backend.lastUpsert().Referrals)
}

func TestSnapshotReportsMirrorFailure(t *testing.T) {
	f := newFixture(t)
	f.mirror.getErr = errors.New("redis: connection pool timeout")

	_, err := f.svc.Snapshot(context.Background(), "7")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheError))
}

func TestStopDropsEveryMirror(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.svc.Bootstrap(context.Background(), alice).Error)
	require.NoError(t, f.mirror.Set(context.Background(), "session:profile:100", "x", 0))
	require.NoError(t, f.mirror.Set(context.Background(), "session:inventory:1000", "y", 0))

	require.NoError(t, f.svc.Stop(context.Background(), "100"))

	assert.False(t, f.mirror.has(cache.SessionInventoryKey("100")))
	assert.False(t, f.mirror.has("session:profile:100"))
	assert.True(t, f.mirror.has("session:inventory:1000"))
}

func TestHeartbeatRetriesFailedLoop(t *testing.T) {
	f := newFixture(t)
	f.backend.accounts["100"] = inventory.Account{UserID: "100", Coins: 10}
	_, err := f.svc.Start(context.Background(), alice)
	require.NoError(t, err)

	f.backend.mu.Lock()
	f.backend.invErr = errors.New("flaky")
	f.backend.mu.Unlock()
	_, err = f.svc.Sync(context.Background(), "100")
	require.Error(t, err)

	snap, err := f.svc.Snapshot(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "error", snap.State)

	f.backend.mu.Lock()
	f.backend.invErr = nil
	f.backend.mu.Unlock()
	_, err = f.svc.Start(context.Background(), alice)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, err := f.svc.Snapshot(context.Background(), "100")
		return err == nil && snap.State == "active" && snap.Inventory.Coins == 11
	}, 2*time.Second, 10*time.Millisecond)
}
