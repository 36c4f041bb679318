package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamalert-go/streamalert-go/src/cache"
	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/pkg/events"
	"github.com/streamalert-go/streamalert-go/src/pkg/ratelimit"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/store"
	"github.com/streamalert-go/streamalert-go/src/types"
)

// memStore is a minimal in-memory Store for scheduler tests.
type memStore struct {
	mu          sync.Mutex
	groups      map[string][]*entity.TrackedEntity
	settings    map[string]entity.GroupSettings
	replaceHits int
}

func newMemStore() *memStore {
	return &memStore{
		groups:   make(map[string][]*entity.TrackedEntity),
		settings: make(map[string]entity.GroupSettings),
	}
}

func (m *memStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) GetGroup(ctx context.Context, groupID string) (*entity.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &entity.Group{
		ID:       groupID,
		Settings: m.settings[groupID],
		Entities: m.groups[groupID],
	}, nil
}

func (m *memStore) UpsertGroupSettings(ctx context.Context, groupID string, s entity.GroupSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[groupID] = s
	return nil
}

func (m *memStore) GetEntities(ctx context.Context, groupID string) ([]*entity.TrackedEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[groupID], nil
}

func (m *memStore) ReplaceAll(ctx context.Context, groupID string, es []*entity.TrackedEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID] = es
	m.replaceHits++
	return nil
}

func (m *memStore) Add(ctx context.Context, groupID string, e *entity.TrackedEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID] = append(m.groups[groupID], e)
	return nil
}

func (m *memStore) Remove(ctx context.Context, groupID string, id types.EntityID) error {
	return store.ErrEntityNotFound
}

func (m *memStore) Close() error { return nil }

// stubChecker returns scripted statuses keyed by entity name.
type stubChecker struct {
	platform types.Platform
	mu       sync.Mutex
	statuses map[string]platform.Status
	errs     map[string]error
	calls    int
}

func (c *stubChecker) Platform() types.Platform { return c.platform }

func (c *stubChecker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if err := c.errs[e.Name]; err != nil {
		return platform.Status{}, platform.NewCheckError(c.platform, e.Name, err)
	}
	return c.statuses[e.Name], nil
}

func (c *stubChecker) set(name string, st platform.Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[name] = st
	if c.errs == nil {
		c.errs = make(map[string]error)
	}
	if err != nil {
		c.errs[name] = err
	} else {
		delete(c.errs, name)
	}
}

func liveStatus(title, category string) platform.Status {
	return platform.Status{
		IsLive:   true,
		Snapshot: entity.Snapshot{Title: title, Category: category, URL: "https://example.com/alice"},
	}
}

type testEnv struct {
	sched   *scheduler
	store   *memStore
	checker *stubChecker
	alerts  *alertRecorder
}

type alertRecorder struct {
	mu     sync.Mutex
	events []events.EventType
	alerts []*Alert
}

func (r *alertRecorder) record(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
	r.alerts = append(r.alerts, e.Object.(*Alert))
}

func (r *alertRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.events...)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	configs.SetCurrentConfig(configs.NewConfig())

	st := newMemStore()
	checker := &stubChecker{
		platform: types.Twitch,
		statuses: make(map[string]platform.Status),
		errs:     make(map[string]error),
	}
	ed := events.NewDispatcher()
	rec := &alertRecorder{}
	listener := events.NewEventListener(rec.record)
	for _, typ := range []events.EventType{EntityLive, EntityChanged, EntityOffline} {
		ed.AddEventListener(typ, listener)
	}

	s := New(context.Background(), st, cache.New(), ed, ratelimit.New()).(*scheduler)
	s.lookup = func(p types.Platform) (platform.Checker, bool) {
		if p == checker.platform {
			return checker, true
		}
		return nil, false
	}
	return &testEnv{sched: s, store: st, checker: checker, alerts: rec}
}

func addEntity(t *testing.T, env *testEnv, groupID string, p types.Platform, name string) *entity.TrackedEntity {
	t.Helper()
	e, err := entity.New(p, name, "")
	require.NoError(t, err)
	require.NoError(t, env.store.Add(context.Background(), groupID, e))
	return e
}

func TestPollLifecycle(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	ctx := context.Background()

	// Offline at first: nothing to report.
	live := env.sched.pollOnce(ctx)
	assert.Zero(t, live)
	assert.Empty(t, env.alerts.types())

	// Goes live.
	env.checker.set("alice", liveStatus("hello", "Just Chatting"), nil)
	live = env.sched.pollOnce(ctx)
	assert.Equal(t, 1, live)
	assert.Equal(t, []events.EventType{EntityLive}, env.alerts.types())

	// Still live, same category: detection is idempotent.
	live = env.sched.pollOnce(ctx)
	assert.Equal(t, 1, live)
	assert.Equal(t, []events.EventType{EntityLive}, env.alerts.types())

	// Category moves.
	env.checker.set("alice", liveStatus("hello", "Games + Demos"), nil)
	env.sched.pollOnce(ctx)
	assert.Equal(t, []events.EventType{EntityLive, EntityChanged}, env.alerts.types())

	// Goes offline.
	env.checker.set("alice", platform.Status{}, nil)
	live = env.sched.pollOnce(ctx)
	assert.Zero(t, live)
	assert.Equal(t, []events.EventType{EntityLive, EntityChanged, EntityOffline}, env.alerts.types())

	// A fresh live observation after offline fires went-live again.
	env.checker.set("alice", liveStatus("back", "Just Chatting"), nil)
	env.sched.pollOnce(ctx)
	assert.Equal(t, []events.EventType{EntityLive, EntityChanged, EntityOffline, EntityLive}, env.alerts.types())

	persisted, err := env.store.GetEntities(ctx, "guild-1")
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.True(t, persisted[0].IsLive)
	assert.False(t, persisted[0].LastLiveAt.IsZero())
}

func TestCrossGroupTrackingAlertsEachGroup(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	addEntity(t, env, "guild-2", types.Twitch, "alice")
	ctx := context.Background()

	// Both groups track the same streamer; each must get its own
	// went-live alert, not just whichever group polls first.
	env.checker.set("alice", liveStatus("hello", "Just Chatting"), nil)
	env.sched.pollOnce(ctx)

	assert.Equal(t, []events.EventType{EntityLive, EntityLive}, env.alerts.types())
	groups := map[string]bool{}
	for _, a := range env.alerts.alerts {
		groups[a.GroupID] = true
	}
	assert.True(t, groups["guild-1"] && groups["guild-2"],
		"one alert per group, not two for one group")

	// Same on the way down.
	env.checker.set("alice", platform.Status{}, nil)
	env.sched.pollOnce(ctx)
	assert.Equal(t,
		[]events.EventType{EntityLive, EntityLive, EntityOffline, EntityOffline},
		env.alerts.types())
}

func TestRemovalClearsRememberedState(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	ctx := context.Background()

	env.checker.set("alice", liveStatus("hello", "Just Chatting"), nil)
	env.sched.pollOnce(ctx)
	require.Equal(t, []events.EventType{EntityLive}, env.alerts.types())

	// The entity is removed while live; the pass after the removal
	// must drop its remembered state.
	env.store.mu.Lock()
	env.store.groups["guild-1"] = nil
	env.store.mu.Unlock()
	env.sched.pollOnce(ctx)

	// Re-added and still live: a fresh went-live edge, not a mute.
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	env.sched.pollOnce(ctx)
	assert.Equal(t, []events.EventType{EntityLive, EntityLive}, env.alerts.types())
}

func TestFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	addEntity(t, env, "guild-1", types.Twitch, "bob")
	ctx := context.Background()

	env.checker.set("alice", liveStatus("hi", "Just Chatting"), nil)
	env.sched.pollOnce(ctx)
	require.Equal(t, []events.EventType{EntityLive}, env.alerts.types())

	// Alice's check starts failing. The remembered live state must
	// survive so no phantom offline alert fires, and bob keeps working.
	env.checker.set("alice", platform.Status{}, errors.New("connection reset"))
	env.checker.set("bob", liveStatus("bob live", "IRL"), nil)
	env.sched.pollOnce(ctx)

	got := env.alerts.types()
	assert.Equal(t, []events.EventType{EntityLive, EntityLive}, got)

	persisted, err := env.store.GetEntities(ctx, "guild-1")
	require.NoError(t, err)
	assert.Contains(t, persisted[0].LastError, "connection reset")
	assert.True(t, persisted[0].IsLive, "failure keeps last known live flag")

	// Recovery with unchanged state fires nothing.
	env.checker.set("alice", liveStatus("hi", "Just Chatting"), nil)
	env.sched.pollOnce(ctx)
	assert.Equal(t, []events.EventType{EntityLive, EntityLive}, env.alerts.types())

	persisted, err = env.store.GetEntities(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, persisted[0].LastError, "recovery clears the recorded error")
}

func TestNoCheckerRecordsError(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.TikTok, "alice")
	ctx := context.Background()

	env.sched.pollOnce(ctx)
	assert.Empty(t, env.alerts.types())

	persisted, err := env.store.GetEntities(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, platform.ErrNoChecker.Error(), persisted[0].LastError)
}

func TestPlatformDisabledByGroupSkipsCheck(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	require.NoError(t, env.store.UpsertGroupSettings(context.Background(), "guild-1", entity.GroupSettings{
		EnabledPlatforms: []types.Platform{types.Kick},
	}))

	env.checker.set("alice", liveStatus("hi", "Just Chatting"), nil)
	env.sched.pollOnce(context.Background())

	assert.Zero(t, env.checker.calls, "disabled platform is never queried")
	assert.Empty(t, env.alerts.types())
}

func TestOneWritePerGroupPerPass(t *testing.T) {
	env := newTestEnv(t)
	addEntity(t, env, "guild-1", types.Twitch, "alice")
	addEntity(t, env, "guild-1", types.Twitch, "bob")
	ctx := context.Background()

	env.checker.set("alice", liveStatus("a", "X"), nil)
	env.checker.set("bob", liveStatus("b", "Y"), nil)
	env.sched.pollOnce(ctx)

	assert.Equal(t, 1, env.store.replaceHits)
}

func TestTickCoalescing(t *testing.T) {
	env := newTestEnv(t)

	require.True(t, env.sched.tryBeginTick())
	assert.False(t, env.sched.tryBeginTick(), "overlapping tick is skipped")
	env.sched.endTick()
	assert.True(t, env.sched.tryBeginTick())
}

func TestStartIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.sched.Start())
	require.NoError(t, env.sched.Start())
	env.sched.Close()
	env.sched.Close()
}
