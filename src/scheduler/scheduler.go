// Package scheduler drives the poll loop: it walks every group's
// tracked entities on a fixed interval, runs platform checks under a
// bounded worker pool, feeds the results through change detection and
// publishes transitions as events.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamalert-go/streamalert-go/src/cache"
	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/detector"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/log"
	"github.com/streamalert-go/streamalert-go/src/metrics"
	"github.com/streamalert-go/streamalert-go/src/pkg/events"
	"github.com/streamalert-go/streamalert-go/src/pkg/ratelimit"
	"github.com/streamalert-go/streamalert-go/src/pkg/sentry"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/store"
	"github.com/streamalert-go/streamalert-go/src/types"
)

// Event types published on transitions. The event object is an *Alert.
const (
	EntityLive    events.EventType = "EntityLive"
	EntityChanged events.EventType = "EntityChanged"
	EntityOffline events.EventType = "EntityOffline"
)

// Alert carries one detected transition to event listeners.
type Alert struct {
	GroupID    string
	Group      *entity.GroupSettings
	Entity     *entity.TrackedEntity
	Transition detector.Transition
	Status     platform.Status
}

const (
	begin uint32 = iota
	pending
	running
	stopped
)

type Scheduler interface {
	Start() error
	Close()
}

type scheduler struct {
	store   store.Store
	cache   *cache.Cache
	ed      events.Dispatcher
	limiter *ratelimit.Limiter
	logger  *logrus.Entry

	// lookup is platform.Get; replaced in tests.
	lookup func(types.Platform) (platform.Checker, bool)

	state   uint32
	ticking uint32
	stop    chan struct{}
	wg      sync.WaitGroup

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(ctx context.Context, st store.Store, c *cache.Cache, ed events.Dispatcher, limiter *ratelimit.Limiter) Scheduler {
	runCtx, cancel := context.WithCancel(ctx)
	return &scheduler{
		store:     st,
		cache:     c,
		ed:        ed,
		limiter:   limiter,
		logger:    log.GetLogger().WithField("component", "scheduler"),
		lookup:    platform.Get,
		state:     begin,
		stop:      make(chan struct{}),
		runCtx:    runCtx,
		runCancel: cancel,
	}
}

func (s *scheduler) Start() error {
	if !atomic.CompareAndSwapUint32(&s.state, begin, pending) {
		return nil
	}
	defer atomic.CompareAndSwapUint32(&s.state, pending, running)

	cfg := configs.GetCurrentConfig()
	for name, secs := range cfg.PlatformMinIntervals {
		s.limiter.SetPlatformLimit(types.ParsePlatform(name), time.Duration(secs)*time.Second)
	}

	s.wg.Add(1)
	sentry.Go(func() {
		defer s.wg.Done()
		s.run(cfg)
	})
	return nil
}

func (s *scheduler) Close() {
	if !atomic.CompareAndSwapUint32(&s.state, running, stopped) {
		return
	}
	s.runCancel()
	close(s.stop)
	s.wg.Wait()
}

func (s *scheduler) run(cfg *configs.Config) {
	delay := time.NewTimer(time.Duration(cfg.InitialDelay) * time.Second)
	select {
	case <-s.stop:
		delay.Stop()
		return
	case <-delay.C:
	}
	s.tick()

	ticker := time.NewTicker(time.Duration(cfg.Interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *scheduler) tryBeginTick() bool {
	return atomic.CompareAndSwapUint32(&s.ticking, 0, 1)
}

func (s *scheduler) endTick() {
	atomic.StoreUint32(&s.ticking, 0)
}

// tick runs one full poll pass. Overlapping ticks coalesce: if the
// previous pass is still running the new one is skipped.
func (s *scheduler) tick() {
	if !s.tryBeginTick() {
		s.logger.Warn("previous poll pass still running, skipping tick")
		return
	}
	defer s.endTick()

	started := time.Now()
	live := s.pollOnce(s.runCtx)
	if s.runCtx.Err() != nil {
		return
	}
	metrics.TicksTotal.Inc()
	metrics.LiveEntities.Set(float64(live))
	s.logger.WithFields(logrus.Fields{
		"duration": time.Since(started).Round(time.Millisecond).String(),
		"live":     live,
	}).Debug("poll pass finished")
}

type checkResult struct {
	entity *entity.TrackedEntity
	status platform.Status
	err    error
}

// pollOnce checks every entity of every group and returns the number
// observed live. Checks run concurrently up to the configured bound;
// detection and state application run sequentially here so the store
// and cache see a consistent ordering.
func (s *scheduler) pollOnce(ctx context.Context) int {
	cfg := configs.GetCurrentConfig()

	groupIDs, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list groups")
		return 0
	}

	sem := make(chan struct{}, cfg.Concurrency)
	liveTotal := 0
	tracked := make(map[cache.Key]struct{})
	complete := true

	for _, groupID := range groupIDs {
		if ctx.Err() != nil {
			return liveTotal
		}
		live, ok := s.pollGroup(ctx, cfg, groupID, sem, tracked)
		liveTotal += live
		complete = complete && ok
	}

	// Entries for entities removed since the last pass would otherwise
	// survive and mute the next went-live edge of a re-added entity.
	// Only reconcile from a full view of the tracked set.
	if complete && ctx.Err() == nil {
		s.cache.Retain(tracked)
	}
	return liveTotal
}

func (s *scheduler) pollGroup(ctx context.Context, cfg *configs.Config, groupID string, sem chan struct{}, tracked map[cache.Key]struct{}) (int, bool) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		s.logger.WithError(err).WithField("group_id", groupID).Error("failed to load group")
		return 0, false
	}
	for _, e := range group.Entities {
		tracked[cache.Key{Group: groupID, ID: e.ID}] = struct{}{}
	}

	results := make([]*checkResult, len(group.Entities))
	var wg sync.WaitGroup
	for i, e := range group.Entities {
		if !group.Settings.PlatformEnabled(e.Platform) {
			metrics.ChecksTotal.WithLabelValues(e.Platform.String(), metrics.ResultSkipped).Inc()
			continue
		}

		wg.Add(1)
		i, e := i, e // per-iteration copies; go directive predates Go 1.22 loopvar semantics
		sentry.Go(func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			results[i] = s.check(ctx, cfg, e)
		})
	}
	wg.Wait()

	if ctx.Err() != nil {
		return 0, false
	}

	live := 0
	changed := false
	for _, r := range results {
		if r == nil {
			continue
		}
		s.apply(groupID, &group.Settings, r, cfg.DetectionPolicy)
		changed = true
		if r.entity.IsLive {
			live++
		}
	}

	if changed {
		if err := s.store.ReplaceAll(ctx, groupID, group.Entities); err != nil {
			metrics.StoreWriteFailures.Inc()
			s.logger.WithError(err).WithField("group_id", groupID).Error("failed to persist poll results")
		}
	}
	return live, true
}

// check runs one platform check under the per-call timeout. A failure
// is returned as a degraded result; it never aborts the pass.
func (s *scheduler) check(ctx context.Context, cfg *configs.Config, e *entity.TrackedEntity) *checkResult {
	checker, ok := s.lookup(e.Platform)
	if !ok {
		metrics.ChecksTotal.WithLabelValues(e.Platform.String(), metrics.ResultError).Inc()
		return &checkResult{entity: e, err: platform.ErrNoChecker}
	}

	if !s.limiter.Wait(ctx, e.Platform) {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.CheckTimeout)*time.Second)
	defer cancel()

	st, err := checker.Check(checkCtx, e)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues(e.Platform.String(), metrics.ResultError).Inc()
	} else {
		metrics.ChecksTotal.WithLabelValues(e.Platform.String(), metrics.ResultOK).Inc()
	}
	return &checkResult{entity: e, status: st, err: err}
}

// apply folds one check result into entity state, the notification
// cache and the event stream. Failed checks only record the error:
// the remembered live state stays untouched so a flaky upstream cannot
// fire spurious offline or live transitions.
func (s *scheduler) apply(groupID string, settings *entity.GroupSettings, r *checkResult, policy configs.DetectionPolicy) {
	e := r.entity

	if r.err != nil {
		e.MarkFailed(r.err.Error())
		s.logger.WithError(r.err).WithFields(logrus.Fields{
			"group_id": groupID,
			"entity":   string(e.ID),
		}).Warn("check failed, keeping last known state")
		return
	}

	tr := detector.Detect(policy, s.cache.Get(groupID, e.ID), r.status)
	now := time.Now()

	switch tr {
	case detector.WentLive, detector.Changed:
		snap := r.status.Snapshot
		e.MarkLive(now, &snap)
		s.cache.Put(groupID, e.ID, detector.Remember(r.status))
	case detector.WentOffline:
		snap := r.status.Snapshot
		e.MarkOffline(&snap)
		s.cache.Evict(groupID, e.ID)
	case detector.None:
		snap := r.status.Snapshot
		if r.status.IsLive {
			e.MarkLive(now, &snap)
		} else {
			e.MarkOffline(&snap)
		}
		return
	}

	metrics.TransitionsTotal.WithLabelValues(tr.String()).Inc()
	s.ed.DispatchEvent(events.NewEvent(eventTypeFor(tr), &Alert{
		GroupID:    groupID,
		Group:      settings,
		Entity:     e,
		Transition: tr,
		Status:     r.status,
	}))
}

func eventTypeFor(tr detector.Transition) events.EventType {
	switch tr {
	case detector.WentLive:
		return EntityLive
	case detector.Changed:
		return EntityChanged
	default:
		return EntityOffline
	}
}
