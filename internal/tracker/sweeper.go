package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/metrics"
	"github.com/aatumaykin/doorman/internal/store"
	"github.com/robfig/cron/v3"
)

// Expeller drives one expulsion attempt.
type Expeller interface {
	Expel(ctx context.Context, m store.TrackedMember, dwell time.Duration) error
}

// SweeperConfig configures the expiry sweeper.
type SweeperConfig struct {
	Interval  time.Duration // sweep interval, default 120s
	TimeLimit time.Duration // maximum dwell before expulsion, default 120s
}

// Sweeper periodically scans the store and expels overdue members. Sweeps
// are serialized with a non-blocking guard: a trigger that arrives while a
// sweep is running is skipped rather than queued.
type Sweeper struct {
	store    Store
	executor Expeller
	state    *State
	metrics  *metrics.TrackerMetrics
	logger   *logger.Logger

	interval  time.Duration
	timeLimit time.Duration

	cron    *cron.Cron
	entryID cron.EntryID
	sweepMu sync.Mutex

	now func() time.Time
}

// NewSweeper creates a sweeper. Zero config fields get the 120s defaults.
func NewSweeper(cfg SweeperConfig, st Store, executor Expeller, state *State, m *metrics.TrackerMetrics, log *logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 120 * time.Second
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 120 * time.Second
	}

	return &Sweeper{
		store:     st,
		executor:  executor,
		state:     state,
		metrics:   m,
		logger:    log,
		interval:  cfg.Interval,
		timeLimit: cfg.TimeLimit,
		now:       time.Now,
	}
}

// Start schedules the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	id, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id

	s.cron.Start()
	s.state.SetNextSweep(s.nextScheduled())

	s.logger.Info("expiry sweeper started",
		logger.Field{Key: "interval", Value: s.interval.String()},
		logger.Field{Key: "time_limit", Value: s.timeLimit.String()})

	return nil
}

// Stop halts future cycles and waits for an in-flight cycle to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.Info("expiry sweeper stopped")
}

// RunOnce runs a single sweep cycle unless one is already in progress, in
// which case it reports false. Overlapping sweeps would be harmless
// (expulsion is idempotent) but would duplicate platform calls.
func (s *Sweeper) RunOnce(ctx context.Context) bool {
	if !s.sweepMu.TryLock() {
		s.logger.Debug("sweep already running, skipping trigger")
		return false
	}
	defer s.sweepMu.Unlock()

	s.sweep(ctx)
	return true
}

// nextScheduled returns the cron entry's real next fire time, so a manual
// trigger does not drift the advisory marker away from the schedule. Before
// Start (or after Stop) it falls back to now+interval.
func (s *Sweeper) nextScheduled() time.Time {
	if s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			return next.UTC()
		}
	}
	return s.now().UTC().Add(s.interval)
}

func (s *Sweeper) sweep(ctx context.Context) {
	started := s.now()

	members, err := s.store.ListMembers()
	if err != nil {
		// Store failure aborts this cycle; the next scheduled cycle
		// starts fresh and the status surface keeps last-known-good
		// counters.
		s.logger.Error("sweep aborted: failed to list members", err)
		s.state.RecordError("sweeper", err)
		return
	}

	now := s.now().UTC()

	s.logger.Debug("sweeping tracked members",
		logger.Field{Key: "count", Value: len(members)})

	for _, m := range members {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep interrupted by shutdown")
			return
		default:
		}

		// System clock changes may produce negative or inflated dwell;
		// accepted as a known limitation, never corrected.
		dwell := now.Sub(m.JoinedAt)
		if dwell < s.timeLimit {
			continue
		}

		// Sequential on purpose: parallel expulsion would hammer the
		// platform's rate limits. Per-row failures never abort the rest
		// of the cycle.
		_ = s.executor.Expel(ctx, m, dwell)
	}

	s.state.RecordSweep(now, s.nextScheduled(), len(members))
	s.metrics.SetTrackedMembers(len(members))
	s.metrics.RecordSweep(s.now().Sub(started))
}
