package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// parser accepts standard 5 field specs, an optional leading seconds field
// and descriptors such as @hourly or @every 5m.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return parser.Parse(spec)
}

// Job runs one reconciliation invocation for target.
type Job func(ctx context.Context, target *config.Target)

// Entry is the schedule state of one target.
type Entry struct {
	Target   *config.Target
	Schedule cron.Schedule
	// Next is the next fire time; only the scheduler loop writes it.
	Next     time.Time
	inFlight atomic.Bool
}

// InFlight reports whether a cycle of the entry's target is running.
func (e *Entry) InFlight() bool {
	return e.inFlight.Load()
}

type Scheduler struct {
	entries    []*Entry
	job        Job
	log        logger.ILogger
	resolution time.Duration
	wg         sync.WaitGroup
}

type Option func(*Scheduler)

func WithLogger(log logger.ILogger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithResolution sets how often Run evaluates due entries.
func WithResolution(d time.Duration) Option {
	return func(s *Scheduler) {
		s.resolution = d
	}
}

// New schedules targets from now. Targets whose schedule does not parse are
// left out and reported as ConfigErrors; the others are scheduled.
func New(targets []*config.Target, job Job, now time.Time, opts ...Option) (*Scheduler, []error) {
	s := &Scheduler{
		job:        job,
		log:        logger.Default(),
		resolution: consts.SchedulerResolution,
	}
	for _, opt := range opts {
		opt(s)
	}

	var errs []error
	for _, t := range targets {
		sched, err := ParseSchedule(t.Schedule)
		if err != nil {
			errs = append(errs, config.NewConfigError(config.UnparsableSchedule, t.ID(), "schedule %q: %v", t.Schedule, err))
			continue
		}
		next := sched.Next(now)
		if next.IsZero() {
			errs = append(errs, config.NewConfigError(config.UnparsableSchedule, t.ID(), "schedule %q never fires", t.Schedule))
			continue
		}
		s.entries = append(s.entries, &Entry{Target: t, Schedule: sched, Next: next})
	}
	return s, errs
}

// Entries returns the scheduled entries.
func (s *Scheduler) Entries() []*Entry {
	return s.entries
}

// Tick starts every entry due at now that has no cycle in flight, and
// returns the entries started. Every due entry gets its next fire time
// recomputed from now, whether it started or was skipped. An entry with no
// next fire time never starts.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []*Entry {
	var started []*Entry
	for _, e := range s.entries {
		if e.Next.IsZero() || e.Next.After(now) {
			continue
		}
		e.Next = e.Schedule.Next(now)
		if !e.inFlight.CompareAndSwap(false, true) {
			metrics.SkippedRuns.WithLabelValues(e.Target.ID()).Inc()
			s.log.Warnf("%s: previous cycle still running, skipping this run, next at %s", e.Target.ID(), e.Next.Format(time.RFC3339))
			continue
		}
		started = append(started, e)
		s.wg.Add(1)
		go s.run(ctx, e)
	}
	return started
}

func (s *Scheduler) run(ctx context.Context, e *Entry) {
	defer s.wg.Done()
	defer e.inFlight.Store(false)
	defer func() {
		if p := recover(); p != nil {
			s.log.Errorf("%s: cycle panicked: %v", e.Target.ID(), p)
		}
	}()
	s.job(ctx, e.Target)
}

// Run drives Tick until ctx is done, then waits for cycles in flight.
// ready is called once the loop is running, if not nil.
func (s *Scheduler) Run(ctx context.Context, ready func()) {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	if ready != nil {
		ready()
	}
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Wait blocks until every started cycle has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
