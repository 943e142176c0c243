package service

import (
	"context"
	"sync"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	iNotify "github.com/jxo-me/ddnsd/core/notify"
	iService "github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/pkg/metrics"
	"github.com/jxo-me/ddnsd/sdk/cache"
	provider "github.com/jxo-me/ddnsd/sdk/ddns"
	"github.com/jxo-me/ddnsd/sdk/notify"
	"github.com/jxo-me/ddnsd/sdk/reconciler"
	"github.com/jxo-me/ddnsd/sdk/scheduler"
	"github.com/jxo-me/ddnsd/sdk/source"
	"golang.org/x/sync/errgroup"
)

const (
	Code = "ddns"
	// drainTimeout bounds the delivery of queued notifications on stop.
	drainTimeout = 30 * time.Second
)

var _ iService.IService = (*DDNSService)(nil)

// Builder creates the provider and address source of a target.
type Builder func(target *config.Target) (ddns.IProvider, ddns.IAddressSource, error)

// DefaultBuilder builds the provider and source named in the target's config.
func DefaultBuilder(target *config.Target) (ddns.IProvider, ddns.IAddressSource, error) {
	p, err := provider.NewProvider(target)
	if err != nil {
		return nil, nil, err
	}
	s, err := source.NewSource(target)
	if err != nil {
		return nil, nil, err
	}
	return p, s, nil
}

type Option func(*DDNSService)

// WithReady registers a hook called once the scheduler loop is running.
func WithReady(ready func()) Option {
	return func(s *DDNSService) {
		s.ready = ready
	}
}

func WithBuilder(b Builder) Option {
	return func(s *DDNSService) {
		s.build = b
	}
}

// WithReconcilerOptions passes options to every target's reconciler.
func WithReconcilerOptions(opts ...reconciler.Option) Option {
	return func(s *DDNSService) {
		s.reconcilerOpts = append(s.reconcilerOpts, opts...)
	}
}

// WithSinks replaces the notification sinks built from the config.
func WithSinks(sinks ...iNotify.ISink) Option {
	return func(s *DDNSService) {
		s.sinks = sinks
	}
}

// DDNSService runs every configured target on its schedule.
type DDNSService struct {
	conf           *config.Root
	log            logger.ILogger
	build          Builder
	reconcilerOpts []reconciler.Option
	sinks          []iNotify.ISink
	ready          func()

	targets    []*config.Target
	reconciles map[string]*reconciler.Reconciler
	scheduler  *scheduler.Scheduler
	dispatcher *notify.Dispatcher
	cache      *cache.Cache

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// NewDDNS prepares a service for conf. Targets with configuration errors are
// left out and their errors returned; the remaining targets still run.
func NewDDNS(conf *config.Root, log logger.ILogger, opts ...Option) (*DDNSService, []error) {
	s := &DDNSService{
		conf:       conf,
		log:        log,
		build:      DefaultBuilder,
		reconciles: make(map[string]*reconciler.Reconciler),
		cache:      cache.New(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sinks == nil {
		s.sinks = defaultSinks(conf, log)
	}

	valid, errs := conf.ValidTargets()
	var built []*config.Target
	for _, t := range valid {
		p, src, err := s.build(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rOpts := append([]reconciler.Option{reconciler.WithLogger(log)}, s.reconcilerOpts...)
		s.reconciles[t.ID()] = reconciler.New(p, src, rOpts...)
		built = append(built, t)
	}

	sched, schedErrs := scheduler.New(built, s.job, time.Now(), scheduler.WithLogger(log))
	errs = append(errs, schedErrs...)
	s.scheduler = sched
	for _, e := range sched.Entries() {
		s.targets = append(s.targets, e.Target)
	}
	for _, err := range errs {
		s.log.Errorf("target excluded: %v", err)
	}

	s.dispatcher = notify.NewDispatcher(log, 0, s.sinks...)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, errs
}

func defaultSinks(conf *config.Root, log logger.ILogger) []iNotify.ISink {
	sinks := []iNotify.ISink{notify.NewWebhook(log)}
	if conf.SMTP != nil {
		email, err := notify.NewEmail(conf.SMTP)
		if err != nil {
			log.Errorf("email notifications disabled: %v", err)
		} else {
			sinks = append(sinks, email)
		}
	}
	return sinks
}

func (s *DDNSService) String() string {
	return Code
}

func (s *DDNSService) Hash() string {
	return s.conf.Hash()
}

// Targets returns the targets that are scheduled.
func (s *DDNSService) Targets() []*config.Target {
	return s.targets
}

// Status returns the last known status of every target that has run.
func (s *DDNSService) Status() []cache.Status {
	return s.cache.List()
}

// Start runs the scheduler until Stop is called, then delivers the queued
// notifications.
func (s *DDNSService) Start() error {
	s.mu.Lock()
	if s.stopped || s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.done)

	if len(s.targets) == 0 {
		s.log.Warnf("no target is scheduled, waiting for a configuration change")
	}
	for _, e := range s.scheduler.Entries() {
		s.log.Infof("%s: %s %s via %s, next run at %s", e.Target.ID(), e.Target.Host(), e.Target.Family,
			e.Target.Provider.Kind, e.Next.Format(time.RFC3339))
	}
	s.scheduler.Run(s.ctx, s.ready)

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return s.dispatcher.Close(ctx)
}

// Stop ends the scheduler loop and waits until running cycles finish.
func (s *DDNSService) Stop() error {
	s.mu.Lock()
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if started {
		<-s.done
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return s.dispatcher.Close(ctx)
	}
	return nil
}

// RunOnce reconciles every scheduled target once, concurrently, and returns
// the reports in target order.
func (s *DDNSService) RunOnce(ctx context.Context) []ddns.Report {
	reports := make([]ddns.Report, len(s.targets))
	g, gCtx := errgroup.WithContext(ctx)
	for i, t := range s.targets {
		i, t := i, t
		g.Go(func() error {
			reports[i] = s.reconcile(gCtx, t)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (s *DDNSService) job(ctx context.Context, target *config.Target) {
	s.reconcile(ctx, target)
}

func (s *DDNSService) reconcile(ctx context.Context, target *config.Target) ddns.Report {
	report := s.reconciles[target.ID()].Run(ctx, target)
	s.record(target, report)
	return report
}

func (s *DDNSService) record(target *config.Target, report ddns.Report) {
	id := target.ID()
	metrics.CycleDuration.WithLabelValues(id).Observe(report.Duration().Seconds())
	for _, o := range report.Outcomes {
		metrics.Outcomes.WithLabelValues(id, string(o.Family), string(o.Status)).Inc()
		// a full queue is already logged by the dispatcher
		_ = s.dispatcher.Emit(target, iNotify.NewEvent(target, o))
	}

	status, previous := s.cache.Record(report)
	metrics.ConsecutiveFailures.WithLabelValues(id).Set(float64(status.GetFailedTimes()))
	if !status.LastSuccess.IsZero() {
		metrics.LastSuccess.WithLabelValues(id).Set(float64(status.LastSuccess.Unix()))
	}
	if previous > 0 && status.GetFailedTimes() == 0 {
		s.log.Infof("%s recovered after %d failed run(s)", id, previous)
	}
}
