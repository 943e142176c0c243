package reconciler

import (
	"context"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/pkg/metrics"
	"github.com/pkg/errors"
)

// Reconciler brings one target's records in line with the discovered address.
type Reconciler struct {
	provider ddns.IProvider
	source   ddns.IAddressSource
	log      logger.ILogger
	now      func() time.Time
	sleep    Sleeper
}

type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(sleep Sleeper) Option {
	return func(r *Reconciler) {
		r.sleep = sleep
	}
}

func WithLogger(log logger.ILogger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

func New(provider ddns.IProvider, source ddns.IAddressSource, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider: provider,
		source:   source,
		log:      logger.Default(),
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles every family of target. Families are independent: a
// failure of one does not prevent the other.
func (r *Reconciler) Run(ctx context.Context, target *config.Target) ddns.Report {
	report := ddns.Report{TargetID: target.ID(), Started: r.now()}
	for _, family := range target.Families() {
		report.Outcomes = append(report.Outcomes, r.RunFamily(ctx, target, family))
	}
	report.Finished = r.now()
	return report
}

// RunFamily runs one reconciliation cycle for target and family.
//
// Provider and source calls run on a context detached from ctx and bounded
// by the target's timeout, so shutdown never aborts a write halfway. Backoff
// waits observe ctx and end the cycle as Failed with the last cause.
func (r *Reconciler) RunFamily(ctx context.Context, target *config.Target, family consts.Family) (outcome ddns.Outcome) {
	id := target.ID()
	stage := consts.StageDiscovery
	attempts := 1
	log := r.log.WithFields(map[string]any{"target": id, "family": string(family)})

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultCycleTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	waitCtx, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()

	defer func() {
		if p := recover(); p != nil {
			outcome = ddns.Failed(id, family, stage, errors.Errorf("panic: %v", p), attempts, r.now())
		}
	}()

	addr, err := r.source.Discover(callCtx, family)
	if err != nil {
		return ddns.Failed(id, family, stage, err, attempts, r.now())
	}
	log.Debugf("discovered %s via %s", addr, r.source)

	policy := config.RetryConfig{
		MaxAttempts: consts.DefaultMaxAttempts,
		BaseDelay:   consts.DefaultBaseDelay,
		MaxDelay:    consts.DefaultMaxDelay,
	}
	if target.Retry != nil {
		policy = *target.Retry
	}

	stage = consts.StageFetch
	var current ddns.RecordState
	fetch := r.retrier(policy, log, stage)
	attempts, err = fetch.Do(waitCtx, func() error {
		var callErr error
		current, callErr = r.provider.Fetch(callCtx, target, family)
		r.observe("fetch", callErr)
		return callErr
	})
	if err != nil {
		if !target.CreateMissing || !errors.Is(err, ddns.ErrNotFound) {
			return ddns.Failed(id, family, stage, err, attempts, r.now())
		}
		log.Infof("no %s record published yet, creating it", family.RecordType())
		current = ddns.RecordState{}
	}

	if current.Exists() && current.Address.Equal(addr) {
		return ddns.Unchanged(id, family, current.Address, r.now())
	}

	stage = consts.StageUpsert
	upsert := r.retrier(policy, log, stage)
	attempts, err = upsert.Do(waitCtx, func() error {
		callErr := r.provider.Upsert(callCtx, target, addr)
		r.observe("upsert", callErr)
		return callErr
	})
	if err != nil {
		return ddns.Failed(id, family, stage, err, attempts, r.now())
	}
	return ddns.Updated(id, family, current.Address, addr, r.now())
}

func (r *Reconciler) retrier(policy config.RetryConfig, log logger.ILogger, stage consts.Stage) *Retrier {
	rt := NewRetrier(policy, r.now, r.sleep)
	rt.onBackoff = func(attempt int, wait time.Duration, err error) {
		metrics.Retries.WithLabelValues(r.provider.String(), string(stage)).Inc()
		log.Warnf("%s attempt %d failed, retrying in %s: %v", stage, attempt, wait, err)
	}
	return rt
}

func (r *Reconciler) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = ddns.ErrorKind(err)
	}
	metrics.ProviderRequests.WithLabelValues(r.provider.String(), op, result).Inc()
}
