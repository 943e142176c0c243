package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/notify"
	"github.com/jxo-me/ddnsd/pkg/metrics"
)

const sendTimeout = 30 * time.Second

type delivery struct {
	target *config.Target
	event  notify.Event
}

// Dispatcher logs every event and hands it to the sinks that want it on a
// background worker. Emit never blocks: when the queue is full the event is
// dropped with a warning.
type Dispatcher struct {
	sinks []notify.ISink
	log   logger.ILogger
	queue chan delivery

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(log logger.ILogger, size int, sinks ...notify.ISink) *Dispatcher {
	if size <= 0 {
		size = consts.NotifyQueueSize
	}
	d := &Dispatcher{
		sinks: sinks,
		log:   log,
		queue: make(chan delivery, size),
		done:  make(chan struct{}),
	}
	go d.worker()
	return d
}

// Emit logs ev at the level of its outcome and queues it for the sinks.
func (d *Dispatcher) Emit(target *config.Target, ev notify.Event) error {
	d.logEvent(target, ev)
	if !d.wanted(target, ev) {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- delivery{target: target, event: ev}:
		return nil
	default:
		metrics.NotificationsDropped.Inc()
		d.log.Warnf("notification queue full, dropping event %s for %s", ev.ID, ev.TargetID)
		return notify.ErrQueueFull
	}
}

// Close stops accepting events and waits until queued ones are delivered or
// ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) wanted(target *config.Target, ev notify.Event) bool {
	for _, s := range d.sinks {
		if s.Wants(target, ev) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for item := range d.queue {
		for _, s := range d.sinks {
			if !s.Wants(item.target, item.event) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			err := s.Send(ctx, item.target, item.event)
			cancel()
			if err != nil {
				metrics.Notifications.WithLabelValues(s.String(), "error").Inc()
				d.log.Errorf("%s notification for %s failed: %v", s, item.event.TargetID, err)
				continue
			}
			metrics.Notifications.WithLabelValues(s.String(), "ok").Inc()
			d.log.Debugf("%s notification for %s sent", s, item.event.TargetID)
		}
	}
}

func (d *Dispatcher) logEvent(target *config.Target, ev notify.Event) {
	log := d.log.WithFields(map[string]any{
		"target":  ev.TargetID,
		"family":  string(ev.Family),
		"outcome": string(ev.Outcome),
		"event":   ev.ID,
	})
	switch ev.Outcome {
	case consts.UpdatedFailed:
		log.Errorf("%s", ev.Detail)
	case consts.UpdatedSuccess:
		log.Infof("%s", ev.Detail)
	default:
		log.Log(target.UnchangedLevel(), ev.Detail)
	}
}
