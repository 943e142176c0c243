package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// Event describes one reconciliation outcome to the outside world.
type Event struct {
	ID        string                  `json:"id"`
	TargetID  string                  `json:"target"`
	Domain    string                  `json:"domain"`
	Family    consts.Family           `json:"family"`
	Outcome   consts.UpdateStatusType `json:"outcome"`
	Timestamp time.Time               `json:"timestamp"`
	Detail    string                  `json:"detail"`
	Old       string                  `json:"old,omitempty"`
	New       string                  `json:"new,omitempty"`
	Stage     consts.Stage            `json:"stage,omitempty"`
	Attempts  int                     `json:"attempts,omitempty"`
	// Kind names the error kind of a Failed outcome.
	Kind string `json:"kind,omitempty"`
}

// NewEvent converts an outcome of target into an event with a fresh ID.
func NewEvent(target *config.Target, o ddns.Outcome) Event {
	ev := Event{
		ID:        uuid.NewString(),
		TargetID:  o.TargetID,
		Domain:    target.Host().String(),
		Family:    o.Family,
		Outcome:   o.Status,
		Timestamp: o.At,
		Detail:    o.String(),
		Old:       o.Old.String(),
		New:       o.New.String(),
	}
	if o.IsFailed() {
		ev.Stage = o.Stage
		ev.Attempts = o.Attempts
		ev.Kind = ddns.ErrorKind(o.Cause)
	}
	return ev
}

// ISink delivers events of the targets that ask for them.
type ISink interface {
	String() string
	// Wants reports whether target is configured to receive ev through this sink.
	Wants(target *config.Target, ev Event) bool
	Send(ctx context.Context, target *config.Target, ev Event) error
}

// ErrQueueFull is returned when an event is dropped because delivery is behind.
var ErrQueueFull = errors.New("notification queue is full")
