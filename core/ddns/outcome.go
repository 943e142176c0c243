package ddns

import (
	"fmt"
	"time"

	"github.com/jxo-me/ddnsd/consts"
)

// Outcome is the result of one reconciliation sub-cycle for a target and family.
type Outcome struct {
	TargetID string
	Family   consts.Family
	Status   consts.UpdateStatusType
	// Old is the published address before the cycle, New the discovered one.
	Old Address
	New Address
	// Stage, Cause and Attempts are set for Failed outcomes only.
	Stage    consts.Stage
	Cause    error
	Attempts int
	At       time.Time
}

func Unchanged(targetID string, family consts.Family, addr Address, at time.Time) Outcome {
	return Outcome{
		TargetID: targetID,
		Family:   family,
		Status:   consts.UpdatedNothing,
		Old:      addr,
		New:      addr,
		At:       at,
	}
}

func Updated(targetID string, family consts.Family, from, to Address, at time.Time) Outcome {
	return Outcome{
		TargetID: targetID,
		Family:   family,
		Status:   consts.UpdatedSuccess,
		Old:      from,
		New:      to,
		At:       at,
	}
}

func Failed(targetID string, family consts.Family, stage consts.Stage, cause error, attempts int, at time.Time) Outcome {
	return Outcome{
		TargetID: targetID,
		Family:   family,
		Status:   consts.UpdatedFailed,
		Stage:    stage,
		Cause:    cause,
		Attempts: attempts,
		At:       at,
	}
}

func (o Outcome) IsFailed() bool {
	return o.Status == consts.UpdatedFailed
}

func (o Outcome) String() string {
	switch o.Status {
	case consts.UpdatedNothing:
		return fmt.Sprintf("%s/%s unchanged (%s)", o.TargetID, o.Family, o.New)
	case consts.UpdatedSuccess:
		old := o.Old.String()
		if old == "" {
			old = "<none>"
		}
		return fmt.Sprintf("%s/%s updated %s -> %s", o.TargetID, o.Family, old, o.New)
	default:
		return fmt.Sprintf("%s/%s failed at %s after %d attempt(s): %v", o.TargetID, o.Family, o.Stage, o.Attempts, o.Cause)
	}
}

// Report collects the outcomes of one invocation for a target.
type Report struct {
	TargetID string
	Outcomes []Outcome
	Started  time.Time
	Finished time.Time
}

func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.IsFailed() {
			return true
		}
	}
	return false
}

func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
