package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
)

// Status 目标最近一次的状态
type Status struct {
	TargetID string
	// Addrs holds the last address seen per family, published or discovered.
	Addrs       map[consts.Family]ddns.Address
	LastOutcome consts.UpdateStatusType
	LastRun     time.Time
	LastSuccess time.Time
	// TimesFailed counts consecutive reports with at least one Failed outcome.
	TimesFailed int
}

func (s *Status) GetAddr(family consts.Family) string {
	return s.Addrs[family].String()
}

func (s *Status) GetFailedTimes() int {
	return s.TimesFailed
}

// Cache keeps the last known status of every target.
type Cache struct {
	mu      sync.RWMutex
	targets map[string]*Status
}

func New() *Cache {
	return &Cache{targets: make(map[string]*Status)}
}

// Record folds report into the status of its target and returns the updated
// status together with the failure count that preceded it.
func (c *Cache) Record(report ddns.Report) (Status, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.targets[report.TargetID]
	if !ok {
		s = &Status{TargetID: report.TargetID, Addrs: make(map[consts.Family]ddns.Address)}
		c.targets[report.TargetID] = s
	}
	previous := s.TimesFailed
	s.LastRun = report.Finished

	failed := false
	for _, o := range report.Outcomes {
		s.LastOutcome = o.Status
		if o.IsFailed() {
			failed = true
			continue
		}
		if o.New.IsValid() {
			s.Addrs[o.Family] = o.New
		}
	}
	if failed {
		s.LastOutcome = consts.UpdatedFailed
		s.TimesFailed++
	} else if len(report.Outcomes) > 0 {
		s.TimesFailed = 0
		s.LastSuccess = report.Finished
	}
	return s.copy(), previous
}

// Get returns a copy of the status of targetID.
func (c *Cache) Get(targetID string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.targets[targetID]
	if !ok {
		return Status{}, false
	}
	return s.copy(), true
}

// List returns the statuses of all targets ordered by target id.
func (c *Cache) List() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]Status, 0, len(c.targets))
	for _, s := range c.targets {
		list = append(list, s.copy())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TargetID < list[j].TargetID })
	return list
}

func (s *Status) copy() Status {
	out := *s
	out.Addrs = make(map[consts.Family]ddns.Address, len(s.Addrs))
	for k, v := range s.Addrs {
		out.Addrs[k] = v
	}
	return out
}
