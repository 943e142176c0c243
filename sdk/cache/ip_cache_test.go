package cache

import (
	"net/netip"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func addr(s string) ddns.Address {
	return ddns.NewAddress(netip.MustParseAddr(s), t0)
}

func report(at time.Time, outcomes ...ddns.Outcome) ddns.Report {
	return ddns.Report{TargetID: "home", Outcomes: outcomes, Started: at, Finished: at}
}

func TestRecord(t *testing.T) {
	c := New()
	_, ok := c.Get("home")
	assert.False(t, ok)

	s, prev := c.Record(report(t0,
		ddns.Updated("home", consts.IPv4, ddns.Address{}, addr("203.0.113.5"), t0),
		ddns.Unchanged("home", consts.IPv6, addr("2001:db8::1"), t0),
	))
	assert.Equal(t, 0, prev)
	assert.Equal(t, "203.0.113.5", s.GetAddr(consts.IPv4))
	assert.Equal(t, "2001:db8::1", s.GetAddr(consts.IPv6))
	assert.Equal(t, consts.UpdatedNothing, s.LastOutcome)
	assert.Equal(t, t0, s.LastSuccess)

	fail := ddns.Failed("home", consts.IPv4, consts.StageFetch, errors.New("boom"), 5, t0)
	for i := 1; i <= 3; i++ {
		s, _ = c.Record(report(t0.Add(time.Duration(i)*time.Minute), fail))
	}
	assert.Equal(t, 3, s.GetFailedTimes())
	assert.Equal(t, consts.UpdatedFailed, s.LastOutcome)
	assert.Equal(t, "203.0.113.5", s.GetAddr(consts.IPv4), "failures keep the last known address")
	assert.Equal(t, t0, s.LastSuccess)

	later := t0.Add(10 * time.Minute)
	s, prev = c.Record(report(later, ddns.Unchanged("home", consts.IPv4, addr("203.0.113.5"), later)))
	assert.Equal(t, 3, prev)
	assert.Equal(t, 0, s.GetFailedTimes())
	assert.Equal(t, later, s.LastSuccess)
}

func TestRecordPartialFailure(t *testing.T) {
	c := New()
	s, _ := c.Record(report(t0,
		ddns.Failed("home", consts.IPv4, consts.StageDiscovery, errors.New("no route"), 0, t0),
		ddns.Updated("home", consts.IPv6, ddns.Address{}, addr("2001:db8::2"), t0),
	))
	assert.Equal(t, 1, s.GetFailedTimes())
	assert.Equal(t, consts.UpdatedFailed, s.LastOutcome)
	assert.Equal(t, "2001:db8::2", s.GetAddr(consts.IPv6))
	assert.True(t, s.LastSuccess.IsZero())
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	c.Record(report(t0, ddns.Updated("home", consts.IPv4, ddns.Address{}, addr("203.0.113.5"), t0)))
	c.Record(ddns.Report{TargetID: "office", Finished: t0})

	s, ok := c.Get("home")
	require.True(t, ok)
	s.Addrs[consts.IPv4] = addr("198.51.100.1")

	again, _ := c.Get("home")
	assert.Equal(t, "203.0.113.5", again.GetAddr(consts.IPv4))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "home", list[0].TargetID)
	assert.Equal(t, "office", list[1].TargetID)
}
