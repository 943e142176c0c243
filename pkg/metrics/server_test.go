package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/config"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

func TestHandler(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Listen: "127.0.0.1:0"}, sdklogger.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetReady(true)
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	Outcomes.WithLabelValues("handler-test", "ipv4", "Updated").Inc()
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `ddnsd_reconcile_outcomes_total{family="ipv4",outcome="Updated",target="handler-test"} 1`)
}

func TestStartStop(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Listen: "127.0.0.1:0", Path: "/m"}, sdklogger.Nop())
	assert.Equal(t, "127.0.0.1:0/m", s.Hash())

	done := make(chan error, 1)
	go func() {
		done <- s.Start()
	}()
	require.Eventually(t, func() bool { return s.Addr() != nil }, testTimeout, testTick)

	resp, err := http.Get("http://" + s.Addr().String() + "/m")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	assert.NoError(t, <-done)
}

func TestStopBeforeStart(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Listen: "127.0.0.1:0"}, sdklogger.Nop())
	require.NoError(t, s.Stop())

	done := make(chan error, 1)
	go func() {
		done <- s.Start()
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Start kept serving after Stop")
	}
	assert.Nil(t, s.Addr())
}
