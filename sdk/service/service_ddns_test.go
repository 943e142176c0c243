package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	iNotify "github.com/jxo-me/ddnsd/core/notify"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/jxo-me/ddnsd/sdk/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGoDaddy serves the records endpoint for a single A record.
type fakeGoDaddy struct {
	mu      sync.Mutex
	current string
	puts    int
}

func (f *fakeGoDaddy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path != "/example.com/records/A/home" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode([]map[string]any{{"data": f.current, "ttl": 600}})
	case http.MethodPut:
		var body []struct {
			Data string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body) != 1 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		f.current = body[0].Data
		f.puts++
	}
}

func (f *fakeGoDaddy) state() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.puts
}

func newConfig(apiURL, echoURL string) *config.Root {
	conf := &config.Root{
		Targets: []config.Target{
			{
				Name:   "home",
				Domain: "example.com",
				Record: "home",
				Provider: config.ProviderConfig{Kind: "godaddy", Credentials: map[string]string{
					"key": "key", "secret": "secret", "endpoint": apiURL,
				}},
				Source:   config.SourceConfig{Kind: "url", Params: map[string]string{"url": echoURL}},
				Schedule: "@every 1h",
			},
			{
				Name:     "unknown-provider",
				Domain:   "example.net",
				Provider: config.ProviderConfig{Kind: "nope"},
				Source:   config.SourceConfig{Kind: "url", Params: map[string]string{"url": echoURL}},
				Schedule: "@every 1h",
			},
			{
				Name:   "bad-schedule",
				Domain: "example.org",
				Provider: config.ProviderConfig{Kind: "godaddy", Credentials: map[string]string{
					"key": "key", "secret": "secret", "endpoint": apiURL,
				}},
				Source:   config.SourceConfig{Kind: "url", Params: map[string]string{"url": echoURL}},
				Schedule: "every now and then",
			},
		},
	}
	conf.Normalize()
	return conf
}

func newEcho(t *testing.T, addr string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(addr))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDDNSExcludesBrokenTargets(t *testing.T) {
	api := httptest.NewServer(&fakeGoDaddy{current: "203.0.113.5"})
	defer api.Close()
	echo := newEcho(t, "203.0.113.9")

	s, errs := NewDDNS(newConfig(api.URL, echo.URL), sdklogger.Nop())
	defer s.Stop()

	require.Len(t, errs, 2)
	assert.True(t, config.IsConfigError(errs[0], config.UnknownProviderKind), "got %v", errs[0])
	assert.True(t, config.IsConfigError(errs[1], config.UnparsableSchedule), "got %v", errs[1])
	require.Len(t, s.Targets(), 1)
	assert.Equal(t, "home", s.Targets()[0].ID())
	assert.Equal(t, Code, s.String())
	assert.NotEmpty(t, s.Hash())
}

func TestRunOnceConverges(t *testing.T) {
	api := &fakeGoDaddy{current: "203.0.113.5"}
	apiSrv := httptest.NewServer(api)
	defer apiSrv.Close()
	echo := newEcho(t, "203.0.113.9")

	var (
		hookMu sync.Mutex
		hooks  []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookMu.Lock()
		defer hookMu.Unlock()
		hooks = append(hooks, r.URL.Query().Get("result"))
	}))
	defer hook.Close()

	conf := newConfig(apiSrv.URL, echo.URL)
	conf.Targets[0].Notify.Webhook = &config.WebhookConfig{URL: hook.URL + "?result=#{result}"}
	s, _ := NewDDNS(conf, sdklogger.Nop())

	reports := s.RunOnce(context.Background())
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Outcomes, 1)
	assert.Equal(t, consts.UpdatedSuccess, reports[0].Outcomes[0].Status, "%s", reports[0].Outcomes[0])
	current, puts := api.state()
	assert.Equal(t, "203.0.113.9", current)
	assert.Equal(t, 1, puts)

	reports = s.RunOnce(context.Background())
	assert.Equal(t, consts.UpdatedNothing, reports[0].Outcomes[0].Status)
	_, puts = api.state()
	assert.Equal(t, 1, puts, "a converged record is not written again")

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "203.0.113.9", status[0].GetAddr(consts.IPv4))
	assert.Equal(t, 0, status[0].GetFailedTimes())

	// Stop before Start delivers what is queued.
	require.NoError(t, s.Stop())
	hookMu.Lock()
	defer hookMu.Unlock()
	assert.Equal(t, []string{"Updated"}, hooks, "unchanged outcomes do not fire the webhook by default")
}

func TestRunOnceReportsFailures(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()
	echo := newEcho(t, "203.0.113.9")

	s, _ := NewDDNS(newConfig(api.URL, echo.URL), sdklogger.Nop())
	defer s.Stop()

	reports := s.RunOnce(context.Background())
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Failed())
	o := reports[0].Outcomes[0]
	assert.Equal(t, consts.StageFetch, o.Stage)
	assert.Equal(t, "AuthError", ddns.ErrorKind(o.Cause))
	assert.Equal(t, 1, o.Attempts)
	assert.Equal(t, 1, s.Status()[0].GetFailedTimes())
}

func TestStartStop(t *testing.T) {
	echo := newEcho(t, "203.0.113.9")
	ready := make(chan struct{})
	s, _ := NewDDNS(newConfig("http://127.0.0.1:1", echo.URL), sdklogger.Nop(), WithReady(func() {
		close(ready)
	}))

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start()
	}()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never became ready")
	}

	require.NoError(t, s.Stop())
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.NoError(t, s.Stop(), "stopping twice is harmless")
	assert.NoError(t, s.Start(), "a stopped service does not restart")
}

type staticSource struct{ addr string }

func (s staticSource) String() string { return "static" }

func (s staticSource) Discover(context.Context, consts.Family) (ddns.Address, error) {
	return ddns.NewAddress(netip.MustParseAddr(s.addr), time.Now()), nil
}

type memProvider struct {
	mu      sync.Mutex
	current ddns.Address
}

func (p *memProvider) String() string { return "memory" }

func (p *memProvider) Fetch(context.Context, *config.Target, consts.Family) (ddns.RecordState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ddns.RecordState{Address: p.current}, nil
}

func (p *memProvider) Upsert(_ context.Context, _ *config.Target, addr ddns.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = addr
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	events []iNotify.Event
}

func (s *captureSink) String() string { return "capture" }

func (s *captureSink) Wants(*config.Target, iNotify.Event) bool { return true }

func (s *captureSink) Send(_ context.Context, _ *config.Target, ev iNotify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func TestOptions(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mem := &memProvider{current: ddns.NewAddress(netip.MustParseAddr("203.0.113.1"), at)}
	sink := &captureSink{}

	conf := newConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	s, errs := NewDDNS(conf, sdklogger.Nop(),
		WithBuilder(func(t *config.Target) (ddns.IProvider, ddns.IAddressSource, error) {
			if t.Provider.Kind != "godaddy" {
				return nil, nil, config.NewConfigError(config.UnknownProviderKind, t.ID(), "unknown provider kind %q", t.Provider.Kind)
			}
			return mem, staticSource{addr: "203.0.113.2"}, nil
		}),
		WithSinks(sink),
		WithReconcilerOptions(reconciler.WithClock(func() time.Time { return at })),
	)
	require.Len(t, errs, 2)

	reports := s.RunOnce(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, at, reports[0].Started)
	require.NoError(t, s.Stop())

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, consts.UpdatedSuccess, ev.Outcome)
	assert.Equal(t, "203.0.113.1", ev.Old)
	assert.Equal(t, "203.0.113.2", ev.New)
	assert.Equal(t, at, ev.Timestamp)
}
