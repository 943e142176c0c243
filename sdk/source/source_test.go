package source

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"runtime"
	"testing"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceConfig(kind string, params map[string]string) config.SourceConfig {
	return config.SourceConfig{Kind: kind, Params: params}
}

func TestNewSource(t *testing.T) {
	target := &config.Target{Name: "home", Source: sourceConfig(KindURL, map[string]string{"url": "https://api.ipify.org"})}
	src, err := NewSource(target)
	require.NoError(t, err)
	assert.Equal(t, KindURL, src.String())

	target.Source = sourceConfig("carrier-pigeon", nil)
	_, err = NewSource(target)
	assert.True(t, config.IsConfigError(err, config.UnknownSourceKind))

	target.Source = sourceConfig(KindInterface, nil)
	_, err = NewSource(target)
	assert.True(t, config.IsConfigError(err, config.InvalidTarget))
}

func staticInterfaces(ifaces ...NetInterface) InterfaceLister {
	return func() ([]NetInterface, error) {
		return ifaces, nil
	}
}

func addrs(list ...string) []netip.Addr {
	out := make([]netip.Addr, 0, len(list))
	for _, s := range list {
		out = append(out, netip.MustParseAddr(s))
	}
	return out
}

func TestInterfaceDiscover(t *testing.T) {
	lister := staticInterfaces(
		NetInterface{Name: "lo", Addrs: addrs("127.0.0.1", "::1")},
		NetInterface{Name: "eth0", Addrs: addrs("192.168.1.10", "fe80::1", "203.0.113.7", "2001:db8::10", "2001:db8::20")},
		NetInterface{Name: "wg0", Addrs: addrs("10.8.0.1")},
	)

	tests := []struct {
		name   string
		params map[string]string
		family consts.Family
		want   string
		kind   ddns.DiscoveryErrorKind
	}{
		{name: "first global ipv4", params: map[string]string{"name": "eth0"}, family: consts.IPv4, want: "203.0.113.7"},
		{name: "first global ipv6", params: map[string]string{"name": "eth*"}, family: consts.IPv6, want: "2001:db8::10"},
		{name: "index select", params: map[string]string{"name": "eth0", "select": "@1"}, family: consts.IPv6, want: "2001:db8::20"},
		{name: "regex select", params: map[string]string{"name": "eth0", "select": "::20$"}, family: consts.IPv6, want: "2001:db8::20"},
		{name: "private allowed", params: map[string]string{"name": "wg0", "allow_private": "true"}, family: consts.IPv4, want: "10.8.0.1"},
		{name: "private ignored", params: map[string]string{"name": "wg0"}, family: consts.IPv4, kind: ddns.NoMatchingInterface},
		{name: "loopback ignored", params: map[string]string{"name": "lo"}, family: consts.IPv6, kind: ddns.NoMatchingInterface},
		{name: "no such interface", params: map[string]string{"name": "ppp0"}, family: consts.IPv4, kind: ddns.NoMatchingInterface},
		{name: "index out of range", params: map[string]string{"name": "eth0", "select": "@5"}, family: consts.IPv6, kind: ddns.NoMatchingInterface},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewInterface("home", sourceConfig(KindInterface, tt.params))
			require.NoError(t, err)
			src.WithLister(lister)

			addr, err := src.Discover(context.Background(), tt.family)
			if tt.kind != "" {
				assert.True(t, errors.Is(err, &ddns.DiscoveryError{Kind: tt.kind}), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
			assert.False(t, addr.DiscoveredAt.IsZero())
		})
	}
}

func TestNewInterfaceRejectsBadParams(t *testing.T) {
	for _, params := range []map[string]string{
		{"name": "eth["},
		{"name": "eth0", "select": "@x"},
		{"name": "eth0", "select": "("},
		{"name": "eth0", "allow_private": "maybe"},
	} {
		_, err := NewInterface("home", sourceConfig(KindInterface, params))
		assert.True(t, config.IsConfigError(err, config.InvalidTarget), "params %v", params)
	}
}

func TestURLDiscover(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	defer good.Close()
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>your ip is 203.0.113.7</html>"))
	}))
	defer html.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	t.Run("falls through to the next url", func(t *testing.T) {
		src, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": broken.URL + ", " + good.URL}))
		require.NoError(t, err)
		addr, err := src.Discover(context.Background(), consts.IPv4)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", addr.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		src, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": broken.URL + "," + html.URL}))
		require.NoError(t, err)
		_, err = src.Discover(context.Background(), consts.IPv4)
		assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)
	})

	t.Run("malformed cause survives a later unreachable url", func(t *testing.T) {
		src, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": html.URL + "," + broken.URL}))
		require.NoError(t, err)
		_, err = src.Discover(context.Background(), consts.IPv4)
		assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)
		assert.ErrorContains(t, err, "not a bare")
		assert.NotContains(t, err.Error(), "status 503")
	})

	t.Run("wrong family is malformed", func(t *testing.T) {
		src, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": good.URL}))
		require.NoError(t, err)
		src.clients[consts.IPv6] = src.clients[consts.IPv4]
		_, err = src.Discover(context.Background(), consts.IPv6)
		assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)
	})

	t.Run("unreachable", func(t *testing.T) {
		src, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": broken.URL}))
		require.NoError(t, err)
		_, err = src.Discover(context.Background(), consts.IPv4)
		assert.True(t, errors.Is(err, ddns.ErrUnreachableEndpoint), "got %v", err)
	})
}

func TestNewURLRejectsBadParams(t *testing.T) {
	for _, raw := range []string{"", " , ", "ftp://example.com", "not a url"} {
		_, err := NewURL("home", sourceConfig(KindURL, map[string]string{"url": raw}))
		assert.True(t, config.IsConfigError(err, config.InvalidTarget), "url %q", raw)
	}
}

func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = srv.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() {
		_ = srv.Shutdown()
	})
	return pc.LocalAddr().String()
}

func TestDNSDiscover(t *testing.T) {
	addr := startDNSServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case q.Name == "nxdomain.test.":
			m.Rcode = dns.RcodeNameError
		case q.Qtype == dns.TypeA:
			rr, _ := dns.NewRR(q.Name + " 0 IN A 203.0.113.7")
			m.Answer = append(m.Answer, rr)
		case q.Qtype == dns.TypeAAAA && q.Name == "txt.test.":
			rr, _ := dns.NewRR(q.Name + ` 0 IN TXT "2001:db8::7"`)
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})

	src, err := NewDNS("home", sourceConfig(KindDNS, map[string]string{"server": addr, "network": "udp"}))
	require.NoError(t, err)
	got, err := src.Discover(context.Background(), consts.IPv4)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", got.String())

	src, err = NewDNS("home", sourceConfig(KindDNS, map[string]string{"server": addr, "network": "udp", "name": "txt.test"}))
	require.NoError(t, err)
	got, err = src.Discover(context.Background(), consts.IPv6)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::7", got.String())

	src, err = NewDNS("home", sourceConfig(KindDNS, map[string]string{"server": addr, "network": "udp"}))
	require.NoError(t, err)
	_, err = src.Discover(context.Background(), consts.IPv6)
	assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)

	src, err = NewDNS("home", sourceConfig(KindDNS, map[string]string{"server": addr, "network": "udp", "name": "nxdomain.test"}))
	require.NoError(t, err)
	_, err = src.Discover(context.Background(), consts.IPv4)
	assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)
}

func TestNewDNSDefaults(t *testing.T) {
	src, err := NewDNS("home", sourceConfig(KindDNS, nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultDNSServer, src.server)
	assert.Equal(t, DefaultDNSName, src.name)

	src, err = NewDNS("home", sourceConfig(KindDNS, map[string]string{"server": "1.1.1.1", "name": "whoami.example"}))
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1:53", src.server)
	assert.Equal(t, "whoami.example.", src.name)
}

func TestCmdDiscover(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}

	src, err := NewCmd("home", sourceConfig(KindCmd, map[string]string{"command": "echo 'inet 203.0.113.7/24 brd'; echo 2001:db8::9"}))
	require.NoError(t, err)
	got, err := src.Discover(context.Background(), consts.IPv6)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::9", got.String())

	src, err = NewCmd("home", sourceConfig(KindCmd, map[string]string{"command": "echo nothing here"}))
	require.NoError(t, err)
	_, err = src.Discover(context.Background(), consts.IPv4)
	assert.True(t, errors.Is(err, ddns.ErrMalformedResponse), "got %v", err)

	src, err = NewCmd("home", sourceConfig(KindCmd, map[string]string{"command": "echo boom >&2; exit 3"}))
	require.NoError(t, err)
	_, err = src.Discover(context.Background(), consts.IPv4)
	assert.True(t, errors.Is(err, ddns.ErrUnreachableEndpoint), "got %v", err)
	assert.Contains(t, err.Error(), "boom")

	_, err = NewCmd("home", sourceConfig(KindCmd, nil))
	assert.True(t, config.IsConfigError(err, config.InvalidTarget))
}
