package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

// URL asks HTTP echo services for the address they see the host connect from.
type URL struct {
	urls    []string
	clients map[consts.Family]*http.Client
}

// NewURL accepts the param url, a comma separated list tried in order.
func NewURL(id string, cfg config.SourceConfig) (*URL, error) {
	s := &URL{
		clients: map[consts.Family]*http.Client{
			consts.IPv4: util.CreateNoProxyHTTPClient(consts.IPv4.Network()),
			consts.IPv6: util.CreateNoProxyHTTPClient(consts.IPv6.Network()),
		},
	}
	for _, raw := range strings.Split(cfg.Param("url"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, config.NewConfigError(config.InvalidTarget, id, "bad address source url %q", raw)
		}
		s.urls = append(s.urls, raw)
	}
	if len(s.urls) == 0 {
		return nil, config.NewConfigError(config.InvalidTarget, id, "url source needs at least one url")
	}
	return s, nil
}

func (s *URL) String() string {
	return KindURL
}

// Discover tries every url until one answers with a bare address of family.
// MalformedResponse wins over UnreachableEndpoint when at least one endpoint
// answered.
func (s *URL) Discover(ctx context.Context, family consts.Family) (ddns.Address, error) {
	client := s.clients[family]
	var lastErr, malformed error
	for _, u := range s.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := client.Do(req)
		body, err := util.GetHTTPResponseOrg(resp, u, err)
		if err != nil {
			lastErr = err
			continue
		}
		if addr, ok := parseLiteral(string(body), family); ok {
			return ddns.NewAddress(addr, time.Now()), nil
		}
		malformed = errors.Errorf("%s: not a bare %s address: %q", u, family, util.Snippet(body))
	}
	if malformed != nil {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.MalformedResponse, s.String(), malformed)
	}
	return ddns.Address{}, ddns.NewDiscoveryError(ddns.UnreachableEndpoint, s.String(), lastErr)
}
