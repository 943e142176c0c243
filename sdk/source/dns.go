package source

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

const (
	DefaultDNSServer = "resolver1.opendns.com:53"
	DefaultDNSName   = "myip.opendns.com."
)

// DNS asks a resolver that answers with the querying address, such as
// OpenDNS for myip.opendns.com. TXT answers are accepted too.
type DNS struct {
	server  string
	name    string
	network string
	timeout time.Duration
}

// NewDNS accepts the params server, name and network. network defaults to
// udp4 or udp6 following the queried family.
func NewDNS(id string, cfg config.SourceConfig) (*DNS, error) {
	s := &DNS{
		server:  cfg.Param("server"),
		name:    cfg.Param("name"),
		network: cfg.Param("network"),
		timeout: 5 * time.Second,
	}
	if s.server == "" {
		s.server = DefaultDNSServer
	}
	if _, _, err := net.SplitHostPort(s.server); err != nil {
		s.server = net.JoinHostPort(strings.Trim(s.server, "[]"), "53")
	}
	if s.name == "" {
		s.name = DefaultDNSName
	}
	if _, ok := dns.IsDomainName(s.name); !ok {
		return nil, config.NewConfigError(config.InvalidTarget, id, "bad dns source name %q", s.name)
	}
	s.name = dns.Fqdn(s.name)
	return s, nil
}

func (s *DNS) String() string {
	return KindDNS
}

func (s *DNS) Discover(ctx context.Context, family consts.Family) (ddns.Address, error) {
	qtype := dns.TypeA
	network := "udp4"
	if family == consts.IPv6 {
		qtype = dns.TypeAAAA
		network = "udp6"
	}
	if s.network != "" {
		network = s.network
	}

	m := new(dns.Msg)
	m.SetQuestion(s.name, qtype)
	m.RecursionDesired = true

	c := &dns.Client{Net: network, Timeout: s.timeout}
	r, _, err := c.ExchangeContext(ctx, m, s.server)
	if err != nil {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.UnreachableEndpoint, s.String(),
			errors.Wrapf(err, "query %s at %s", s.name, s.server))
	}
	if r.Rcode != dns.RcodeSuccess {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.MalformedResponse, s.String(),
			errors.Errorf("query %s at %s: %s", s.name, s.server, dns.RcodeToString[r.Rcode]))
	}

	for _, rr := range r.Answer {
		var candidate string
		switch v := rr.(type) {
		case *dns.A:
			candidate = v.A.String()
		case *dns.AAAA:
			candidate = v.AAAA.String()
		case *dns.TXT:
			candidate = strings.Join(v.Txt, "")
		default:
			continue
		}
		if addr, ok := parseLiteral(candidate, family); ok {
			return ddns.NewAddress(addr, time.Now()), nil
		}
	}
	return ddns.Address{}, ddns.NewDiscoveryError(ddns.MalformedResponse, s.String(),
		errors.Errorf("no %s address in the answer for %s", family, s.name))
}
