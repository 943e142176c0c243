package source

import (
	"context"
	"net"
	"net/netip"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// NetInterface is a network interface and the addresses assigned to it.
type NetInterface struct {
	Name  string
	Addrs []netip.Addr
}

// InterfaceLister enumerates the host's interfaces.
type InterfaceLister func() ([]NetInterface, error)

// SystemInterfaces lists the interfaces that are up.
func SystemInterfaces() ([]NetInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []NetInterface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, errors.Wrapf(err, "addresses of %s", iface.Name)
		}
		ni := NetInterface{Name: iface.Name}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if addr, ok := netip.AddrFromSlice(ip); ok {
				ni.Addrs = append(ni.Addrs, addr.Unmap())
			}
		}
		out = append(out, ni)
	}
	return out, nil
}

// Interface reads the address from a local network interface.
type Interface struct {
	pattern      string
	index        int
	match        *regexp.Regexp
	allowPrivate bool
	list         InterfaceLister
}

// NewInterface accepts the params name (a glob over interface names),
// select (@N for the N-th candidate or a regular expression) and
// allow_private.
func NewInterface(id string, cfg config.SourceConfig) (*Interface, error) {
	s := &Interface{
		pattern: cfg.Param("name"),
		index:   -1,
		list:    SystemInterfaces,
	}
	if s.pattern == "" {
		return nil, config.NewConfigError(config.InvalidTarget, id, "interface source needs a name")
	}
	if _, err := path.Match(s.pattern, ""); err != nil {
		return nil, config.NewConfigError(config.InvalidTarget, id, "bad interface pattern %q: %v", s.pattern, err)
	}
	if sel := cfg.Param("select"); sel != "" {
		if strings.HasPrefix(sel, "@") {
			n, err := strconv.Atoi(sel[1:])
			if err != nil || n < 0 {
				return nil, config.NewConfigError(config.InvalidTarget, id, "bad interface select %q", sel)
			}
			s.index = n
		} else {
			re, err := regexp.Compile(sel)
			if err != nil {
				return nil, config.NewConfigError(config.InvalidTarget, id, "bad interface select %q: %v", sel, err)
			}
			s.match = re
		}
	}
	if v := cfg.Param("allow_private"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, config.NewConfigError(config.InvalidTarget, id, "bad allow_private %q", v)
		}
		s.allowPrivate = allow
	}
	return s, nil
}

// WithLister replaces the interface enumeration, for tests.
func (s *Interface) WithLister(list InterfaceLister) *Interface {
	s.list = list
	return s
}

func (s *Interface) String() string {
	return KindInterface
}

func (s *Interface) Discover(_ context.Context, family consts.Family) (ddns.Address, error) {
	ifaces, err := s.list()
	if err != nil {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.NoMatchingInterface, s.String(), err)
	}

	var (
		matched    bool
		candidates []netip.Addr
	)
	for _, iface := range ifaces {
		if ok, _ := path.Match(s.pattern, iface.Name); !ok {
			continue
		}
		matched = true
		for _, addr := range iface.Addrs {
			addr = addr.Unmap()
			if addr.Is4() != (family == consts.IPv4) || !isPublishable(addr, s.allowPrivate) {
				continue
			}
			candidates = append(candidates, addr)
		}
	}
	if !matched {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.NoMatchingInterface, s.String(),
			errors.Errorf("no interface matches %q", s.pattern))
	}
	if len(candidates) == 0 {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.NoMatchingInterface, s.String(),
			errors.Errorf("interface %q has no publishable %s address", s.pattern, family))
	}

	addr, ok := s.pick(candidates)
	if !ok {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.NoMatchingInterface, s.String(),
			errors.Errorf("none of %d %s addresses on %q is selected", len(candidates), family, s.pattern))
	}
	return ddns.NewAddress(addr, time.Now()), nil
}

func (s *Interface) pick(candidates []netip.Addr) (netip.Addr, bool) {
	switch {
	case s.index >= 0:
		if s.index >= len(candidates) {
			return netip.Addr{}, false
		}
		return candidates[s.index], true
	case s.match != nil:
		for _, c := range candidates {
			if s.match.MatchString(c.String()) {
				return c, true
			}
		}
		return netip.Addr{}, false
	default:
		return candidates[0], true
	}
}
