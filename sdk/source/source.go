package source

import (
	"net/netip"
	"strings"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
)

const (
	KindInterface = "interface"
	KindURL       = "url"
	KindDNS       = "dns"
	KindCmd       = "cmd"
)

// NewSource builds the address source configured for target.
func NewSource(target *config.Target) (ddns.IAddressSource, error) {
	var (
		src ddns.IAddressSource
		err error
	)
	cfg := target.Source
	switch cfg.Kind {
	case KindInterface:
		src, err = NewInterface(target.ID(), cfg)
	case KindURL:
		src, err = NewURL(target.ID(), cfg)
	case KindDNS:
		src, err = NewDNS(target.ID(), cfg)
	case KindCmd:
		src, err = NewCmd(target.ID(), cfg)
	default:
		return nil, config.NewConfigError(config.UnknownSourceKind, target.ID(), "unknown address source kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// parseLiteral parses s as a bare address of family.
func parseLiteral(s string, family consts.Family) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.Zone() != "" || addr.Is4() != (family == consts.IPv4) {
		return netip.Addr{}, false
	}
	return addr, true
}

// findLiteral returns the first token of out that is an address of family.
func findLiteral(out string, family consts.Family) (netip.Addr, bool) {
	fields := strings.FieldsFunc(out, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '\n', ',', ';', '/', '"', '\'':
			return true
		}
		return false
	})
	for _, f := range fields {
		if addr, ok := parseLiteral(f, family); ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// isPublishable reports whether addr may be published. Loopback,
// unspecified, link-local and multicast addresses never are; private ranges
// only when allowed.
func isPublishable(addr netip.Addr, allowPrivate bool) bool {
	if !addr.IsValid() || !addr.IsGlobalUnicast() {
		return false
	}
	return allowPrivate || !addr.IsPrivate()
}
