package ddns

import (
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/sdk/ddns/cloudflare"
	"github.com/jxo-me/ddnsd/sdk/ddns/godaddy"
	"github.com/jxo-me/ddnsd/sdk/ddns/porkbun"
)

// Kinds lists the provider kinds NewProvider understands.
var Kinds = []string{cloudflare.Code, godaddy.Code, porkbun.Code}

// NewProvider builds the DNS provider client configured for target.
func NewProvider(target *config.Target) (ddns.IProvider, error) {
	var (
		p   ddns.IProvider
		err error
	)
	switch target.Provider.Kind {
	case cloudflare.Code:
		p, err = cloudflare.New(target)
	case godaddy.Code:
		p, err = godaddy.New(target)
	case porkbun.Code:
		p, err = porkbun.New(target)
	default:
		return nil, config.NewConfigError(config.UnknownProviderKind, target.ID(), "unknown provider kind %q, want one of %v", target.Provider.Kind, Kinds)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
