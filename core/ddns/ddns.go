package ddns

import (
	"context"
	"net/netip"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
)

// Address is a discovered address. Two addresses are equal when their IPs are,
// regardless of where or when they were discovered.
type Address struct {
	IP           netip.Addr
	DiscoveredAt time.Time
}

func NewAddress(ip netip.Addr, at time.Time) Address {
	return Address{IP: ip.Unmap(), DiscoveredAt: at}
}

func (a Address) IsValid() bool {
	return a.IP.IsValid()
}

func (a Address) Equal(other Address) bool {
	return a.IP.Unmap() == other.IP.Unmap()
}

// Family reports the address family of the IP.
func (a Address) Family() consts.Family {
	if a.IP.Unmap().Is4() {
		return consts.IPv4
	}
	return consts.IPv6
}

func (a Address) String() string {
	if !a.IP.IsValid() {
		return ""
	}
	return a.IP.String()
}

// RecordState is the provider's view of a record at FetchedAt.
// A zero Address means the record does not exist yet.
type RecordState struct {
	Address   Address
	ID        string
	TTL       int
	FetchedAt time.Time
}

func (r RecordState) Exists() bool {
	return r.Address.IsValid()
}

// IProvider reads and writes a single record on a DNS hosting API.
type IProvider interface {
	String() string
	// Fetch returns the record currently published for target and family.
	Fetch(ctx context.Context, target *config.Target, family consts.Family) (RecordState, error)
	// Upsert creates or replaces the target's record of addr's family with addr.
	Upsert(ctx context.Context, target *config.Target, addr Address) error
}

// IAddressSource determines the address to publish.
type IAddressSource interface {
	String() string
	Discover(ctx context.Context, family consts.Family) (Address, error)
}
