package consts

import "time"

// UpdateStatusType 更新状态
type UpdateStatusType string

const (
	// UpdatedNothing 未改变
	UpdatedNothing UpdateStatusType = "Unchanged"
	// UpdatedFailed 更新失败
	UpdatedFailed UpdateStatusType = "Failed"
	// UpdatedSuccess 更新成功
	UpdatedSuccess UpdateStatusType = "Updated"
)

// Stage is the step of a reconciliation cycle an outcome was produced in.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageFetch     Stage = "fetch"
	StageUpsert    Stage = "upsert"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRetryAfter    = "Retry-After"
	DefaultTTL          = 600
)

const (
	DefaultMaxAttempts  = 5
	DefaultBaseDelay    = time.Second
	DefaultMaxDelay     = time.Minute
	DefaultCycleTimeout = 2 * time.Minute
	// SchedulerResolution is how often the scheduler evaluates due entries.
	SchedulerResolution = time.Second
	// NotifyQueueSize bounds pending notification events.
	NotifyQueueSize = 64
)

// Family is the address family a record is reconciled for.
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
	// FamilyAll requests both record types as independent sub-cycles.
	FamilyAll Family = "all"
)

// RecordType returns the DNS record type published for the family.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// Network returns the dial network used to reach echo endpoints for the family.
func (f Family) Network() string {
	if f == IPv6 {
		return "tcp6"
	}
	return "tcp4"
}
