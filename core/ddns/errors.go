package ddns

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type ProviderErrorKind string

const (
	AuthError       ProviderErrorKind = "AuthError"
	NotFound        ProviderErrorKind = "NotFound"
	ValidationError ProviderErrorKind = "ValidationError"
	TransportError  ProviderErrorKind = "TransportError"
	RateLimited     ProviderErrorKind = "RateLimited"
	Conflict        ProviderErrorKind = "Conflict"
)

// Sentinels for errors.Is, matched by kind only.
var (
	ErrAuth       = &ProviderError{Kind: AuthError}
	ErrNotFound   = &ProviderError{Kind: NotFound}
	ErrValidation = &ProviderError{Kind: ValidationError}
	ErrTransport  = &ProviderError{Kind: TransportError}
	ErrRateLimit  = &ProviderError{Kind: RateLimited}
	ErrConflict   = &ProviderError{Kind: Conflict}
)

// ProviderError is returned by every IProvider call that fails.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   string
	Op         string
	StatusCode int
	// RetryAfter is the provider's hint for RateLimited, zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s, retry after %s", msg, e.RetryAfter)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && t.Kind == e.Kind
}

// Transient reports whether the call may succeed when retried.
func (e *ProviderError) Transient() bool {
	return e.Kind == TransportError || e.Kind == RateLimited
}

// KindForStatus maps a non-2xx HTTP status to an error kind.
func KindForStatus(code int) ProviderErrorKind {
	switch {
	case code == 401 || code == 403:
		return AuthError
	case code == 404:
		return NotFound
	case code == 409:
		return Conflict
	case code == 429:
		return RateLimited
	case code >= 500:
		return TransportError
	case code >= 400:
		return ValidationError
	default:
		return TransportError
	}
}

// AsProviderError extracts the ProviderError wrapped in err.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type DiscoveryErrorKind string

const (
	NoMatchingInterface DiscoveryErrorKind = "NoMatchingInterface"
	UnreachableEndpoint DiscoveryErrorKind = "UnreachableEndpoint"
	MalformedResponse   DiscoveryErrorKind = "MalformedResponse"
)

var (
	ErrNoMatchingInterface = &DiscoveryError{Kind: NoMatchingInterface}
	ErrUnreachableEndpoint = &DiscoveryError{Kind: UnreachableEndpoint}
	ErrMalformedResponse   = &DiscoveryError{Kind: MalformedResponse}
)

// DiscoveryError is returned by every IAddressSource that cannot produce an address.
type DiscoveryError struct {
	Kind   DiscoveryErrorKind
	Source string
	Err    error
}

func NewDiscoveryError(kind DiscoveryErrorKind, source string, err error) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Source: source, Err: err}
}

func (e *DiscoveryError) Error() string {
	msg := string(e.Kind)
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

func (e *DiscoveryError) Is(target error) bool {
	t, ok := target.(*DiscoveryError)
	return ok && t.Kind == e.Kind
}

// ErrorKind names the taxonomy entry of err, or "Unknown".
func ErrorKind(err error) string {
	var de *DiscoveryError
	if errors.As(err, &de) {
		return string(de.Kind)
	}
	if pe, ok := AsProviderError(err); ok {
		return string(pe.Kind)
	}
	return "Unknown"
}
