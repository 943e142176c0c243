package config

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNoConfigFile = errors.New("cannot determine default configuration path. No file config.yaml in ~/.ddnsd, /etc/ddnsd, or the working directory")

type ConfigErrorKind string

const (
	UnknownProviderKind ConfigErrorKind = "UnknownProviderKind"
	UnknownSourceKind   ConfigErrorKind = "UnknownSourceKind"
	UnparsableSchedule  ConfigErrorKind = "UnparsableSchedule"
	MissingCredential   ConfigErrorKind = "MissingCredential"
	InvalidTarget       ConfigErrorKind = "InvalidTarget"
)

// ConfigError excludes a single target from scheduling.
type ConfigError struct {
	Kind   ConfigErrorKind
	Target string
	Err    error
}

func NewConfigError(kind ConfigErrorKind, target string, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Target: target, Err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("target %q: %s", e.Target, e.Kind)
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	return ok && t.Kind == e.Kind
}

// IsConfigError reports whether err is a ConfigError of kind.
func IsConfigError(err error, kind ConfigErrorKind) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Kind == kind
}
