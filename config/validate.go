package config

import (
	"github.com/jxo-me/ddnsd/consts"
)

// Validate checks the fields every target needs regardless of provider or
// source kind. Kind specific checks happen when the provider and source are
// built.
func (t *Target) Validate() error {
	id := t.ID()
	if t.Domain == "" {
		return NewConfigError(InvalidTarget, id, "domain is required")
	}
	switch t.Family {
	case consts.IPv4, consts.IPv6, consts.FamilyAll:
	default:
		return NewConfigError(InvalidTarget, id, "unknown family %q, want ipv4, ipv6 or all", t.Family)
	}
	if t.Provider.Kind == "" {
		return NewConfigError(UnknownProviderKind, id, "provider kind is required")
	}
	if t.Source.Kind == "" {
		return NewConfigError(UnknownSourceKind, id, "address source kind is required")
	}
	if t.Schedule == "" {
		return NewConfigError(UnparsableSchedule, id, "schedule is required")
	}
	return nil
}

// ValidTargets returns the targets that pass Validate and, separately, the
// errors of those that do not. A later target reusing an earlier name is
// rejected.
func (c *Root) ValidTargets() ([]*Target, []error) {
	var (
		targets []*Target
		errs    []error
		seen    = make(map[string]bool)
	)
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t.ID()] {
			errs = append(errs, NewConfigError(InvalidTarget, t.ID(), "duplicated target name"))
			continue
		}
		seen[t.ID()] = true
		targets = append(targets, t)
	}
	return targets, errs
}
