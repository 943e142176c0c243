package config

import (
	"os"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/logger"
)

// Target is one record kept in sync with the host's address.
type Target struct {
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	// Domain is the zone the record lives in, e.g. example.com.
	Domain string `mapstructure:"domain" yaml:"domain" json:"domain"`
	// Record is the record name relative to Domain, "@" for the apex.
	Record string `mapstructure:"record" yaml:"record" json:"record"`
	// Family is ipv4, ipv6 or all.
	Family        consts.Family  `mapstructure:"family" yaml:"family" json:"family"`
	TTL           int            `mapstructure:"ttl" yaml:"ttl,omitempty" json:"ttl,omitempty"`
	Proxied       bool           `mapstructure:"proxied" yaml:"proxied,omitempty" json:"proxied,omitempty"`
	CreateMissing bool           `mapstructure:"create_missing" yaml:"create_missing,omitempty" json:"create_missing,omitempty"`
	Provider      ProviderConfig `mapstructure:"provider" yaml:"provider" json:"provider"`
	Source        SourceConfig   `mapstructure:"address_source" yaml:"address_source" json:"address_source"`
	Schedule      string         `mapstructure:"schedule" yaml:"schedule" json:"schedule"`
	Retry         *RetryConfig   `mapstructure:"retry" yaml:"retry,omitempty" json:"retry,omitempty"`
	Timeout       time.Duration  `mapstructure:"timeout" yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Notify        NotifyConfig   `mapstructure:"notify" yaml:"notify,omitempty" json:"notify,omitempty"`
}

type ProviderConfig struct {
	// Kind selects the DNS API, e.g. cloudflare or godaddy.
	Kind        string            `mapstructure:"kind" yaml:"kind" json:"kind"`
	Credentials map[string]string `mapstructure:"credentials" yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

// Credential returns the named credential with ${VAR} references expanded.
func (p ProviderConfig) Credential(name string) string {
	return strings.TrimSpace(os.ExpandEnv(p.Credentials[name]))
}

type SourceConfig struct {
	// Kind is interface, url, dns or cmd.
	Kind   string            `mapstructure:"kind" yaml:"kind" json:"kind"`
	Params map[string]string `mapstructure:"params" yaml:"params,omitempty" json:"params,omitempty"`
}

func (s SourceConfig) Param(name string) string {
	return strings.TrimSpace(s.Params[name])
}

type NotifyConfig struct {
	// LogLevel is the level Unchanged outcomes are logged at.
	LogLevel string   `mapstructure:"log_level" yaml:"log_level,omitempty" json:"log_level,omitempty"`
	Email    []string `mapstructure:"email" yaml:"email,omitempty" json:"email,omitempty"`
	// EmailOn lists outcomes that trigger an email: failed, updated, unchanged.
	EmailOn []string       `mapstructure:"email_on" yaml:"email_on,omitempty" json:"email_on,omitempty"`
	Webhook *WebhookConfig `mapstructure:"webhook" yaml:"webhook,omitempty" json:"webhook,omitempty"`
}

// WebhookConfig Webhook
type WebhookConfig struct {
	// 支持的变量 #{target} #{domain} #{family} #{result} #{old} #{new} #{detail}
	URL string `mapstructure:"url" yaml:"url" json:"url"`
	// 如 Body 为空则为 GET 请求，否则为 POST 请求。支持的变量同上
	Body string `mapstructure:"body" yaml:"body,omitempty" json:"body,omitempty"`
	// 一行一个Header, 如：Authorization: Bearer API_KEY
	Headers []string `mapstructure:"headers" yaml:"headers,omitempty" json:"headers,omitempty"`
	// On lists outcomes that trigger the webhook, default updated and failed.
	On []string `mapstructure:"on" yaml:"on,omitempty" json:"on,omitempty"`
}

// ID identifies the target in logs, metrics and events.
func (t *Target) ID() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Host().String()
}

// Host returns the record as a Domain.
func (t *Target) Host() Domain {
	sub := t.Record
	if sub == "@" {
		sub = ""
	}
	return Domain{DomainName: t.Domain, SubDomain: sub}
}

// Families expands Family into the record families to reconcile.
func (t *Target) Families() []consts.Family {
	switch t.Family {
	case consts.FamilyAll:
		return []consts.Family{consts.IPv4, consts.IPv6}
	case consts.IPv6:
		return []consts.Family{consts.IPv6}
	default:
		return []consts.Family{consts.IPv4}
	}
}

// UnchangedLevel is the level Unchanged outcomes are logged at.
func (t *Target) UnchangedLevel() logger.LogLevel {
	if t.Notify.LogLevel == "" {
		return logger.DebugLevel
	}
	return logger.LogLevel(strings.ToLower(t.Notify.LogLevel))
}

// EmailOn reports whether an outcome with status triggers an email.
func (t *Target) EmailOn(status consts.UpdateStatusType) bool {
	if len(t.Notify.Email) == 0 {
		return false
	}
	if len(t.Notify.EmailOn) == 0 {
		return status == consts.UpdatedFailed
	}
	return matchStatus(t.Notify.EmailOn, status)
}

// WebhookOn reports whether an outcome with status triggers the webhook.
func (t *Target) WebhookOn(status consts.UpdateStatusType) bool {
	if t.Notify.Webhook == nil || t.Notify.Webhook.URL == "" {
		return false
	}
	if len(t.Notify.Webhook.On) == 0 {
		return status != consts.UpdatedNothing
	}
	return matchStatus(t.Notify.Webhook.On, status)
}

func matchStatus(list []string, status consts.UpdateStatusType) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return true
		}
	}
	return false
}

func (t *Target) normalize(retry RetryConfig, timeout time.Duration) {
	t.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(t.Domain)), ".")
	t.Record = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(t.Record)), ".")
	if t.Record == "" {
		t.Record = "@"
	}
	t.Family = consts.Family(strings.ToLower(string(t.Family)))
	if t.Family == "" {
		t.Family = consts.IPv4
	}
	t.Provider.Kind = strings.ToLower(strings.TrimSpace(t.Provider.Kind))
	t.Source.Kind = strings.ToLower(strings.TrimSpace(t.Source.Kind))
	if t.TTL <= 0 {
		t.TTL = consts.DefaultTTL
	}
	if t.Retry == nil {
		r := retry
		t.Retry = &r
	} else {
		r := t.Retry.withDefaults(retry)
		t.Retry = &r
	}
	if t.Timeout <= 0 {
		t.Timeout = timeout
	}
	if t.Name == "" {
		t.Name = t.Host().String()
	}
}
