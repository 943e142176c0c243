package godaddy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

const (
	Endpoint string = "https://api.godaddy.com/v1/domains"
	Code     string = "godaddy"
)

type godaddyRecord struct {
	Data string `json:"data"`
	Name string `json:"name,omitempty"`
	TTL  int    `json:"ttl"`
	Type string `json:"type,omitempty"`
}

type godaddyRecords []godaddyRecord

type godaddyError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int    `json:"retryAfterSec"`
}

type GoDaddyDNS struct {
	endpoint string
	header   http.Header
	client   *http.Client
}

// New reads the credentials key and secret, and the optional endpoint.
func New(target *config.Target) (*GoDaddyDNS, error) {
	creds := target.Provider
	key, secret := creds.Credential("key"), creds.Credential("secret")
	if key == "" || secret == "" {
		return nil, config.NewConfigError(config.MissingCredential, target.ID(), "godaddy needs a key and a secret")
	}
	g := &GoDaddyDNS{
		endpoint: Endpoint,
		header: http.Header{
			consts.HeaderAuthorization: {fmt.Sprintf("sso-key %s:%s", key, secret)},
			"Content-Type":             {"application/json"},
			"Accept":                   {"application/json"},
		},
		client: util.CreateHTTPClient(),
	}
	if ep := creds.Credential("endpoint"); ep != "" {
		g.endpoint = strings.TrimSuffix(ep, "/")
	}
	return g, nil
}

func (g *GoDaddyDNS) String() string {
	return Code
}

func (g *GoDaddyDNS) Fetch(ctx context.Context, target *config.Target, family consts.Family) (ddns.RecordState, error) {
	var records godaddyRecords
	if err := g.sendReq(ctx, http.MethodGet, target, family.RecordType(), nil, "fetch", &records); err != nil {
		return ddns.RecordState{}, err
	}
	if len(records) == 0 {
		return ddns.RecordState{}, &ddns.ProviderError{
			Kind:     ddns.NotFound,
			Provider: Code,
			Op:       "fetch",
			Err:      errors.Errorf("no %s record for %s", family.RecordType(), target.Host()),
		}
	}
	addr, err := netip.ParseAddr(records[0].Data)
	if err != nil {
		return ddns.RecordState{}, &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: "fetch", Err: errors.Wrap(err, "record data")}
	}
	now := time.Now()
	return ddns.RecordState{Address: ddns.NewAddress(addr, now), TTL: records[0].TTL, FetchedAt: now}, nil
}

// Upsert replaces every record of the type and name; GoDaddy creates it when absent.
func (g *GoDaddyDNS) Upsert(ctx context.Context, target *config.Target, addr ddns.Address) error {
	data := &godaddyRecords{godaddyRecord{
		Data: addr.String(),
		TTL:  target.TTL,
	}}
	return g.sendReq(ctx, http.MethodPut, target, addr.Family().RecordType(), data, "upsert", nil)
}

func (g *GoDaddyDNS) sendReq(ctx context.Context, method string, target *config.Target, rType string, data *godaddyRecords, op string, result any) error {
	var body io.Reader
	if data != nil {
		buffer, err := json.Marshal(data)
		if err != nil {
			return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
		}
		body = bytes.NewReader(buffer)
	}
	host := target.Host()
	path := fmt.Sprintf("%s/%s/records/%s/%s", g.endpoint, host.DomainName, rType, url.PathEscape(host.GetSubDomain()))

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
	}
	req.Header = g.header.Clone()

	raw, err := util.DoJSON(g.client, req, Code, op, result)
	if pe, ok := ddns.AsProviderError(err); ok && pe.StatusCode != 0 {
		var ge godaddyError
		if json.Unmarshal(raw, &ge) == nil {
			if ge.Message != "" {
				pe.Err = errors.Errorf("%s %s: %s: %s", method, req.URL.Path, ge.Code, ge.Message)
			}
			if pe.Kind == ddns.RateLimited && pe.RetryAfter == 0 && ge.RetryAfterSec > 0 {
				pe.RetryAfter = time.Duration(ge.RetryAfterSec) * time.Second
			}
		}
	}
	return err
}
