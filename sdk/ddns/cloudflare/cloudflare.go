package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
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
	Endpoint string = "https://api.cloudflare.com/client/v4"
	Code     string = "cloudflare"
)

type cloudflareMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cloudflareResponse struct {
	Success bool                `json:"success"`
	Errors  []cloudflareMessage `json:"errors"`
	Result  json.RawMessage     `json:"result"`
}

func (r *cloudflareResponse) message() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

type cloudflareZone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type cloudflareRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// CloudflareDNS talks to the Cloudflare v4 API.
type CloudflareDNS struct {
	endpoint string
	zoneID   string
	header   http.Header
	client   *http.Client
}

// New reads the credentials token, or email and key, and the optional
// zone_id and endpoint.
func New(target *config.Target) (*CloudflareDNS, error) {
	creds := target.Provider
	c := &CloudflareDNS{
		endpoint: Endpoint,
		zoneID:   creds.Credential("zone_id"),
		header:   http.Header{"Content-Type": {"application/json"}},
		client:   util.CreateHTTPClient(),
	}
	if ep := creds.Credential("endpoint"); ep != "" {
		c.endpoint = strings.TrimSuffix(ep, "/")
	}
	if token := creds.Credential("token"); token != "" {
		c.header.Set(consts.HeaderAuthorization, "Bearer "+token)
		return c, nil
	}
	email, key := creds.Credential("email"), creds.Credential("key")
	if email == "" || key == "" {
		return nil, config.NewConfigError(config.MissingCredential, target.ID(), "cloudflare needs a token, or an email and a key")
	}
	c.header.Set("X-Auth-Email", email)
	c.header.Set("X-Auth-Key", key)
	return c, nil
}

func (c *CloudflareDNS) String() string {
	return Code
}

func (c *CloudflareDNS) Fetch(ctx context.Context, target *config.Target, family consts.Family) (ddns.RecordState, error) {
	zoneID, err := c.zone(ctx, target, "fetch")
	if err != nil {
		return ddns.RecordState{}, err
	}
	rec, err := c.lookup(ctx, zoneID, target, family, "fetch")
	if err != nil {
		return ddns.RecordState{}, err
	}
	if rec == nil {
		return ddns.RecordState{}, &ddns.ProviderError{
			Kind:     ddns.NotFound,
			Provider: Code,
			Op:       "fetch",
			Err:      errors.Errorf("no %s record for %s", family.RecordType(), target.Host()),
		}
	}
	addr, err := netip.ParseAddr(rec.Content)
	if err != nil {
		return ddns.RecordState{}, &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: "fetch", Err: errors.Wrap(err, "record content")}
	}
	now := time.Now()
	return ddns.RecordState{Address: ddns.NewAddress(addr, now), ID: rec.ID, TTL: rec.TTL, FetchedAt: now}, nil
}

// Upsert replaces the record when it exists and creates it otherwise.
func (c *CloudflareDNS) Upsert(ctx context.Context, target *config.Target, addr ddns.Address) error {
	family := addr.Family()
	zoneID, err := c.zone(ctx, target, "upsert")
	if err != nil {
		return err
	}
	rec, err := c.lookup(ctx, zoneID, target, family, "upsert")
	if err != nil {
		return err
	}
	payload := &cloudflareRecord{
		Type:    family.RecordType(),
		Name:    target.Host().String(),
		Content: addr.String(),
		TTL:     target.TTL,
		Proxied: target.Proxied,
	}
	if rec == nil {
		return c.request(ctx, http.MethodPost, "/zones/"+zoneID+"/dns_records", nil, payload, "upsert", nil)
	}
	return c.request(ctx, http.MethodPut, "/zones/"+zoneID+"/dns_records/"+rec.ID, nil, payload, "upsert", nil)
}

func (c *CloudflareDNS) zone(ctx context.Context, target *config.Target, op string) (string, error) {
	if c.zoneID != "" {
		return c.zoneID, nil
	}
	var zones []cloudflareZone
	query := url.Values{"name": {target.Domain}, "status": {"active"}}
	if err := c.request(ctx, http.MethodGet, "/zones", query, nil, op, &zones); err != nil {
		return "", err
	}
	if len(zones) == 0 {
		return "", &ddns.ProviderError{Kind: ddns.NotFound, Provider: Code, Op: op, Err: errors.Errorf("zone %s not found", target.Domain)}
	}
	return zones[0].ID, nil
}

func (c *CloudflareDNS) lookup(ctx context.Context, zoneID string, target *config.Target, family consts.Family, op string) (*cloudflareRecord, error) {
	var records []cloudflareRecord
	query := url.Values{"type": {family.RecordType()}, "name": {target.Host().String()}}
	if err := c.request(ctx, http.MethodGet, "/zones/"+zoneID+"/dns_records", query, nil, op, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// request sends one API call and decodes the result field of the response
// envelope into result.
func (c *CloudflareDNS) request(ctx context.Context, method, path string, query url.Values, data any, op string, result any) error {
	var body io.Reader
	if data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
		}
		body = bytes.NewReader(buf)
	}
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
	}
	req.Header = c.header.Clone()

	var resp cloudflareResponse
	raw, err := util.DoJSON(c.client, req, Code, op, &resp)
	if err != nil {
		if pe, ok := ddns.AsProviderError(err); ok && pe.StatusCode != 0 {
			var failed cloudflareResponse
			if json.Unmarshal(raw, &failed) == nil && len(failed.Errors) > 0 {
				pe.Err = errors.Errorf("%s %s: %s", method, path, failed.message())
			}
		}
		return err
	}
	if !resp.Success {
		return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: errors.Errorf("%s %s: %s", method, path, resp.message())}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return &ddns.ProviderError{Kind: ddns.TransportError, Provider: Code, Op: op, Err: errors.Wrapf(err, "decode %s %s", method, path)}
		}
	}
	return nil
}
