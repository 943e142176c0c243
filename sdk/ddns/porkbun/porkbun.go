package porkbun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

const (
	Endpoint string = "https://api.porkbun.com/api/json/v3/dns"
	Code     string = "porkbun"
	// minTTL is the lowest TTL porkbun accepts.
	minTTL = 600
)

type PorkbunDomainRecord struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`    // subdomain
	Type    string `json:"type,omitempty"`    // record type, e.g. A AAAA CNAME
	Content string `json:"content,omitempty"` // value
	Ttl     string `json:"ttl,omitempty"`
}

type PorkbunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type PorkbunDomainQueryResponse struct {
	PorkbunResponse
	Records []PorkbunDomainRecord `json:"records"`
}

type PorkbunApiKey struct {
	AccessKey string `json:"apikey"`
	SecretKey string `json:"secretapikey"`
}

type PorkbunDomainCreateOrUpdateVO struct {
	PorkbunApiKey
	PorkbunDomainRecord
}

// Porkbun talks to the porkbun v3 JSON API. Every call is a POST carrying
// the API keys in the body.
type Porkbun struct {
	endpoint string
	keys     PorkbunApiKey
	client   *http.Client
}

// New reads the credentials apikey and secretapikey and the optional endpoint.
func New(target *config.Target) (*Porkbun, error) {
	creds := target.Provider
	pb := &Porkbun{
		endpoint: Endpoint,
		keys:     PorkbunApiKey{AccessKey: creds.Credential("apikey"), SecretKey: creds.Credential("secretapikey")},
		client:   util.CreateHTTPClient(),
	}
	if pb.keys.AccessKey == "" || pb.keys.SecretKey == "" {
		return nil, config.NewConfigError(config.MissingCredential, target.ID(), "porkbun needs an apikey and a secretapikey")
	}
	if ep := creds.Credential("endpoint"); ep != "" {
		pb.endpoint = strings.TrimSuffix(ep, "/")
	}
	return pb, nil
}

func (pb *Porkbun) String() string {
	return Code
}

func (pb *Porkbun) Fetch(ctx context.Context, target *config.Target, family consts.Family) (ddns.RecordState, error) {
	rec, err := pb.lookup(ctx, target, family.RecordType(), "fetch")
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
	ttl, _ := strconv.Atoi(rec.Ttl)
	now := time.Now()
	return ddns.RecordState{Address: ddns.NewAddress(addr, now), ID: rec.ID, TTL: ttl, FetchedAt: now}, nil
}

// Upsert edits the record when it exists and creates it otherwise.
func (pb *Porkbun) Upsert(ctx context.Context, target *config.Target, addr ddns.Address) error {
	recordType := addr.Family().RecordType()
	rec, err := pb.lookup(ctx, target, recordType, "upsert")
	if err != nil {
		return err
	}
	ttl := target.TTL
	if ttl < minTTL {
		ttl = minTTL
	}
	host := target.Host()
	vo := &PorkbunDomainCreateOrUpdateVO{
		PorkbunApiKey: pb.keys,
		PorkbunDomainRecord: PorkbunDomainRecord{
			Content: addr.String(),
			Ttl:     strconv.Itoa(ttl),
		},
	}
	var response PorkbunResponse
	if rec == nil {
		vo.Name = host.SubDomain
		vo.Type = recordType
		return pb.request(ctx, fmt.Sprintf("/create/%s", host.DomainName), vo, "upsert", &response)
	}
	return pb.request(ctx, pb.recordPath("editByNameType", target, recordType), vo, "upsert", &response)
}

func (pb *Porkbun) lookup(ctx context.Context, target *config.Target, recordType, op string) (*PorkbunDomainRecord, error) {
	var record PorkbunDomainQueryResponse
	if err := pb.request(ctx, pb.recordPath("retrieveByNameType", target, recordType), &pb.keys, op, &record); err != nil {
		return nil, err
	}
	if len(record.Records) == 0 {
		return nil, nil
	}
	return &record.Records[0], nil
}

func (pb *Porkbun) recordPath(action string, target *config.Target, recordType string) string {
	host := target.Host()
	path := fmt.Sprintf("/%s/%s/%s", action, host.DomainName, recordType)
	if host.SubDomain != "" {
		path += "/" + host.SubDomain
	}
	return path
}

// request 统一请求接口
func (pb *Porkbun) request(ctx context.Context, path string, data any, op string, result statusHolder) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pb.endpoint+path, bytes.NewReader(buf))
	if err != nil {
		return &ddns.ProviderError{Kind: ddns.ValidationError, Provider: Code, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := util.DoJSON(pb.client, req, Code, op, result)
	if err != nil {
		if pe, ok := ddns.AsProviderError(err); ok && pe.StatusCode != 0 {
			var failed PorkbunResponse
			if json.Unmarshal(raw, &failed) == nil && failed.Message != "" {
				pe.Err = errors.Errorf("%s: %s", path, failed.Message)
				if isAuthMessage(failed.Message) {
					pe.Kind = ddns.AuthError
				}
			}
		}
		return err
	}
	if s := result.status(); s.Status != "SUCCESS" {
		kind := ddns.ValidationError
		if isAuthMessage(s.Message) {
			kind = ddns.AuthError
		}
		return &ddns.ProviderError{Kind: kind, Provider: Code, Op: op, Err: errors.Errorf("%s: status %q: %s", path, s.Status, s.Message)}
	}
	return nil
}

// porkbun answers bad keys with 400 and a message rather than 401.
func isAuthMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "api key")
}

type statusHolder interface {
	status() PorkbunResponse
}

func (r *PorkbunResponse) status() PorkbunResponse {
	return *r
}
