package util

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// StatusError is a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.StatusCode, Snippet(e.Body))
}

// GetHTTPResponseOrg reads the whole body of resp. err is the error of the
// call that produced resp and is returned wrapped when set.
func GetHTTPResponseOrg(resp *http.Response, url string, err error) ([]byte, error) {
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read response of %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{URL: url, StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	}
	return body, nil
}

// DoJSON sends req and decodes a 2xx JSON response into result, if not nil.
// Failures are returned as *ddns.ProviderError; the body is returned even for
// non-2xx responses so callers can read provider specific details.
func DoJSON(client *http.Client, req *http.Request, provider, op string, result any) ([]byte, error) {
	target := req.Method + " " + req.URL.Path
	resp, err := client.Do(req)
	body, err := GetHTTPResponseOrg(resp, target, err)
	if err != nil {
		pe := &ddns.ProviderError{Kind: ddns.TransportError, Provider: provider, Op: op, Err: err}
		var se *StatusError
		if errors.As(err, &se) {
			pe.Kind = ddns.KindForStatus(se.StatusCode)
			pe.StatusCode = se.StatusCode
			if pe.Kind == ddns.RateLimited {
				pe.RetryAfter = ParseRetryAfter(se.Header.Get(consts.HeaderRetryAfter), time.Now())
			}
		}
		return body, pe
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return body, &ddns.ProviderError{
				Kind:     ddns.TransportError,
				Provider: provider,
				Op:       op,
				Err:      errors.Wrapf(err, "decode response of %s", target),
			}
		}
	}
	return body, nil
}

// ParseRetryAfter reads a Retry-After value given either in seconds or as an
// HTTP date. It returns zero when v is empty, unparsable or in the past.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Snippet shortens a response body for error messages.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
