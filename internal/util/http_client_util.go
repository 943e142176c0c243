package util

import (
	"context"
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

var dialer = &net.Dialer{
	Timeout:   defaultTimeout,
	KeepAlive: defaultTimeout,
}

var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	DialContext:           dialer.DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// CreateHTTPClient Create Default HTTP Client
func CreateHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: defaultTransport,
	}
}

// CreateNoProxyHTTPClient creates a client that ignores proxies and dials
// only network, "tcp4" or "tcp6", so the peer sees the host's own address
// of that family.
func CreateNoProxyHTTPClient(network string) *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
