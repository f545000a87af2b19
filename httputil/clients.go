package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

// NewProxiedClient builds a client that egresses through proxyURL. HTTP/2 is
// disabled because the upstream fingerprints h2 traffic through the gate
// differently, and redirects are surfaced to the caller instead of followed
// so 301/302 can be classified like any other terminal status.
func NewProxiedClient(proxyURL string, timeout time.Duration) *http.Client {
	parsed, _ := url.Parse(proxyURL)

	transport := &http.Transport{
		Proxy:             http.ProxyURL(parsed),
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewDirectClient builds an unproxied client for first-party services
// (rendering gateway, storage APIs).
func NewDirectClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
