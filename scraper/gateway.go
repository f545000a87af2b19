package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"leadsweep/backoff"
	"leadsweep/config"
)

// Terminal outcomes of a rendered fetch. Anything else is transient.
var (
	ErrNotFound = errors.New("page not found")
	ErrBlocked  = errors.New("request blocked upstream")
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// GatewayClient fetches detail pages through the JS-rendering service. The
// gateway does its own egress, so this client connects directly; the session
// parameter just names the identity the gateway should reuse.
type GatewayClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig, client *http.Client) *GatewayClient {
	return &GatewayClient{cfg: cfg, client: client}
}

// FetchRendered returns the final HTML of targetURL. A 404-class status maps
// to ErrNotFound, a block-class status to ErrBlocked.
func (g *GatewayClient) FetchRendered(ctx context.Context, targetURL, session string) (string, error) {
	params := url.Values{}
	params.Set("api_key", g.cfg.APIKey)
	params.Set("url", targetURL)
	params.Set("render", strconv.FormatBool(g.cfg.Render))
	params.Set("country_code", g.cfg.Country)
	params.Set("premium", "true")
	if session != "" {
		params.Set("session_number", session)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrBlocked
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", errors.New("empty response body")
	}
	return string(body), nil
}

// ClassifyError maps a fetch error onto the backoff class that should pace
// the retry.
func ClassifyError(err error) backoff.Class {
	switch {
	case errors.Is(err, ErrNotFound):
		return backoff.ClassNotFound
	case errors.Is(err, ErrBlocked):
		return backoff.ClassBlocked
	default:
		return backoff.ClassTransient
	}
}
