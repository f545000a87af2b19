package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"

	"leadsweep/config"
	"leadsweep/httputil"
	"leadsweep/models"
	"leadsweep/proxy"
)

// SearchClient queries the source's map-search API for one bounding box at a
// time. Requests go out through a random proxy session; a failed proxied
// request is retried once directly, because a stale session should not sink
// the whole region.
type SearchClient struct {
	cfg    config.SourceConfig
	pool   *proxy.Pool
	direct *http.Client
}

func NewSearchClient(cfg config.SourceConfig, pool *proxy.Pool) *SearchClient {
	return &SearchClient{
		cfg:    cfg,
		pool:   pool,
		direct: httputil.NewDirectClient(cfg.Timeout),
	}
}

func (c *SearchClient) Name() string {
	return "search-api"
}

func (c *SearchClient) FetchPage(ctx context.Context, region config.Region, page int) ([]models.RawListing, error) {
	log.Printf("Search: fetching page %d for %s", page, region.Name)

	_, client, err := c.pool.Pick()
	if err != nil {
		client = c.direct
	}

	listings, err := c.fetchPage(ctx, client, region, page)
	if err != nil && client != c.direct {
		log.Printf("Warning: proxied search failed (%v), retrying direct", err)
		listings, err = c.fetchPage(ctx, c.direct, region, page)
	}
	return listings, err
}

func (c *SearchClient) fetchPage(ctx context.Context, client *http.Client, region config.Region, page int) ([]models.RawListing, error) {
	reqBody := map[string]any{
		"searchQueryState": map[string]any{
			"pagination":      map[string]any{"currentPage": page},
			"usersSearchTerm": region.Filter,
			"mapBounds": map[string]any{
				"north": region.North,
				"south": region.South,
				"east":  region.East,
				"west":  region.West,
			},
			"filterState": map[string]any{
				"sortSelection": map[string]any{"value": "globalrelevanceex"},
				"isAllHomes":    map[string]any{"value": true},
			},
			"isListVisible": true,
		},
		"wants": map[string]any{
			"cat1": []string{"listResults", "mapResults"},
		},
		"requestId": page,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.cfg.SearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed models.RawListing
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	return extractResults(parsed), nil
}

// The response schema is unstable; the record list has been observed under
// each of these keys, and lately nested under cat1.searchResults.
var searchResultKeys = []string{"listResults", "mapResults", "results"}

func extractResults(body models.RawListing) []models.RawListing {
	for _, key := range searchResultKeys {
		if entries := body.Maps(key); len(entries) > 0 {
			return entries
		}
	}
	if nested := body.Map("cat1").Map("searchResults"); nested != nil {
		for _, key := range searchResultKeys {
			if entries := nested.Maps(key); len(entries) > 0 {
				return entries
			}
		}
	}
	return nil
}
