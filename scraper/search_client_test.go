package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadsweep/config"
	"leadsweep/proxy"
)

var testRegion = config.Region{
	Name:   "georgia",
	State:  "GA",
	North:  35.000659,
	South:  30.355644,
	East:   -80.751429,
	West:   -85.605165,
	Filter: "Georgia",
}

func emptyPool() *proxy.Pool {
	return proxy.NewPool(config.ProxyConfig{}, time.Second)
}

func newTestSearchClient(t *testing.T, handler http.HandlerFunc) *SearchClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewSearchClient(config.SourceConfig{
		SearchURL: srv.URL,
		PageSize:  100,
		Timeout:   time.Second,
	}, emptyPool())
}

func TestFetchPageSendsQueryState(t *testing.T) {
	type queryState struct {
		SearchQueryState struct {
			Pagination struct {
				CurrentPage int `json:"currentPage"`
			} `json:"pagination"`
			UsersSearchTerm string `json:"usersSearchTerm"`
			MapBounds       struct {
				North float64 `json:"north"`
				South float64 `json:"south"`
				East  float64 `json:"east"`
				West  float64 `json:"west"`
			} `json:"mapBounds"`
		} `json:"searchQueryState"`
		RequestID int `json:"requestId"`
	}

	var gotMethod, gotContentType string
	var gotBody queryState
	client := newTestSearchClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"listResults": []map[string]any{{"zpid": "70982473"}},
		})
	})

	listings, err := client.FetchPage(context.Background(), testRegion, 2)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}
	if got := listings[0].String("zpid"); got != "70982473" {
		t.Errorf("zpid = %q", got)
	}

	if gotMethod != "PUT" {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody.SearchQueryState.Pagination.CurrentPage != 2 {
		t.Errorf("currentPage = %d, want 2", gotBody.SearchQueryState.Pagination.CurrentPage)
	}
	if gotBody.SearchQueryState.UsersSearchTerm != "Georgia" {
		t.Errorf("usersSearchTerm = %q", gotBody.SearchQueryState.UsersSearchTerm)
	}
	if gotBody.SearchQueryState.MapBounds.North != testRegion.North {
		t.Errorf("north = %v, want %v", gotBody.SearchQueryState.MapBounds.North, testRegion.North)
	}
	if gotBody.SearchQueryState.MapBounds.West != testRegion.West {
		t.Errorf("west = %v, want %v", gotBody.SearchQueryState.MapBounds.West, testRegion.West)
	}
	if gotBody.RequestID != 2 {
		t.Errorf("requestId = %d, want 2", gotBody.RequestID)
	}
}

func TestFetchPageResultKeyVariants(t *testing.T) {
	record := []map[string]any{{"zpid": "9", "addressState": "GA"}}
	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"listResults", map[string]any{"listResults": record}, 1},
		{"mapResults", map[string]any{"mapResults": record}, 1},
		{"results", map[string]any{"results": record}, 1},
		{"nested cat1", map[string]any{"cat1": map[string]any{"searchResults": map[string]any{"listResults": record}}}, 1},
		{"empty", map[string]any{}, 0},
	}

	for _, tc := range cases {
		client := newTestSearchClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(tc.body)
		})
		listings, err := client.FetchPage(context.Background(), testRegion, 1)
		if err != nil {
			t.Fatalf("%s: FetchPage: %v", tc.name, err)
		}
		if len(listings) != tc.want {
			t.Errorf("%s: got %d listings, want %d", tc.name, len(listings), tc.want)
		}
		if tc.want > 0 && listings[0].String("zpid") != "9" {
			t.Errorf("%s: zpid = %q, want 9", tc.name, listings[0].String("zpid"))
		}
	}
}

func TestFetchPageHTTPError(t *testing.T) {
	client := newTestSearchClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	if _, err := client.FetchPage(context.Background(), testRegion, 1); err == nil {
		t.Fatal("expected error for status 403")
	}
}

func TestFetchPageFallsBackToDirect(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]any{
			"listResults": []map[string]any{{"zpid": "7"}},
		})
	}))
	t.Cleanup(srv.Close)

	// A session pointed at a closed port makes every proxied request fail.
	pool := proxy.NewPool(config.ProxyConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "user",
		Password: "pass",
		Sessions: []string{"s1"},
	}, 500*time.Millisecond)

	client := NewSearchClient(config.SourceConfig{
		SearchURL: srv.URL,
		PageSize:  100,
		Timeout:   time.Second,
	}, pool)

	listings, err := client.FetchPage(context.Background(), testRegion, 1)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(listings) != 1 || listings[0].String("zpid") != "7" {
		t.Fatalf("listings = %+v, want single zpid 7", listings)
	}
	if hits != 1 {
		t.Errorf("direct hits = %d, want 1", hits)
	}
}
