//go:build integration

package integration

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"testing"
)

var basePostings = map[string][]string{
	"coal":      {"CR003", "CR001"},
	"seam":      {"CR002", "CR003"},
	"coal seam": {"CR003"},
}

type searchBody struct {
	Query        string   `json:"query"`
	Status       string   `json:"status"`
	Results      []string `json:"results"`
	Count        int      `json:"count"`
	LargeResult  bool     `json:"large_result"`
	MissingTerms []string `json:"missing_terms"`
	Messages     []string `json:"messages"`
	IndexVersion string   `json:"index_version"`
}

func getSearch(t *testing.T, url string) (*http.Response, searchBody) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("search request failed: %v", err)
	}
	defer resp.Body.Close()
	var body searchBody
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

// TestSearchScenarios runs the user-facing scenarios through the full
// middleware chain against an index fetched over HTTP.
func TestSearchScenarios(t *testing.T) {
	_, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{})

	tests := []struct {
		name    string
		query   string
		status  string
		results []string
	}{
		{"single term", "q=coal", "found", []string{"CR001", "CR003"}},
		{"phrase", "q=coal+seam", "found", []string{"CR003"}},
		{"and", "q=coal+AND+seam", "found", []string{"CR003"}},
		{"or", "q=coal+OR+seam", "found", []string{"CR001", "CR002", "CR003"}},
		{"not", "term1=coal&join1=NOT&term2=seam", "found", []string{"CR001"}},
		{"three terms", "term1=coal&join1=OR&term2=seam&join2=NOT&term3=coal+seam", "found", []string{"CR001", "CR002"}},
		{"missing term", "q=coal+AND+gold", "term_not_found", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := getSearch(t, srv.URL+"/api/v1/search?"+tt.query)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("response missing X-Request-ID")
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
			if !reflect.DeepEqual(body.Results, tt.results) {
				t.Errorf("results = %v, want %v", body.Results, tt.results)
			}
			if body.IndexVersion == "" {
				t.Error("index_version should be set")
			}
		})
	}
}

func TestLargeResultThroughStack(t *testing.T) {
	_, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{threshold: 2})

	_, body := getSearch(t, srv.URL+"/api/v1/search?q=coal+OR+seam")
	if !body.LargeResult || body.Count != 3 || len(body.Results) != 3 {
		t.Errorf("large result = %+v", body)
	}
}

func TestExportThroughStack(t *testing.T) {
	_, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{})

	resp, err := http.Get(srv.URL + "/api/v1/search/export?term1=coal&join1=OR&term2=seam")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "coal_OR_seam_search_results.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"report_pid"}, {"CR001"}, {"CR002"}, {"CR003"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

// TestRefreshPicksUpNewIndex verifies the admin refresh is authenticated and
// that searches see the new index once it is installed.
func TestRefreshPicksUpNewIndex(t *testing.T) {
	ri, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{adminKey: "admin-secret"})

	_, before := getSearch(t, srv.URL+"/api/v1/search?q=gold")
	if before.Status != "term_not_found" {
		t.Fatalf("status before refresh = %q", before.Status)
	}

	updated := map[string][]string{"gold": {"CR009"}}
	for k, v := range basePostings {
		updated[k] = v
	}
	ri.set(t, updated)

	resp, err := http.Post(srv.URL+"/api/v1/index/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh without key: expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/index/refresh", nil)
	req.Header.Set("X-API-Key", "admin-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh with key: expected 200, got %d", resp.StatusCode)
	}

	_, after := getSearch(t, srv.URL+"/api/v1/search?q=gold")
	if after.Status != "found" || !reflect.DeepEqual(after.Results, []string{"CR009"}) {
		t.Errorf("after refresh = %+v", after)
	}
	if after.IndexVersion == before.IndexVersion {
		t.Error("index version should change when the content changes")
	}
	if n := ri.fetches.Load(); n != 2 {
		t.Errorf("remote fetched %d times, want 2", n)
	}
}

func TestRateLimitedStack(t *testing.T) {
	_, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		resp, _ := getSearch(t, srv.URL+"/api/v1/search?q=coal")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	resp, _ := getSearch(t, srv.URL+"/api/v1/search?q=coal")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, remote := newRemoteIndex(t, basePostings)
	srv := newSearchServer(t, remote.URL, serverOptions{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/search", nil)
	req.Header.Set("Origin", "https://reports.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://reports.example" {
		t.Errorf("Allow-Origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
