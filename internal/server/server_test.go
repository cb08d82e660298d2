package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pfrederiksen/venue-events/internal/index"
	"github.com/pfrederiksen/venue-events/internal/logger"
	"github.com/pfrederiksen/venue-events/internal/metrics"
)

var may5 = time.Date(2023, time.May, 5, 20, 30, 0, 0, time.UTC)

func seedIndex(t *testing.T) *index.MemoryIndex {
	t.Helper()
	idx := index.NewMemoryIndex()
	docs := []index.Document{
		{
			Title: "ערב ג'אז", Description: "Live jazz", Source: "הקתדרה",
			StartTime: may5.Add(24 * time.Hour), URL: "https://x.test/e/2",
			RawLocation: "היכל התרבות", City: "תל אביב יפו", ExactLocation: []float64{32.08, 34.78},
		},
		{
			Title: "Lecture", Description: "History of jazz", Source: "יד בן צבי",
			StartTime: may5, URL: "https://x.test/e/1",
			RawLocation: "אבן גבירול 14, ירושלים", City: "ירושלים", ExactLocation: []float64{31.77, 35.21},
		},
		{
			Title: "Old show", Source: "הקתדרה",
			StartTime: may5.Add(-30 * 24 * time.Hour), URL: "https://x.test/e/0",
			RawLocation: "Somewhere unresolved", ExactLocation: []float64{},
		},
	}
	for _, d := range docs {
		if err := idx.Upsert(context.Background(), d); err != nil {
			t.Fatalf("seeding index: %v", err)
		}
	}
	return idx
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResults(t *testing.T, rec *httptest.ResponseRecorder) []SearchResult {
	t.Helper()
	var results []SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return results
}

func TestHandleSearch(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard())).Handler()

	tests := []struct {
		name     string
		target   string
		wantURLs []string
	}{
		{"no filters", "/search", []string{"https://x.test/e/0", "https://x.test/e/1", "https://x.test/e/2"}},
		{"query matches description", "/search?query=JAZZ", []string{"https://x.test/e/1", "https://x.test/e/2"}},
		{"query matches title", "/search?query=%D7%92%27%D7%90%D7%96", []string{"https://x.test/e/2"}},
		{"city", "/search?city=%D7%99%D7%A8%D7%95%D7%A9%D7%9C%D7%99%D7%9D", []string{"https://x.test/e/1"}},
		{"city all", "/search?city=All", []string{"https://x.test/e/0", "https://x.test/e/1", "https://x.test/e/2"}},
		{"from unix ms", "/search?fromDate=1683244800000", []string{"https://x.test/e/1", "https://x.test/e/2"}},
		{"from date only", "/search?fromDate=2023-05-06", []string{"https://x.test/e/2"}},
		{"from rfc3339", "/search?fromDate=2023-05-05T20:30:00Z", []string{"https://x.test/e/1", "https://x.test/e/2"}},
		{"no match", "/search?query=opera", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
			}
			results := decodeResults(t, rec)
			if len(results) != len(tt.wantURLs) {
				t.Fatalf("got %d results, want %d: %+v", len(results), len(tt.wantURLs), results)
			}
			for i, want := range tt.wantURLs {
				if results[i].URL != want {
					t.Errorf("result[%d].URL = %q, want %q", i, results[i].URL, want)
				}
			}
		})
	}
}

func TestHandleSearch_ResultShape(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard())).Handler()

	rec := get(t, h, "/search")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	var raw []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	for _, key := range []string{"title", "description", "location", "source", "url", "startTime"} {
		if _, ok := raw[1][key]; !ok {
			t.Errorf("result missing key %q", key)
		}
	}

	results := decodeResults(t, rec)
	if results[1].StartTime != may5.UnixMilli() {
		t.Errorf("StartTime = %d, want %d", results[1].StartTime, may5.UnixMilli())
	}
	if results[1].Location != "ירושלים" {
		t.Errorf("Location = %q, want resolved city", results[1].Location)
	}
	if results[0].Location != "Somewhere unresolved" {
		t.Errorf("Location = %q, want raw location fallback", results[0].Location)
	}
}

func TestHandleSearch_BadFromDate(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard())).Handler()

	rec := get(t, h, "/search?fromDate=next-week")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSearch_Limit(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard()), WithLimit(1)).Handler()

	results := decodeResults(t, get(t, h, "/search"))
	if len(results) != 1 || results[0].URL != "https://x.test/e/0" {
		t.Errorf("results = %+v", results)
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(ctx context.Context, q index.Query) ([]index.Document, error) {
	return nil, errors.New("pq: relation \"events\" does not exist")
}

func (failingSearcher) Cities(ctx context.Context) ([]string, error) {
	return nil, index.ErrUnavailable
}

func TestBackendFailure(t *testing.T) {
	var logs bytes.Buffer
	h := New(failingSearcher{}, WithLogger(logger.New(logger.LevelInfo, &logs))).Handler()

	for _, target := range []string{"/search?query=x", "/cities"} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h, target)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("Content-Type = %q", ct)
			}
			if body := strings.TrimSpace(rec.Body.String()); body != "internal server error" {
				t.Errorf("body = %q", body)
			}
			if strings.Contains(rec.Body.String(), "pq:") {
				t.Error("backend error leaked into response")
			}
		})
	}
	if !strings.Contains(logs.String(), "relation") {
		t.Errorf("backend error not logged:\n%s", logs.String())
	}
}

func TestHandleCities(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard())).Handler()

	rec := get(t, h, "/cities")
	var cities []string
	if err := json.Unmarshal(rec.Body.Bytes(), &cities); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(cities) != 2 || cities[0] != "ירושלים" || cities[1] != "תל אביב יפו" {
		t.Errorf("cities = %v", cities)
	}

	rec = get(t, New(index.NewMemoryIndex(), WithLogger(logger.Discard())).Handler(), "/cities")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty index body = %q, want []", body)
	}
}

func TestHealthAndCORS(t *testing.T) {
	h := New(index.NewMemoryIndex(), WithLogger(logger.Discard())).Handler()

	rec := get(t, h, "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header on /health")
	}

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	if pre.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", pre.Code)
	}
	if pre.Header().Get("Access-Control-Allow-Headers") != "content-type" {
		t.Errorf("Allow-Headers = %q", pre.Header().Get("Access-Control-Allow-Headers"))
	}

	rec = get(t, h, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
}

func TestHandleCalendar(t *testing.T) {
	h := New(seedIndex(t), WithLogger(logger.Discard())).Handler()

	rec := get(t, h, "/calendar.ics?city=%D7%99%D7%A8%D7%95%D7%A9%D7%9C%D7%99%D7%9D")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if got := strings.Count(body, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
	if !strings.Contains(body, "SUMMARY:Lecture") {
		t.Errorf("feed missing lecture:\n%s", body)
	}

	rec = get(t, h, "/calendar.ics?fromDate=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad fromDate status = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTP(reg)
	h := New(seedIndex(t), WithLogger(logger.Discard()), WithMetrics(m, reg)).Handler()

	get(t, h, "/search")
	get(t, h, "/search?fromDate=bad")
	get(t, h, "/cities")

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "venue_events_http_requests_total") {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}

	count, err := testutil.GatherAndCount(reg, "venue_events_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("got %d request series, want 3", count)
	}
}

func TestParseFromDate(t *testing.T) {
	jerusalem := time.FixedZone("IST", 3*60*60)

	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"  ", time.Time{}, false},
		{"1683318600000", may5, false},
		{"2023-05-05T20:30:00Z", may5, false},
		{"2023-05-05", time.Date(2023, time.May, 5, 0, 0, 0, 0, jerusalem), false},
		{"05/05/2023", time.Time{}, true},
		{"soon", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseFromDate(tt.raw, jerusalem)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFromDate(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseFromDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := New(index.NewMemoryIndex(), WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
