package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/venue-events/internal/calendar"
	"github.com/pfrederiksen/venue-events/internal/index"
	"github.com/pfrederiksen/venue-events/internal/logger"
)

// SearchResult is one event in a /search response.
type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// Location is the resolved city, or the raw location when geocoding failed.
	Location string `json:"location"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	// StartTime is in Unix milliseconds.
	StartTime int64 `json:"startTime"`
}

func newSearchResult(d index.Document) SearchResult {
	location := d.City
	if location == "" {
		location = d.RawLocation
	}
	return SearchResult{
		Title:       d.Title,
		Description: d.Description,
		Location:    location,
		Source:      d.Source,
		URL:         d.URL,
		StartTime:   d.StartTime.UnixMilli(),
	}
}

// searchQuery builds the index query shared by /search and /calendar.ics.
func (s *Server) searchQuery(r *http.Request) (index.Query, error) {
	params := r.URL.Query()

	from, err := parseFromDate(params.Get("fromDate"), s.loc)
	if err != nil {
		return index.Query{}, err
	}

	return index.Query{
		Text:  params.Get("query"),
		City:  params.Get("city"),
		From:  from,
		Limit: s.limit,
	}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := s.searchQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, newSearchResult(d))
	}
	writeJSON(w, http.StatusOK, results)
}

// handleCalendar serves the same results as /search as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q, err := s.searchQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	if err := calendar.Write(w, docs, time.Now()); err != nil {
		s.log.Warn("Failed to write calendar", logger.Fields{"path": r.URL.Path}, err)
	}
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.searcher.Cities(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// internalError logs err and answers with an opaque 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("Request failed", logger.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
	}, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// parseFromDate accepts Unix milliseconds, RFC 3339 or YYYY-MM-DD (midnight
// in loc). An empty value means no lower bound.
func parseFromDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid fromDate %q: want unix milliseconds, RFC 3339 or YYYY-MM-DD", raw)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
