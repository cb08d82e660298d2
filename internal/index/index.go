package index

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/venue-events/internal/event"
)

// ErrUnavailable marks failures that mean the index cannot be reached at all,
// as opposed to a single rejected write.
var ErrUnavailable = errors.New("index unavailable")

// AllCities is the city filter value that disables city filtering.
const AllCities = "all"

// Document is the indexed form of an event. URL is the document identity.
type Document struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Source        string     `json:"source"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	URL           string     `json:"url"`
	RawLocation   string     `json:"rawLocation"`
	City          string     `json:"city"`
	ExactLocation []float64  `json:"exactLocation"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// FromEvent converts an event into its index document.
func FromEvent(e *event.Event) Document {
	loc := []float64{}
	if len(e.ExactLocation) == 2 {
		loc = []float64{e.ExactLocation[0], e.ExactLocation[1]}
	}
	return Document{
		Title:         e.Title,
		Description:   e.Description,
		Source:        e.Source,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		URL:           e.URL,
		RawLocation:   e.RawLocation,
		City:          e.City,
		ExactLocation: loc,
		CreatedAt:     e.CreatedAt,
	}
}

// Query filters a search.
type Query struct {
	// Text matches title or description, case-insensitively. Empty matches all.
	Text string
	// City matches exactly. Empty or AllCities matches all.
	City string
	// From is an inclusive lower bound on StartTime. Zero means unbounded.
	From time.Time
	// Limit caps the result count. Zero means unlimited.
	Limit int
}

// CityFilter returns the city to filter on, or "" for no filter.
func (q Query) CityFilter() string {
	city := strings.TrimSpace(q.City)
	if strings.EqualFold(city, AllCities) {
		return ""
	}
	return city
}

// Indexer writes documents. Upsert replaces any document with the same URL.
type Indexer interface {
	Upsert(ctx context.Context, doc Document) error
}

// Searcher answers queries over indexed documents.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Document, error)
	Cities(ctx context.Context) ([]string, error)
}

// Index is a full backend.
type Index interface {
	Indexer
	Searcher
	Close() error
}

// Pinger is implemented by backends that can check reachability up front.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Matches reports whether doc satisfies q. Backends without a query
// language share it.
func (q Query) Matches(doc Document) bool {
	if !q.From.IsZero() && doc.StartTime.Before(q.From) {
		return false
	}
	if city := q.CityFilter(); city != "" && doc.City != city {
		return false
	}
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		if !strings.Contains(strings.ToLower(doc.Title), text) &&
			!strings.Contains(strings.ToLower(doc.Description), text) {
			return false
		}
	}
	return true
}

// filterDocuments applies q to docs, sorted by start time then URL.
func filterDocuments(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].URL < out[j].URL
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// distinctCities returns the sorted set of non-empty cities in docs.
func distinctCities(docs []Document) []string {
	seen := make(map[string]bool)
	cities := make([]string, 0)
	for _, d := range docs {
		if d.City == "" || seen[d.City] {
			continue
		}
		seen[d.City] = true
		cities = append(cities, d.City)
	}
	sort.Strings(cities)
	return cities
}
