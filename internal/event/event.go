package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/venue-events/internal/geocode"
)

// ErrMissingURL is returned when a listing has no detail page URL to key it by.
var ErrMissingURL = errors.New("event url is empty")

// Raw holds the fields a source adapter extracted for one listing, untrimmed.
// EndRaw is nil when the listing has no end time.
type Raw struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
	StartRaw    string  `json:"start_raw"`
	RawLocation string  `json:"raw_location"`
	EndRaw      *string `json:"end_raw,omitempty"`
	URL         string  `json:"url"`
}

// Event is the canonical record of a single show, lecture or exhibition.
// URL is its identity across ingestion runs.
type Event struct {
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

// Resolver turns a free-text location into coordinates and a city.
type Resolver interface {
	Resolve(ctx context.Context, location string) (geocode.Location, error)
}

// Builder constructs Events from raw listings.
type Builder struct {
	Parser *DateParser
	Clock  func() time.Time
}

// NewBuilder creates a Builder that stamps CreatedAt with the current UTC time.
func NewBuilder(parser *DateParser) *Builder {
	return &Builder{
		Parser: parser,
		Clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Build trims every field of raw and parses its dates.
// A missing URL or an unparseable start date fails the whole listing;
// an end date is parsed only when one was supplied.
func (b *Builder) Build(raw Raw) (*Event, error) {
	evt := &Event{
		Title:         strings.TrimSpace(raw.Title),
		Description:   strings.TrimSpace(raw.Description),
		Source:        strings.TrimSpace(raw.Source),
		URL:           strings.TrimSpace(raw.URL),
		RawLocation:   strings.TrimSpace(raw.RawLocation),
		ExactLocation: []float64{},
		CreatedAt:     b.Clock(),
	}

	if evt.URL == "" {
		return nil, ErrMissingURL
	}

	start, err := b.Parser.Parse(raw.StartRaw)
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	evt.StartTime = start

	if raw.EndRaw != nil {
		end, err := b.Parser.Parse(*raw.EndRaw)
		if err != nil {
			return nil, fmt.Errorf("end time: %w", err)
		}
		evt.EndTime = &end
	}

	return evt, nil
}

// Enrich resolves RawLocation and records the city and coordinates.
// On failure the event keeps its empty location fields and the error is
// returned for the caller to record; the event remains indexable.
func (e *Event) Enrich(ctx context.Context, r Resolver) error {
	loc, err := r.Resolve(ctx, e.RawLocation)
	if err != nil {
		return err
	}
	e.City = loc.City
	e.ExactLocation = []float64{loc.Coordinates[0], loc.Coordinates[1]}
	return nil
}

// HasLocation reports whether enrichment succeeded.
func (e *Event) HasLocation() bool {
	return len(e.ExactLocation) == 2
}
