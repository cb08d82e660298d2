package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pfrederiksen/venue-events/internal/logger"
	"github.com/pfrederiksen/venue-events/internal/metrics"
)

// DefaultTimeout bounds a single provider lookup.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoResults is returned when the provider knows nothing about a location.
	ErrNoResults = errors.New("no geocoding results")

	// ErrEmptyLocation is returned for blank input; the provider is not called.
	ErrEmptyLocation = errors.New("empty location")
)

// DefaultTranslations maps provider city names to the local-language form
// listings use.
var DefaultTranslations = map[string]string{
	"Tel Aviv-Yafo": "תל אביב יפו",
}

// Location is a resolved address: [lat, lng] and the locality name.
type Location struct {
	Coordinates [2]float64 `json:"coordinates"`
	City        string     `json:"city"`
}

// GeocodeError wraps any failure to resolve a location.
type GeocodeError struct {
	Location string
	Err      error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocoding %q: %v", e.Location, e.Err)
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

// Provider is an external geocoding service.
type Provider interface {
	Geocode(ctx context.Context, address string) ([]Result, error)
}

// Resolver resolves free-text locations through a Provider, memoizing
// successful answers. Concurrent lookups of the same uncached location share
// one provider call.
type Resolver struct {
	provider     Provider
	cache        *Cache
	group        singleflight.Group
	translations map[string]string
	timeout      time.Duration
	log          *logger.Logger
	metrics      *metrics.Geocoder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares an existing cache.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithTranslations replaces the city name translation table.
func WithTranslations(t map[string]string) Option {
	return func(r *Resolver) { r.translations = t }
}

// WithTimeout bounds each provider call. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger for cache misses and provider failures.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithMetrics records lookups by outcome.
func WithMetrics(m *metrics.Geocoder) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver backed by provider.
func NewResolver(provider Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider:     provider,
		cache:        NewCache(),
		translations: DefaultTranslations,
		timeout:      DefaultTimeout,
		log:          logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the coordinates and city for location.
func (r *Resolver) Resolve(ctx context.Context, location string) (Location, error) {
	if loc, ok := r.cache.Get(location); ok {
		r.metrics.Observe(metrics.OutcomeHit)
		return loc, nil
	}

	if strings.TrimSpace(location) == "" {
		r.metrics.Observe(metrics.OutcomeError)
		return Location{}, &GeocodeError{Location: location, Err: ErrEmptyLocation}
	}

	v, err, _ := r.group.Do(location, func() (interface{}, error) {
		// Another caller may have finished while this one waited for the group.
		if loc, ok := r.cache.Get(location); ok {
			return loc, nil
		}
		loc, err := r.lookup(ctx, location)
		if err != nil {
			return Location{}, err
		}
		r.cache.Set(location, loc)
		return loc, nil
	})
	if err != nil {
		r.metrics.Observe(metrics.OutcomeError)
		r.log.Debug("geocoding failed", logger.Fields{"location": location, "error": err.Error()})
		return Location{}, &GeocodeError{Location: location, Err: err}
	}

	r.metrics.Observe(metrics.OutcomeMiss)
	return v.(Location), nil
}

func (r *Resolver) lookup(ctx context.Context, location string) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.provider.Geocode(ctx, location)
	if err != nil {
		return Location{}, err
	}
	if len(results) == 0 {
		return Location{}, ErrNoResults
	}

	first := results[0]
	city := first.Locality()
	if translated, ok := r.translations[city]; ok {
		city = translated
	}

	r.log.Debug("geocoded location", logger.Fields{"location": location, "city": city})

	return Location{
		Coordinates: [2]float64{first.Geometry.Location.Lat, first.Geometry.Location.Lng},
		City:        city,
	}, nil
}
