package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	GoogleBaseURL   = "https://maps.googleapis.com"
	DefaultLanguage = "iw"
	UserAgent       = "venue-events/1.0 (github.com/pfrederiksen/venue-events)"
)

// AddressComponent is one part of a provider's structured address.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// LatLng is a point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry holds a result's position.
type Geometry struct {
	Location LatLng `json:"location"`
}

// Result is a single geocoding match.
type Result struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []AddressComponent `json:"address_components"`
	Geometry          Geometry           `json:"geometry"`
}

// Locality returns the long name of the first address component typed
// "locality", or "" when the result has none.
func (r Result) Locality() string {
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if t == "locality" {
				return c.LongName
			}
		}
	}
	return ""
}

// googleResponse is the Geocoding API JSON envelope.
type googleResponse struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Results      []Result `json:"results"`
}

// GoogleProvider queries the Google Maps Geocoding API.
type GoogleProvider struct {
	client   *resty.Client
	apiKey   string
	language string
}

// NewGoogleProvider creates a provider. An empty baseURL targets Google;
// an empty language uses DefaultLanguage.
func NewGoogleProvider(apiKey, baseURL, language string) *GoogleProvider {
	if baseURL == "" {
		baseURL = GoogleBaseURL
	}
	if language == "" {
		language = DefaultLanguage
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", UserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &GoogleProvider{
		client:   client,
		apiKey:   apiKey,
		language: language,
	}
}

// Geocode looks up address. A ZERO_RESULTS status yields an empty slice.
func (g *GoogleProvider) Geocode(ctx context.Context, address string) ([]Result, error) {
	var body googleResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address":  address,
			"key":      g.apiKey,
			"language": g.language,
		}).
		SetResult(&body).
		Get("/maps/api/geocode/json")
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("geocoding API returned status %d", resp.StatusCode())
	}

	switch body.Status {
	case "OK":
		return body.Results, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		if body.ErrorMessage != "" {
			return nil, fmt.Errorf("geocoding API status %s: %s", body.Status, body.ErrorMessage)
		}
		return nil, fmt.Errorf("geocoding API status %s", body.Status)
	}
}
