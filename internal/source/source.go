package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/venue-events/internal/event"
)

// parseFunc maps a listing document into raw tuples. base is the URL
// relative links are resolved against.
type parseFunc func(doc *goquery.Document, base *url.URL, location string) []event.Raw

// Adapter fetches a venue's listing page and extracts its events.
type Adapter struct {
	name     string
	pageURL  string
	base     *url.URL
	location string
	fetcher  Fetcher
	parse    parseFunc
}

func (a *Adapter) Name() string {
	return a.name
}

// URL returns the listing page the adapter reads.
func (a *Adapter) URL() string {
	return a.pageURL
}

// Fetch downloads the listing page and returns one raw tuple per listing.
func (a *Adapter) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := a.fetcher.Fetch(ctx, a.pageURL)
	if err != nil {
		return nil, err
	}
	return a.Parse(body)
}

// Parse extracts raw tuples from an already fetched page.
func (a *Adapter) Parse(body []byte) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return a.parse(doc, a.base, a.location), nil
}

// Config selects and configures an adapter.
type Config struct {
	Name string
	// URL overrides the adapter's default listing page.
	URL string
	// Render fetches the page through headless Chromium.
	Render bool
	// Location overrides the venue address for adapters with a fixed venue.
	Location string
}

type definition struct {
	pageURL      string
	baseURL      string
	location     string
	waitSelector string
	parse        parseFunc
}

var registry = map[string]definition{
	KatedraName: {
		pageURL:      KatedraURL,
		baseURL:      KatedraBaseURL,
		waitSelector: katedraSelector,
		parse:        parseKatedra,
	},
	YadBenZviName: {
		pageURL:      YadBenZviURL,
		baseURL:      YadBenZviBaseURL,
		location:     YadBenZviLocation,
		waitSelector: ".EventListRow",
		parse:        parseYadBenZvi,
	},
}

// Names lists the known adapters in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the adapter named by cfg.Name.
func New(cfg Config) (*Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %s)", cfg.Name, strings.Join(Names(), ", "))
	}

	var fetcher Fetcher = NewHTTPFetcher()
	if cfg.Render {
		fetcher = NewBrowserFetcher(def.waitSelector)
	}
	return NewWithFetcher(cfg, fetcher)
}

// NewWithFetcher builds the adapter named by cfg.Name using fetcher.
func NewWithFetcher(cfg Config, fetcher Fetcher) (*Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", cfg.Name)
	}

	pageURL := def.pageURL
	if cfg.URL != "" {
		pageURL = cfg.URL
	}
	base, err := url.Parse(def.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	location := def.location
	if cfg.Location != "" {
		location = cfg.Location
	}

	return &Adapter{
		name:     name,
		pageURL:  pageURL,
		base:     base,
		location: location,
		fetcher:  fetcher,
		parse:    def.parse,
	}, nil
}

// resolveHref resolves href against base. An empty or malformed href yields
// an empty URL so the listing is rejected downstream.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}

// collapseSpace replaces every whitespace run with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
