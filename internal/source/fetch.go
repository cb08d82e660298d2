package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	UserAgent = "venue-events/1.0 (github.com/pfrederiksen/venue-events)"
	Timeout   = 30 * time.Second

	// maxPageSize caps how much of a listing page is read.
	maxPageSize = 10 << 20
)

// Fetcher retrieves the HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads pages with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the package Timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: Timeout,
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}

// BrowserFetcher renders pages in headless Chromium, for listings that are
// filled in by client-side scripts.
type BrowserFetcher struct {
	// WaitSelector must be present before the DOM is captured. Defaults to "body".
	WaitSelector string
	Timeout      time.Duration
}

// NewBrowserFetcher creates a fetcher that waits for waitSelector.
func NewBrowserFetcher(waitSelector string) *BrowserFetcher {
	return &BrowserFetcher{WaitSelector: waitSelector, Timeout: Timeout}
}

func (f *BrowserFetcher) Fetch(parentCtx context.Context, url string) ([]byte, error) {
	waitSelector := f.WaitSelector
	if waitSelector == "" {
		waitSelector = "body"
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = Timeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(UserAgent))...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return []byte(html), nil
}
