// Package source extracts raw event listings from venue websites.
//
// Each adapter fetches one listing page, either with a plain HTTP GET or by
// rendering it in headless Chromium, and maps the page's markup into
// event.Raw tuples with goquery. Adapters do not parse dates or trim fields;
// that is left to event.Builder.
package source
