// Package geocode resolves free-text venue locations into coordinates and a city.
//
// A Resolver wraps an external Provider (GoogleProvider in production) with an
// in-process cache keyed by the exact location string and per-key in-flight
// deduplication, so each distinct address costs at most one provider call.
// Provider city names can be rewritten through a translation table before
// they are cached.
package geocode
