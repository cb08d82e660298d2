// Package pipeline turns raw listings into indexed events.
//
// A run builds each listing into an event.Event, enriches it with a
// geocoded city and coordinates, and upserts it into the index keyed by URL.
// Listings that cannot be built are skipped and counted; enrichment is
// best-effort; index writes are retried with backoff. Every run produces a
// Report that is logged, exported as metrics and published to other
// services.
package pipeline
