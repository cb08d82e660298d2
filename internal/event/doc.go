// Package event provides the canonical record for venue event listings.
//
// The event package turns the raw strings a source adapter scrapes into an
// Event: every field is trimmed, the start (and optional end) date is parsed
// from the venue's Hebrew long form or a DD/MM/YYYY fallback, and the detail
// page URL becomes the identity used for idempotent upserts. Enrich fills in
// the city and coordinates through a geocoding Resolver on a best-effort basis.
package event
