// Package index defines the searchable event index and its simple backends.
//
// Documents are keyed by event URL: Upsert replaces the whole document, so
// re-ingesting a listing updates it instead of adding a duplicate. The package
// ships an in-memory backend and a JSON snapshot backend stored under
// ~/.local/share/venue-events/; the PostgreSQL backend lives in index/postgres.
package index
