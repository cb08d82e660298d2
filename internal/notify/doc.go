// Package notify announces completed ingestion runs to other services.
//
// Reports are JSON encoded and published on a NATS subject. When no broker
// is configured the no-op publisher is used, and the dry-run publisher
// prints what would have been sent.
package notify
