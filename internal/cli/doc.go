// Package cli implements the command-line interface for venue-events.
//
// The cli package provides the Cobra-based commands: ingest scrapes the
// configured venues and writes their events to the index, serve answers
// search queries over HTTP. It wires configuration, logging, metrics, the
// geocoder, the index backend and the run publisher together.
package cli
