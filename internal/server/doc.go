// Package server exposes the event index over HTTP.
//
// Routes:
//
//	GET /search?query=&city=&fromDate=   matching events, soonest first
//	GET /cities                          distinct resolved city names
//	GET /calendar.ics?query=&city=&fromDate=  the same events as an iCalendar feed
//	GET /health                          liveness check
//	GET /metrics                         Prometheus exposition
//
// Every response allows any origin so the search page can be served from
// a different host.
package server
