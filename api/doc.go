// Package api serves the conversion engine over HTTP: job submission and
// inspection, availability probing, websocket progress streaming, and the
// Prometheus scrape endpoint.
package api
