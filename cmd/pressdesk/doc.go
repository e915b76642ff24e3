// Package main hosts the pressdesk CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, builds the pipeline from
// the internal packages and surfaces it as one-shot (run) and periodic
// (watch) scans, plus read-only views over the item store (list, show) and
// the processed-message ledger (stats). Connectivity checks, Gmail
// authorization and configuration scaffolding round out the surface.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is only exposed here.
package main
