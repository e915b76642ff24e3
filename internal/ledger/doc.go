// Package ledger keeps a SQLite history of pipeline runs and of the outcome
// recorded for every message the pipeline looked at.
//
// The ledger lets a run skip messages whose outcome was final (stored or
// ignored) in an earlier run, so the extraction service is not asked about
// the same email on every pass. Failed and invalid messages are retried.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// ledger database to adopt a new schema. The JSON item store is never
// derived from the ledger, so deleting it loses only history.
package ledger
