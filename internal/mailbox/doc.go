// Package mailbox retrieves the most recent messages from the configured mail
// account and normalizes them into plain-text Message values.
//
// Two providers are supported: a read-only IMAP session (go-imap) and the
// Gmail REST API using an OAuth token obtained with `pressdesk auth gmail`.
// Both feed raw RFC 822 bytes through ParseMessage so that header decoding,
// charset handling and HTML flattening behave identically.
//
// Connection, authentication and folder-selection failures are reported as
// ErrSourceUnavailable. A single message that cannot be parsed is logged and
// skipped.
package mailbox
