package ledger

import "time"

// Status is the per-message outcome shown on the status line and stored in
// the ledger.
type Status string

const (
	// StatusProcessed means the message produced a new stored item.
	StatusProcessed Status = "processed"
	// StatusSkipped means the classifier judged the message irrelevant.
	StatusSkipped Status = "skipped"
	// StatusIgnored means the extraction service answered {"ignore": true}.
	StatusIgnored Status = "ignored"
	// StatusInvalid means the service response could not become an item.
	StatusInvalid Status = "invalid"
	// StatusFailed means the extraction service call failed.
	StatusFailed Status = "failed"
	// StatusDuplicate means the extracted item was already stored.
	StatusDuplicate Status = "duplicate"
)

// AllStatuses lists statuses in display order.
func AllStatuses() []Status {
	return []Status{StatusProcessed, StatusDuplicate, StatusIgnored, StatusSkipped, StatusInvalid, StatusFailed}
}

// Final reports whether a message with this status needs no further
// extraction attempts. Skipped messages are re-classified every run because
// the relevance lists may change.
func (s Status) Final() bool {
	switch s {
	case StatusProcessed, StatusIgnored, StatusDuplicate:
		return true
	default:
		return false
	}
}

// MessageRecord is the ledger row for one message.
type MessageRecord struct {
	Key         string
	Subject     string
	Sender      string
	Status      Status
	Detail      string
	ItemID      string
	RunID       string
	Attempts    int
	FirstSeenAt time.Time
	UpdatedAt   time.Time
}

// Run summarizes one pipeline pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Scanned    int
	Relevant   int
	Added      int
	Failed     int
	Error      string
}

// Stats aggregates the ledger for reporting.
type Stats struct {
	Messages map[Status]int
	Runs     int
	LastRun  *Run
}
