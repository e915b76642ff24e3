package pipeline

import (
	"context"

	"pressdesk/internal/extraction"
	"pressdesk/internal/ledger"
	"pressdesk/internal/mailbox"
	"pressdesk/internal/press"
	"pressdesk/internal/relevance"
	"pressdesk/internal/store"
)

// Classifier decides message relevance.
type Classifier interface {
	Explain(subject, sender string) relevance.Decision
}

// Extractor turns a relevant message into an outcome.
type Extractor interface {
	Extract(ctx context.Context, msg mailbox.Message) (extraction.Outcome, error)
}

// ItemStore persists the item history.
type ItemStore interface {
	Load() (store.LoadResult, error)
	Save(items []press.Item) error
	Lock() (func(), error)
}

// History records runs and per-message outcomes. Implemented by *ledger.Ledger.
type History interface {
	BeginRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, run ledger.Run, runErr error) error
	Lookup(ctx context.Context, key string) (*ledger.MessageRecord, error)
	Record(ctx context.Context, rec ledger.MessageRecord) error
}

// Options are the run parameters taken from configuration.
type Options struct {
	Window        int
	MaxItems      int
	SkipProcessed bool
	// MailboxReady and ExtractionReady report whether credentials exist.
	// A pass without them completes normally without doing anything.
	MailboxReady    bool
	ExtractionReady bool
}

// Summary describes a completed pass.
type Summary struct {
	RunID        string
	Scanned      int
	Relevant     int
	Added        int
	Counts       map[ledger.Status]int
	NewItems     []press.Item
	StoreWritten bool
	// NotConfigured names the missing credentials when the pass was a no-op.
	NotConfigured string
}

func (s *Summary) count(status ledger.Status) {
	if s.Counts == nil {
		s.Counts = make(map[ledger.Status]int)
	}
	s.Counts[status]++
}
