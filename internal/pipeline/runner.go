package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pressdesk/internal/config"
	"pressdesk/internal/extraction"
	"pressdesk/internal/ledger"
	"pressdesk/internal/logging"
	"pressdesk/internal/mailbox"
	"pressdesk/internal/notifications"
	"pressdesk/internal/press"
	"pressdesk/internal/store"
	"pressdesk/internal/textutil"
)

// ErrRunInProgress is returned when another pass holds the store lock.
var ErrRunInProgress = errors.New("another run is in progress")

const subjectWidth = 60

// Runner executes pipeline passes.
type Runner struct {
	opts       Options
	source     mailbox.Source
	classifier Classifier
	extractor  Extractor
	store      ItemStore
	history    History
	notifier   notifications.Service
	out        io.Writer
	logger     *slog.Logger
}

// Deps groups the collaborators of a Runner. History and Notifier are optional.
type Deps struct {
	Source     mailbox.Source
	Classifier Classifier
	Extractor  Extractor
	Store      ItemStore
	History    History
	Notifier   notifications.Service
	// Output receives one human-readable status line per message.
	Output io.Writer
}

// NewRunner constructs a Runner.
func NewRunner(opts Options, deps Deps, logger *slog.Logger) *Runner {
	if opts.MaxItems < 1 {
		opts.MaxItems = press.MaxItems
	}
	out := deps.Output
	if out == nil {
		out = io.Discard
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(config.Notifications{})
	}
	return &Runner{
		opts:       opts,
		source:     deps.Source,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		store:      deps.Store,
		history:    deps.History,
		notifier:   notifier,
		out:        out,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes a single pass.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if !r.opts.MailboxReady {
		summary.NotConfigured = "mailbox credentials"
	} else if !r.opts.ExtractionReady {
		summary.NotConfigured = "extraction service api key"
	}
	if summary.NotConfigured != "" {
		logging.WarnWithContext(r.logger, "run skipped: "+summary.NotConfigured+" not configured", "credentials_missing",
			logging.String(logging.FieldErrorHint, "set credentials in config.toml or the environment"),
			logging.String(logging.FieldImpact, "no messages processed; store unchanged"))
		fmt.Fprintf(r.out, "No %s configured; nothing to do.\n", summary.NotConfigured)
		return summary, nil
	}

	unlock, err := r.store.Lock()
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			return summary, fmt.Errorf("%w: %w", ErrRunInProgress, err)
		}
		return summary, err
	}
	defer unlock()

	summary.RunID, err = r.beginRun(ctx)
	if err != nil {
		return summary, err
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	runErr := r.process(ctx, logger, &summary)
	r.finishRun(ctx, logger, summary, runErr)

	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			if err := r.notifier.NotifyRunFailed(context.WithoutCancel(ctx), runErr); err != nil {
				logger.Debug("run failure notification failed", logging.Error(err))
			}
		}
		return summary, runErr
	}

	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Int("scanned", summary.Scanned),
		logging.Int("relevant", summary.Relevant),
		logging.Int("added", summary.Added),
		logging.Bool("store_written", summary.StoreWritten),
		logging.Duration("duration", time.Since(started)))
	return summary, nil
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	messages, err := r.source.Recent(ctx, r.opts.Window)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	summary.Scanned = len(messages)
	if len(messages) == 0 {
		fmt.Fprintln(r.out, "Mailbox is empty.")
		return nil
	}
	fmt.Fprintf(r.out, "Scanning the %d most recent messages.\n", len(messages))

	loaded, err := r.store.Load()
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(loaded.Items))
	for _, item := range loaded.Items {
		known[item.ID] = struct{}{}
	}

	// Outcomes are recorded only after the store reflects them.
	var (
		incoming []press.Item
		pending  []pendingRecord
	)
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.handleMessage(ctx, logger, msg, known)
		if err != nil {
			return err
		}
		if res.status == "" {
			continue
		}
		summary.count(res.status)
		if res.relevant {
			summary.Relevant++
		}
		if res.item != nil {
			incoming = append(incoming, *res.item)
		}
		pending = append(pending, pendingRecord{msg: msg, res: res})
	}

	if len(incoming) == 0 {
		r.recordAll(ctx, logger, summary.RunID, pending)
		fmt.Fprintln(r.out, "No new press items found.")
		return nil
	}

	merged, added := press.Merge(loaded.Items, incoming, r.opts.MaxItems)
	summary.Added = added
	if added == 0 {
		r.recordAll(ctx, logger, summary.RunID, pending)
		return nil
	}
	if err := r.store.Save(merged); err != nil {
		return err
	}
	summary.StoreWritten = true
	summary.NewItems = merged[:added]
	r.recordAll(ctx, logger, summary.RunID, retained(pending, summary.NewItems))
	fmt.Fprintf(r.out, "Store updated with %d new item%s.\n", added, textutil.Ternary(added == 1, "", "s"))

	if err := r.notifier.NotifyNewItems(ctx, summary.NewItems); err != nil {
		logger.Warn("new item notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"))
	}
	return nil
}

type messageResult struct {
	status   ledger.Status
	detail   string
	relevant bool
	item     *press.Item
	// recorded is false for messages the ledger already settled.
	recorded bool
}

func (r *Runner) handleMessage(ctx context.Context, logger *slog.Logger, msg mailbox.Message, known map[string]struct{}) (messageResult, error) {
	msgLogger := logger.With(logging.String(logging.FieldMessageKey, msg.Key))

	if r.opts.SkipProcessed && r.history != nil && msg.Key != "" {
		rec, err := r.history.Lookup(ctx, msg.Key)
		if err != nil {
			msgLogger.Warn("ledger lookup failed; processing message anyway",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_lookup_failed"))
		} else if rec != nil && rec.Status.Final() {
			r.statusLine(ledger.StatusSkipped, msg.Subject, "already "+string(rec.Status))
			return messageResult{status: ledger.StatusSkipped, detail: "already " + string(rec.Status)}, nil
		}
	}

	decision := r.classifier.Explain(msg.Subject, msg.Sender)
	if !decision.Relevant {
		r.statusLine(ledger.StatusSkipped, msg.Subject, "irrelevant")
		msgLogger.Debug("message not relevant", logging.String("rule", string(decision.Rule)))
		return messageResult{status: ledger.StatusSkipped, detail: "irrelevant", recorded: true}, nil
	}
	msgLogger.Debug("message relevant",
		logging.String("rule", string(decision.Rule)),
		logging.String("match", decision.Match))

	outcome, err := r.extractor.Extract(ctx, msg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return messageResult{}, ctxErr
		}
		logging.WarnWithContext(msgLogger, "extraction service failed", "extraction_failed",
			logging.Error(err),
			logging.String("subject", msg.Subject),
			logging.String(logging.FieldErrorHint, "message is retried on the next run"),
			logging.String(logging.FieldImpact, "message not processed"))
		r.statusLine(ledger.StatusFailed, msg.Subject, err.Error())
		return messageResult{status: ledger.StatusFailed, detail: err.Error(), relevant: true, recorded: true}, nil
	}

	switch o := outcome.(type) {
	case extraction.Ignored:
		msgLogger.Info("extraction service ignored message", logging.String("subject", msg.Subject))
		r.statusLine(ledger.StatusIgnored, msg.Subject, "not a programme announcement")
		return messageResult{status: ledger.StatusIgnored, relevant: true, recorded: true}, nil
	case extraction.Invalid:
		logging.WarnWithContext(msgLogger, "extraction response invalid", "extraction_invalid",
			logging.String("reason", o.Reason),
			logging.String("subject", msg.Subject),
			logging.String(logging.FieldErrorHint, "message is retried on the next run"),
			logging.String(logging.FieldImpact, "message not processed"))
		r.statusLine(ledger.StatusInvalid, msg.Subject, o.Reason)
		return messageResult{status: ledger.StatusInvalid, detail: o.Reason, relevant: true, recorded: true}, nil
	case extraction.Valid:
		item := o.Item
		if _, dup := known[item.ID]; dup {
			r.statusLine(ledger.StatusDuplicate, msg.Subject, item.ID)
			return messageResult{status: ledger.StatusDuplicate, detail: item.ID, relevant: true, recorded: true}, nil
		}
		known[item.ID] = struct{}{}
		msgLogger.Info("press item extracted",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("title", item.Title),
			logging.String("channel", item.Channel),
			logging.String("air_date", item.AirDate))
		r.statusLine(ledger.StatusProcessed, msg.Subject, fmt.Sprintf("%s on %s", item.Title, item.AirDate))
		return messageResult{status: ledger.StatusProcessed, detail: item.ID, relevant: true, item: &item, recorded: true}, nil
	default:
		return messageResult{}, fmt.Errorf("unexpected extraction outcome %T", outcome)
	}
}

func (r *Runner) statusLine(status ledger.Status, subject, detail string) {
	subject = textutil.CollapseSpaces(subject)
	if runes := []rune(subject); len(runes) > subjectWidth {
		subject = string(runes[:subjectWidth-3]) + "..."
	}
	if subject == "" {
		subject = "(no subject)"
	}
	if detail != "" {
		fmt.Fprintf(r.out, "%-9s %s (%s)\n", status, subject, detail)
		return
	}
	fmt.Fprintf(r.out, "%-9s %s\n", status, subject)
}

func (r *Runner) beginRun(ctx context.Context) (string, error) {
	if r.history == nil {
		return uuid.NewString(), nil
	}
	id, err := r.history.BeginRun(ctx)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

type pendingRecord struct {
	msg mailbox.Message
	res messageResult
}

func (r *Runner) recordAll(ctx context.Context, logger *slog.Logger, runID string, pending []pendingRecord) {
	for _, p := range pending {
		r.record(ctx, logger, runID, p.msg, p.res)
	}
}

// retained drops processed outcomes whose item was cut by the store cap.
func retained(pending []pendingRecord, stored []press.Item) []pendingRecord {
	ids := make(map[string]struct{}, len(stored))
	for _, item := range stored {
		ids[item.ID] = struct{}{}
	}
	kept := pending[:0:0]
	for _, p := range pending {
		if p.res.item != nil {
			if _, ok := ids[p.res.item.ID]; !ok {
				continue
			}
		}
		kept = append(kept, p)
	}
	return kept
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, runID string, msg mailbox.Message, res messageResult) {
	if r.history == nil || !res.recorded || msg.Key == "" {
		return
	}
	rec := ledger.MessageRecord{
		Key:     msg.Key,
		Subject: msg.Subject,
		Sender:  msg.Sender,
		Status:  res.status,
		Detail:  res.detail,
		RunID:   runID,
	}
	if res.item != nil {
		rec.ItemID = res.item.ID
		rec.Detail = ""
	} else if res.status == ledger.StatusDuplicate {
		rec.ItemID = res.detail
		rec.Detail = ""
	}
	if err := r.history.Record(ctx, rec); err != nil {
		logger.Warn("failed to record message outcome",
			logging.String(logging.FieldMessageKey, msg.Key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ledger_record_failed"))
	}
}

func (r *Runner) finishRun(ctx context.Context, logger *slog.Logger, summary Summary, runErr error) {
	if r.history == nil {
		return
	}
	run := ledger.Run{
		ID:       summary.RunID,
		Scanned:  summary.Scanned,
		Relevant: summary.Relevant,
		Added:    summary.Added,
		Failed:   summary.Counts[ledger.StatusFailed],
	}
	if err := r.history.FinishRun(context.WithoutCancel(ctx), run, runErr); err != nil {
		logger.Warn("failed to record run",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ledger_run_failed"))
	}
}
