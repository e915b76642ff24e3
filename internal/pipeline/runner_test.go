package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pressdesk/internal/extraction"
	"pressdesk/internal/ledger"
	"pressdesk/internal/logging"
	"pressdesk/internal/mailbox"
	"pressdesk/internal/press"
	"pressdesk/internal/relevance"
	"pressdesk/internal/store"
)

type fakeSource struct {
	messages []mailbox.Message
	err      error
	calls    int
}

func (f *fakeSource) Recent(_ context.Context, n int) ([]mailbox.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if n > 0 && len(f.messages) > n {
		return f.messages[:n], nil
	}
	return f.messages, nil
}

type extractResult struct {
	outcome extraction.Outcome
	err     error
}

type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]extractResult
	calls   []string
	hook    func(mailbox.Message)
}

func (f *fakeExtractor) Extract(ctx context.Context, msg mailbox.Message) (extraction.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg.Key)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(msg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, ok := f.results[msg.Key]
	if !ok {
		return extraction.Ignored{}, nil
	}
	return res.outcome, res.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	items  []press.Item
	failed []error
}

func (n *recordingNotifier) NotifyNewItems(_ context.Context, items []press.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, items...)
	return nil
}

func (n *recordingNotifier) NotifyRunFailed(_ context.Context, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, err)
	return nil
}

func (n *recordingNotifier) failures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failed)
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type failingSaveStore struct {
	*store.Store
	err error
}

func (f failingSaveStore) Save([]press.Item) error { return f.err }

func newItem(title, channel, date string) press.Item {
	item := press.Item{
		Title:      title,
		Channel:    channel,
		AirDate:    date,
		Summary:    title + " returns.",
		CapturedAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	item.ID = press.DeriveID(item)
	return item
}

func msg(key, subject, sender string) mailbox.Message {
	return mailbox.Message{Key: key, Subject: subject, Sender: sender, Date: "Tue, 10 Feb 2026 09:00:00 +0100", Body: "body"}
}

type harness struct {
	source    *fakeSource
	extractor *fakeExtractor
	store     *store.Store
	ledger    *ledger.Ledger
	notifier  *recordingNotifier
	out       *bytes.Buffer
	storePath string
}

func newHarness(t *testing.T, withLedger bool) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		source:    &fakeSource{},
		extractor: &fakeExtractor{results: map[string]extractResult{}},
		storePath: filepath.Join(dir, "press.json"),
		notifier:  &recordingNotifier{},
		out:       &bytes.Buffer{},
	}
	h.store = store.New(h.storePath, logging.NewNop())
	if withLedger {
		l, err := ledger.Open(context.Background(), filepath.Join(dir, "ledger.db"))
		if err != nil {
			t.Fatalf("open ledger: %v", err)
		}
		t.Cleanup(func() { _ = l.Close() })
		h.ledger = l
	}
	return h
}

func (h *harness) runner(opts Options) *Runner {
	return h.runnerWithStore(opts, h.store)
}

func (h *harness) runnerWithStore(opts Options, items ItemStore) *Runner {
	deps := Deps{
		Source:     h.source,
		Classifier: relevance.New([]string{"dpgmedia.be"}, []string{"persbericht", "seizoen"}),
		Extractor:  h.extractor,
		Store:      items,
		Notifier:   h.notifier,
		Output:     h.out,
	}
	if h.ledger != nil {
		deps.History = h.ledger
	}
	return NewRunner(opts, deps, logging.NewNop())
}

func readyOptions() Options {
	return Options{Window: 20, MaxItems: 50, MailboxReady: true, ExtractionReady: true}
}

func readStore(t *testing.T, path string) []press.Item {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var items []press.Item
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode store: %v", err)
	}
	return items
}

func itemIDs(items []press.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestRunWithoutCredentialsIsNoop(t *testing.T) {
	h := newHarness(t, false)
	opts := readyOptions()
	opts.MailboxReady = false

	summary, err := h.runner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NotConfigured != "mailbox credentials" {
		t.Fatalf("NotConfigured = %q", summary.NotConfigured)
	}
	if h.source.calls != 0 {
		t.Fatalf("source called %d times, want 0", h.source.calls)
	}
	if _, err := os.Stat(h.storePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("store file should not exist, stat err = %v", err)
	}

	opts = readyOptions()
	opts.ExtractionReady = false
	summary, err = h.runner(opts).Run(context.Background())
	if err != nil || summary.NotConfigured != "extraction service api key" {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
}

func TestRunClassifiesExtractsAndMerges(t *testing.T) {
	h := newHarness(t, true)
	existing := newItem("Telefacts", "VTM", "2026-02-01")
	if err := h.store.Save([]press.Item{existing}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	first := newItem("De Mol", "Play4", "2026-02-17")
	second := newItem("Thuis", "VRT 1", "2026-02-18")
	h.source.messages = []mailbox.Message{
		msg("m1", "Persbericht: De Mol", "pers@play4.be"),
		msg("m2", "Lunch on Friday", "friend@example.com"),
		msg("m3", "Nieuw seizoen Thuis", "pers@vrt.be"),
		msg("m4", "Persbericht: nieuwsbrief", "news@example.com"),
		msg("m5", "Persbericht zonder datum", "pers@example.com"),
		msg("m6", "Persbericht: Telefacts", "pers@vtm.be"),
		msg("m7", "Persbericht: storing", "pers@example.com"),
		msg("m8", "Herhaling persbericht De Mol", "pers@play4.be"),
	}
	h.extractor.results = map[string]extractResult{
		"m1": {outcome: extraction.Valid{Item: first}},
		"m3": {outcome: extraction.Valid{Item: second}},
		"m4": {outcome: extraction.Ignored{}},
		"m5": {outcome: extraction.Invalid{Reason: "missing air_date"}},
		"m6": {outcome: extraction.Valid{Item: existing}},
		"m7": {err: &extraction.ServiceError{MessageKey: "m7", Err: errors.New("status 500")}},
		"m8": {outcome: extraction.Valid{Item: first}},
	}

	summary, err := h.runner(readyOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Scanned != 8 || summary.Relevant != 7 || summary.Added != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.StoreWritten {
		t.Fatal("expected store to be written")
	}
	wantCounts := map[ledger.Status]int{
		ledger.StatusProcessed: 2,
		ledger.StatusSkipped:   1,
		ledger.StatusIgnored:   1,
		ledger.StatusInvalid:   1,
		ledger.StatusDuplicate: 2,
		ledger.StatusFailed:    1,
	}
	for status, want := range wantCounts {
		if got := summary.Counts[status]; got != want {
			t.Errorf("count[%s] = %d, want %d", status, got, want)
		}
	}
	if len(h.extractor.calls) != 7 {
		t.Fatalf("extractor calls = %v", h.extractor.calls)
	}

	got := itemIDs(readStore(t, h.storePath))
	want := []string{first.ID, second.ID, existing.ID}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("store ids = %v, want %v", got, want)
	}
	if len(h.notifier.items) != 2 {
		t.Fatalf("notified %d items, want 2", len(h.notifier.items))
	}

	out := h.out.String()
	for _, fragment := range []string{"processed", "skipped", "ignored", "invalid", "failed", "duplicate", "2 new items"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("output missing %q:\n%s", fragment, out)
		}
	}

	rec, err := h.ledger.Lookup(context.Background(), "m1")
	if err != nil || rec == nil {
		t.Fatalf("lookup m1: %v, %v", rec, err)
	}
	if rec.Status != ledger.StatusProcessed || rec.ItemID != first.ID {
		t.Fatalf("m1 record = %+v", rec)
	}
	rec, err = h.ledger.Lookup(context.Background(), "m7")
	if err != nil || rec == nil || rec.Status != ledger.StatusFailed {
		t.Fatalf("m7 record = %+v, err = %v", rec, err)
	}

	runs, err := h.ledger.RecentRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, err = %v", runs, err)
	}
	if runs[0].ID != summary.RunID || runs[0].Added != 2 || runs[0].Failed != 1 || runs[0].FinishedAt == nil {
		t.Fatalf("run = %+v", runs[0])
	}
}

func TestRunSkipsMessagesAlreadySettled(t *testing.T) {
	h := newHarness(t, true)
	item := newItem("De Mol", "Play4", "2026-02-17")
	h.source.messages = []mailbox.Message{
		msg("m1", "Persbericht: De Mol", "pers@play4.be"),
		msg("m2", "Persbericht: storing", "pers@example.com"),
	}
	h.extractor.results = map[string]extractResult{
		"m1": {outcome: extraction.Valid{Item: item}},
		"m2": {err: &extraction.ServiceError{MessageKey: "m2", Err: errors.New("timeout")}},
	}
	opts := readyOptions()
	opts.SkipProcessed = true

	if _, err := h.runner(opts).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	h.extractor.calls = nil

	summary, err := h.runner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(h.extractor.calls) != 1 || h.extractor.calls[0] != "m2" {
		t.Fatalf("second run extracted %v, want only m2", h.extractor.calls)
	}
	if summary.Added != 0 || summary.StoreWritten {
		t.Fatalf("summary = %+v", summary)
	}

	rec, err := h.ledger.Lookup(context.Background(), "m2")
	if err != nil || rec == nil || rec.Attempts != 2 {
		t.Fatalf("m2 record = %+v, err = %v", rec, err)
	}
}

func TestRunSourceFailureLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t, true)
	existing := newItem("Telefacts", "VTM", "2026-02-01")
	if err := h.store.Save([]press.Item{existing}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	before, err := os.ReadFile(h.storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	h.source.err = errors.Join(mailbox.ErrSourceUnavailable, errors.New("login failed"))

	_, err = h.runner(readyOptions()).Run(context.Background())
	if !errors.Is(err, mailbox.ErrSourceUnavailable) {
		t.Fatalf("Run error = %v, want ErrSourceUnavailable", err)
	}
	after, err := os.ReadFile(h.storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("store changed after source failure")
	}
	if len(h.notifier.failed) != 1 {
		t.Fatalf("failure notifications = %d, want 1", len(h.notifier.failed))
	}
	runs, err := h.ledger.RecentRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 || !strings.Contains(runs[0].Error, "login failed") {
		t.Fatalf("runs = %+v, err = %v", runs, err)
	}
}

func TestRunWithoutNewItemsDoesNotWriteStore(t *testing.T) {
	h := newHarness(t, false)
	h.source.messages = []mailbox.Message{
		msg("m1", "Weekly newsletter", "news@example.com"),
		msg("m2", "", "pers@dpgmedia.be"),
	}

	summary, err := h.runner(readyOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Relevant != 0 || summary.StoreWritten {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := os.Stat(h.storePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("store file should not exist, stat err = %v", err)
	}
	if !strings.Contains(h.out.String(), "No new press items found.") {
		t.Fatalf("output = %q", h.out.String())
	}
}

func TestRunEmptyMailbox(t *testing.T) {
	h := newHarness(t, false)
	summary, err := h.runner(readyOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Scanned != 0 || summary.StoreWritten {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(h.out.String(), "Mailbox is empty.") {
		t.Fatalf("output = %q", h.out.String())
	}
}

func TestRunCapsStore(t *testing.T) {
	h := newHarness(t, false)
	var seeded []press.Item
	for i := 0; i < 3; i++ {
		seeded = append(seeded, newItem("Old", "VTM", time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC).Format(press.DateLayout)))
	}
	if err := h.store.Save(seeded); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	fresh := newItem("Nieuw", "VTM", "2026-03-01")
	h.source.messages = []mailbox.Message{msg("m1", "Persbericht Nieuw", "pers@vtm.be")}
	h.extractor.results["m1"] = extractResult{outcome: extraction.Valid{Item: fresh}}

	opts := readyOptions()
	opts.MaxItems = 3
	if _, err := h.runner(opts).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := itemIDs(readStore(t, h.storePath))
	want := []string{fresh.ID, seeded[0].ID, seeded[1].ID}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("store ids = %v, want %v", got, want)
	}
}

func TestRunRejectsConcurrentPass(t *testing.T) {
	h := newHarness(t, false)
	unlock, err := h.store.Lock()
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	_, err = h.runner(readyOptions()).Run(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("Run error = %v, want ErrRunInProgress", err)
	}
	if h.source.calls != 0 {
		t.Fatal("source should not be read while another run holds the lock")
	}
}

func TestRunCancelledDoesNotSave(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.source.messages = []mailbox.Message{
		msg("m1", "Persbericht A", "pers@vtm.be"),
		msg("m2", "Persbericht B", "pers@vtm.be"),
	}
	h.extractor.results["m1"] = extractResult{outcome: extraction.Valid{Item: newItem("A", "VTM", "2026-02-17")}}
	h.extractor.hook = func(m mailbox.Message) {
		if m.Key == "m2" {
			cancel()
		}
	}

	_, err := h.runner(readyOptions()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(h.storePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("store should not be written after cancellation, stat err = %v", err)
	}
	if len(h.notifier.failed) != 0 {
		t.Fatal("cancellation should not send a failure notification")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	h.source.err = errors.New("offline")

	done := make(chan error, 1)
	r := h.runner(readyOptions())
	go func() { done <- r.Watch(ctx, time.Hour) }()

	deadline := time.After(5 * time.Second)
	for {
		if h.notifier.failures() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first pass did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestRunCancelledKeepsMessagesUnsettled(t *testing.T) {
	h := newHarness(t, true)
	item := newItem("De Mol", "Play4", "2026-02-17")
	h.source.messages = []mailbox.Message{
		msg("m1", "Persbericht: De Mol", "pers@play4.be"),
		msg("m2", "Persbericht: nieuwsbrief", "news@example.com"),
	}
	h.extractor.results["m1"] = extractResult{outcome: extraction.Valid{Item: item}}
	opts := readyOptions()
	opts.SkipProcessed = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.extractor.hook = func(m mailbox.Message) {
		if m.Key == "m2" {
			cancel()
		}
	}
	if _, err := h.runner(opts).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("first run error = %v, want context.Canceled", err)
	}
	rec, err := h.ledger.Lookup(context.Background(), "m1")
	if err != nil {
		t.Fatalf("lookup m1: %v", err)
	}
	if rec != nil {
		t.Fatalf("m1 recorded as %s before the store was saved", rec.Status)
	}

	h.extractor.hook = nil
	summary, err := h.runner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Added != 1 {
		t.Fatalf("second run summary = %+v", summary)
	}
	got := itemIDs(readStore(t, h.storePath))
	if len(got) != 1 || got[0] != item.ID {
		t.Fatalf("store ids = %v, want [%s]", got, item.ID)
	}
}

func TestRunSaveFailureKeepsMessagesUnsettled(t *testing.T) {
	h := newHarness(t, true)
	item := newItem("De Mol", "Play4", "2026-02-17")
	h.source.messages = []mailbox.Message{msg("m1", "Persbericht: De Mol", "pers@play4.be")}
	h.extractor.results["m1"] = extractResult{outcome: extraction.Valid{Item: item}}
	opts := readyOptions()
	opts.SkipProcessed = true

	saveErr := errors.New("disk full")
	_, err := h.runnerWithStore(opts, failingSaveStore{Store: h.store, err: saveErr}).Run(context.Background())
	if !errors.Is(err, saveErr) {
		t.Fatalf("first run error = %v, want %v", err, saveErr)
	}
	if rec, err := h.ledger.Lookup(context.Background(), "m1"); err != nil || rec != nil {
		t.Fatalf("m1 record = %+v, err = %v; want none", rec, err)
	}

	summary, err := h.runner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Added != 1 || len(h.extractor.calls) != 2 {
		t.Fatalf("summary = %+v, extractor calls = %v", summary, h.extractor.calls)
	}
	rec, err := h.ledger.Lookup(context.Background(), "m1")
	if err != nil || rec == nil || rec.Status != ledger.StatusProcessed {
		t.Fatalf("m1 record = %+v, err = %v", rec, err)
	}
}

func TestRunReportsOnlyItemsKeptByCap(t *testing.T) {
	h := newHarness(t, true)
	first := newItem("A", "VTM", "2026-02-17")
	second := newItem("B", "VTM", "2026-02-18")
	h.source.messages = []mailbox.Message{
		msg("m1", "Persbericht A", "pers@vtm.be"),
		msg("m2", "Persbericht B", "pers@vtm.be"),
	}
	h.extractor.results["m1"] = extractResult{outcome: extraction.Valid{Item: first}}
	h.extractor.results["m2"] = extractResult{outcome: extraction.Valid{Item: second}}
	opts := readyOptions()
	opts.MaxItems = 1

	summary, err := h.runner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Added != 1 || len(summary.NewItems) != 1 || summary.NewItems[0].ID != first.ID {
		t.Fatalf("summary = %+v", summary)
	}
	if len(h.notifier.items) != 1 || h.notifier.items[0].ID != first.ID {
		t.Fatalf("notified = %v", itemIDs(h.notifier.items))
	}
	if !strings.Contains(h.out.String(), "Store updated with 1 new item.") {
		t.Fatalf("output = %q", h.out.String())
	}
	if rec, err := h.ledger.Lookup(context.Background(), "m2"); err != nil || rec != nil {
		t.Fatalf("m2 record = %+v, err = %v; want none", rec, err)
	}
}
