package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	runID, err := l.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := l.FinishRun(ctx, Run{ID: runID, Scanned: 20, Relevant: 3, Added: 2, Failed: 1}, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := l.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Scanned != 20 || run.Added != 2 || run.FinishedAt == nil || run.Error != "" {
		t.Fatalf("unexpected run %+v", run)
	}

	if err := l.FinishRun(ctx, Run{ID: "nope"}, nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestFinishRunStoresError(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	runID, _ := l.BeginRun(ctx)
	if err := l.FinishRun(ctx, Run{ID: runID}, errors.New("imap down")); err != nil {
		t.Fatal(err)
	}
	runs, _ := l.RecentRuns(ctx, 1)
	if runs[0].Error != "imap down" {
		t.Fatalf("error = %q", runs[0].Error)
	}
}

func TestRecordUpsertsAndCountsAttempts(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	runID, _ := l.BeginRun(ctx)

	rec := MessageRecord{Key: "m1@vtm.be", Subject: "Telefacts", Sender: "pers@vtm.be", Status: StatusFailed, Detail: "http 500", RunID: runID}
	if err := l.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec.Status = StatusProcessed
	rec.Detail = ""
	rec.ItemID = "vtm-telefacts-2025-03-10"
	if err := l.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := l.Lookup(ctx, "m1@vtm.be")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Status != StatusProcessed || got.Attempts != 2 || got.ItemID != "vtm-telefacts-2025-03-10" || got.Detail != "" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.FirstSeenAt.IsZero() || got.UpdatedAt.Before(got.FirstSeenAt) {
		t.Fatalf("unexpected timestamps %+v", got)
	}

	missing, err := l.Lookup(ctx, "unknown")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record, got %+v %v", missing, err)
	}
	if err := l.Record(ctx, MessageRecord{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	runID, _ := l.BeginRun(ctx)
	for i, status := range []Status{StatusProcessed, StatusProcessed, StatusIgnored, StatusSkipped} {
		key := string(status) + string(rune('a'+i))
		if err := l.Record(ctx, MessageRecord{Key: key, Status: status, RunID: runID}); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Messages[StatusProcessed] != 2 || stats.Messages[StatusIgnored] != 1 || stats.Messages[StatusSkipped] != 1 {
		t.Fatalf("unexpected counts %v", stats.Messages)
	}
	if stats.Runs != 1 || stats.LastRun == nil || stats.LastRun.ID != runID {
		t.Fatalf("unexpected run stats %+v", stats)
	}
}

func TestPruneCascadesMessages(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	oldRun, _ := l.BeginRun(ctx)
	_ = l.Record(ctx, MessageRecord{Key: "old", Status: StatusIgnored, RunID: oldRun})

	l.now = func() time.Time { return base.Add(48 * time.Hour) }
	newRun, _ := l.BeginRun(ctx)
	_ = l.Record(ctx, MessageRecord{Key: "new", Status: StatusIgnored, RunID: newRun})

	removed, err := l.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	if rec, _ := l.Lookup(ctx, "old"); rec != nil {
		t.Fatal("messages of pruned runs should be removed")
	}
	if rec, _ := l.Lookup(ctx, "new"); rec == nil {
		t.Fatal("recent messages must survive")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = l.BeginRun(ctx)
	_ = l.Close()

	l, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	stats, err := l.Stats(ctx)
	if err != nil || stats.Runs != 1 {
		t.Fatalf("unexpected stats after reopen: %+v %v", stats, err)
	}
}

func TestStatusFinal(t *testing.T) {
	final := map[Status]bool{
		StatusProcessed: true, StatusIgnored: true, StatusDuplicate: true,
		StatusSkipped: false, StatusInvalid: false, StatusFailed: false,
	}
	for status, want := range final {
		if status.Final() != want {
			t.Errorf("%s.Final() = %v", status, status.Final())
		}
	}
	if len(AllStatuses()) != len(final) {
		t.Fatal("AllStatuses out of sync")
	}
}
