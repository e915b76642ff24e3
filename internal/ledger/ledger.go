package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Ledger persists run and message history in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &Ledger{db: db, path: path, now: time.Now}
	if err := l.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the database location.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// BeginRun records the start of a run and returns its identifier.
func (l *Ledger) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, formatTime(l.now()))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counters of run. runErr may be nil.
func (l *Ledger) FinishRun(ctx context.Context, run Run, runErr error) error {
	var errMsg any
	if runErr != nil {
		errMsg = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs
         SET finished_at = ?, scanned = ?, relevant = ?, added = ?, failed = ?, error_message = ?
         WHERE id = ?`,
		formatTime(l.now()), run.Scanned, run.Relevant, run.Added, run.Failed, errMsg, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", run.ID)
	}
	return nil
}

// Lookup returns the ledger row for key, or nil when the message is unknown.
func (l *Ledger) Lookup(ctx context.Context, key string) (*MessageRecord, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_key = ?`, key)
	rec, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup message: %w", err)
	}
	return rec, nil
}

// Record upserts the outcome for a message, counting repeated attempts.
func (l *Ledger) Record(ctx context.Context, rec MessageRecord) error {
	if rec.Key == "" {
		return errors.New("record message: key required")
	}
	ts := formatTime(l.now())
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO messages (message_key, subject, sender, status, detail, item_id, run_id, attempts, first_seen_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
         ON CONFLICT(message_key) DO UPDATE SET
             subject = excluded.subject,
             sender = excluded.sender,
             status = excluded.status,
             detail = excluded.detail,
             item_id = excluded.item_id,
             run_id = excluded.run_id,
             attempts = messages.attempts + 1,
             updated_at = excluded.updated_at`,
		rec.Key, rec.Subject, rec.Sender, string(rec.Status),
		nullableString(rec.Detail), nullableString(rec.ItemID), rec.RunID, ts, ts)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Stats returns message counts per status and run totals.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Messages: make(map[Status]int)}

	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM messages GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("message stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Messages[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs`).Scan(&stats.Runs); err != nil {
		return stats, fmt.Errorf("count runs: %w", err)
	}
	recent, err := l.RecentRuns(ctx, 1)
	if err != nil {
		return stats, err
	}
	if len(recent) == 1 {
		stats.LastRun = &recent[0]
	}
	return stats, nil
}

// Prune deletes runs (and their messages) that started before cutoff.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

const (
	messageColumns = "message_key, subject, sender, status, detail, item_id, run_id, attempts, first_seen_at, updated_at"
	runColumns     = "id, started_at, finished_at, scanned, relevant, added, failed, error_message"
)

type scanner interface{ Scan(dest ...any) error }

func scanMessage(s scanner) (*MessageRecord, error) {
	var (
		rec                MessageRecord
		status             string
		detail, itemID     sql.NullString
		firstSeen, updated string
	)
	if err := s.Scan(&rec.Key, &rec.Subject, &rec.Sender, &status, &detail, &itemID,
		&rec.RunID, &rec.Attempts, &firstSeen, &updated); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.Detail = detail.String
	rec.ItemID = itemID.String
	rec.FirstSeenAt, _ = parseTime(firstSeen)
	rec.UpdatedAt, _ = parseTime(updated)
	return &rec, nil
}

func scanRun(s scanner) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		errMsg   sql.NullString
	)
	if err := s.Scan(&run.ID, &started, &finished, &run.Scanned, &run.Relevant,
		&run.Added, &run.Failed, &errMsg); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt, _ = parseTime(started)
	if finished.Valid {
		if t, err := parseTime(finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	run.Error = errMsg.String
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}
