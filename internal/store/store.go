package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"pressdesk/internal/fileutil"
	"pressdesk/internal/logging"
	"pressdesk/internal/press"
)

// ErrLocked is returned by Lock when another process holds the store lock.
var ErrLocked = errors.New("store locked by another process")

// LoadResult describes how the history was obtained.
type LoadResult struct {
	Items   []press.Item
	Missing bool
	Corrupt bool
}

// Store reads and writes the JSON history file at Path.
type Store struct {
	path     string
	lockPath string
	logger   *slog.Logger
}

// New constructs a store for path. The lock file lives next to it.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:     path,
		lockPath: path + ".lock",
		logger:   logging.NewComponentLogger(logger, "store"),
	}
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the history. Missing and undecodable files yield an empty
// history; only unexpected I/O failures are returned as errors.
func (s *Store) Load() (LoadResult, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("store file not found; starting empty", logging.String("path", s.path))
			return LoadResult{Items: []press.Item{}, Missing: true}, nil
		}
		return LoadResult{}, fmt.Errorf("read store: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return LoadResult{Items: []press.Item{}}, nil
	}

	var items []press.Item
	if err := json.Unmarshal(data, &items); err != nil {
		backup := s.path + ".corrupt"
		attrs := []logging.Attr{
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect "+backup+" and restore manually if needed"),
			logging.String(logging.FieldImpact, "history starts empty and is overwritten on next save"),
		}
		if copyErr := fileutil.CopyFile(s.path, backup); copyErr != nil {
			attrs = append(attrs, logging.String("backup_error", copyErr.Error()))
		} else {
			attrs = append(attrs, logging.String("backup", backup))
		}
		logging.WarnWithContext(s.logger, "store file unreadable; starting empty", "store_corrupt", attrs...)
		return LoadResult{Items: []press.Item{}, Corrupt: true}, nil
	}
	if items == nil {
		items = []press.Item{}
	}

	s.logger.Debug("loaded store",
		logging.Int("item_count", len(items)),
		logging.String("path", s.path))
	return LoadResult{Items: items}, nil
}

// Save writes items as a 2-space indented JSON array without HTML escaping.
func (s *Store) Save(items []press.Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	s.logger.Debug("saved store",
		logging.Int("item_count", len(items)),
		logging.String("path", s.path))
	return nil
}

// Encode renders items exactly as Save writes them.
func Encode(items []press.Item) ([]byte, error) {
	if items == nil {
		items = []press.Item{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}
	return buf.Bytes(), nil
}

// Lock acquires the advisory store lock without blocking. The returned
// function releases it.
func (s *Store) Lock() (func(), error) {
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, s.lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release store lock",
				logging.String("lock", s.lockPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "store_unlock_failed"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no run is active"))
		}
	}, nil
}

// Find returns the item with id, matching exactly or by unique prefix.
func Find(items []press.Item, id string) (press.Item, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return press.Item{}, false
	}
	var match press.Item
	found := 0
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
		if strings.HasPrefix(item.ID, id) {
			match = item
			found++
		}
	}
	return match, found == 1
}
