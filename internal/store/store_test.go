package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pressdesk/internal/logging"
	"pressdesk/internal/press"
)

func sampleItems() []press.Item {
	at := "20:35"
	captured := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return []press.Item{
		{
			ID:          "vtm-telefacts-2025-03-10",
			Title:       "Telefacts",
			Channel:     "VTM",
			AirDate:     "2025-03-10",
			AirTime:     &at,
			SeasonStart: true,
			Summary:     "Nieuw seizoen <met> \"Telefacts\" & meer",
			CapturedAt:  captured,
		},
		{
			ID:         "eén-thuis-2025-03-11",
			Title:      "Thuis",
			Channel:    "Eén",
			AirDate:    "2025-03-11",
			CapturedAt: captured,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "items.json")
	s := New(path, logging.NewNop())

	if err := s.Save(sampleItems()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Missing || res.Corrupt {
		t.Fatalf("unexpected flags %+v", res)
	}
	if len(res.Items) != 2 || res.Items[0].AirTime == nil || *res.Items[0].AirTime != "20:35" {
		t.Fatalf("unexpected items %+v", res.Items)
	}
	if res.Items[1].AirTime != nil {
		t.Fatal("null air_time should stay nil")
	}

	if err := s.Save(res.Items); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed bytes:\n%s\n---\n%s", first, second)
	}
}

func TestEncodeFormat(t *testing.T) {
	data, err := Encode(sampleItems())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "[\n  {\n    \"id\": ") {
		t.Fatalf("expected 2-space indentation, got %q", text[:30])
	}
	if !strings.Contains(text, `<met>`) || strings.Contains(text, `\u003c`) {
		t.Fatal("HTML characters must not be escaped")
	}
	if !strings.Contains(text, `"Eén"`) {
		t.Fatal("non-ASCII must be written as UTF-8")
	}
	if !strings.Contains(text, `"air_time": null`) {
		t.Fatal("missing air time must be encoded as null")
	}
	if strings.Contains(text, `"full_text"`) {
		t.Fatal("unused text variant must be omitted")
	}
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("got %q", data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "items.json"), nil)
	res, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.Missing || len(res.Items) != 0 || res.Items == nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoadCorruptFileRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(path, logging.NewNop())

	res, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.Corrupt || len(res.Items) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	backup, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "{not json" {
		t.Fatalf("backup content = %q", backup)
	}

	if err := s.Save(sampleItems()[:1]); err != nil {
		t.Fatal(err)
	}
	res, err = s.Load()
	if err != nil || res.Corrupt || len(res.Items) != 1 {
		t.Fatalf("store not recovered: %+v %v", res, err)
	}
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	a := New(path, nil)
	b := New(path, nil)

	unlock, err := a.Lock()
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := b.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	unlock()

	unlock, err = b.Lock()
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock()
}

func TestFind(t *testing.T) {
	items := sampleItems()
	if it, ok := Find(items, "vtm-telefacts-2025-03-10"); !ok || it.Title != "Telefacts" {
		t.Fatalf("exact match failed: %+v %v", it, ok)
	}
	if it, ok := Find(items, "eén"); !ok || it.Title != "Thuis" {
		t.Fatalf("prefix match failed: %+v %v", it, ok)
	}
	if _, ok := Find(items, "nope"); ok {
		t.Fatal("unexpected match")
	}
	if _, ok := Find(items, ""); ok {
		t.Fatal("empty id must not match")
	}
}
