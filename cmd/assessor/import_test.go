package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

const placementFile = `[
  {
    "kind": "placement",
    "slug": "a1-entry",
    "title": "Entry placement",
    "durationMinutes": 40,
    "status": "published",
    "questions": [
      {"type": "mcq", "id": "q1", "points": 2, "options": ["am", "is", "are"], "correctOptionIndex": 0},
      {"type": "essay", "id": "e1", "points": 10, "prompt": "Introduce yourself."}
    ]
  }
]`

func newImportStore(t *testing.T) *store.Store {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestImportFiles(t *testing.T) {
	db := newImportStore(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "placement.json", placementFile)

	var out bytes.Buffer
	if err := importFiles(ctx, db, []string{path}, &out); err != nil {
		t.Fatalf("importFiles: %v", err)
	}
	if !strings.Contains(out.String(), "Imported a1-entry") {
		t.Errorf("output = %q", out.String())
	}

	tests, err := db.ListTests(ctx, model.KindPlacement)
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(tests) != 1 || len(tests[0].Questions) != 2 || tests[0].Status != model.TestPublished {
		t.Fatalf("tests = %+v", tests)
	}

	out.Reset()
	if err := importFiles(ctx, db, []string{path}, &out); err != nil {
		t.Fatalf("second importFiles: %v", err)
	}
	if !strings.Contains(out.String(), "unchanged") {
		t.Errorf("second import output = %q, want a skip message", out.String())
	}
}

func TestImportChangedFileUpdatesTest(t *testing.T) {
	db := newImportStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "placement.json", placementFile)
	if err := importFiles(ctx, db, []string{path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("importFiles: %v", err)
	}

	writeFile(t, dir, "placement.json", strings.Replace(placementFile, `"points": 10`, `"points": 20`, 1))
	if err := importFiles(ctx, db, []string{path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	tests, err := db.ListTests(ctx, model.KindPlacement)
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(tests) != 1 {
		t.Fatalf("got %d tests, want the same test updated", len(tests))
	}
	e, ok := tests[0].Question("e1")
	if !ok || e.MaxPoints() != 20 {
		t.Errorf("essay points = %v, want 20", e)
	}
}

func TestImportRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown question type", `{"kind": "placement", "slug": "x", "title": "X", "questions": [{"type": "audio", "id": "a1"}]}`},
		{"missing slug", `{"kind": "placement", "title": "X", "questions": []}`},
		{"bad kind", `{"kind": "oral", "slug": "x", "title": "X", "questions": []}`},
		{"duplicate ids", `{"kind": "placement", "slug": "x", "title": "X", "questions": [
			{"type": "mcq", "id": "q1"}, {"type": "essay", "id": "q1"}]}`},
		{"negative points", `{"kind": "placement", "slug": "x", "title": "X", "questions": [{"type": "essay", "id": "e1", "points": -1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newImportStore(t)
			path := writeFile(t, t.TempDir(), "bad.json", tt.content)
			if err := importFiles(context.Background(), db, []string{path}, &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
			hash, err := db.GetImportedFileHash(path)
			if err != nil {
				t.Fatalf("GetImportedFileHash: %v", err)
			}
			if hash != "" {
				t.Error("failed import was recorded as done")
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := fingerprint([]byte("one"))
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
	if a == fingerprint([]byte("two")) {
		t.Error("different content should give different fingerprints")
	}
}
