package catalog

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndList(t *testing.T) {
	db := openTestDB(t)

	records := []ArchiveRecord{
		{Index: 1, FileName: "pubmed24n0001.xml.gz", Status: "matched", Extracted: 10, Ingested: 8, Skipped: 1, Failed: 1, DurationMs: 1500},
		{Index: 2, FileName: "pubmed24n0002.xml.gz", Status: "mismatched"},
	}
	for _, rec := range records {
		if err := db.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := db.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}

	// Most recent first
	if got[0].Index != 2 || got[0].Status != "mismatched" {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[1].Ingested != 8 || got[1].Failed != 1 {
		t.Errorf("unexpected counters: %+v", got[1])
	}
	if got[0].CompletedAt == 0 {
		t.Error("CompletedAt should be filled in when zero")
	}
}

func TestListLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 5; i++ {
		if err := db.Record(ArchiveRecord{Index: i, FileName: "f", Status: "matched"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := db.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 rows with limit, got %d", len(got))
	}
	if got[0].Index != 5 {
		t.Errorf("expected most recent row first, got index %d", got[0].Index)
	}
}

func TestListEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
