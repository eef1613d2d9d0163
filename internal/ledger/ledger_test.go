package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func tempLedgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "processed.txt")
}

func TestOpenMissingFile(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("expected empty ledger, got %d ids", l.Len())
	}
	if l.Contains(100) {
		t.Error("empty ledger should not contain 100")
	}
}

func TestCommitAndContains(t *testing.T) {
	path := tempLedgerPath(t)
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, id := range []uint64{100, 200, 300} {
		if err := l.Commit(id); err != nil {
			t.Fatalf("Commit(%d) failed: %v", id, err)
		}
	}

	if l.Len() != 3 {
		t.Errorf("expected 3 ids, got %d", l.Len())
	}
	for _, id := range []uint64{100, 200, 300} {
		if !l.Contains(id) {
			t.Errorf("ledger should contain %d", id)
		}
	}
	if l.Contains(400) {
		t.Error("ledger should not contain 400")
	}
}

func TestCommitIsMonotonicNoOp(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := l.Commit(100); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := l.Commit(100); err != nil {
		t.Fatalf("re-Commit failed: %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("re-committing 100 should not grow the set, got %d ids", l.Len())
	}
}

func TestReloadAfterCommit(t *testing.T) {
	path := tempLedgerPath(t)

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := l.Commit(100); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := l.Commit(42); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("re-Open failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 ids after reload, got %d", reloaded.Len())
	}
	if !reloaded.Contains(100) || !reloaded.Contains(42) {
		t.Error("reloaded ledger missing committed ids")
	}
}

func TestIDsSorted(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, id := range []uint64{300, 100, 200} {
		if err := l.Commit(id); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}

	ids := l.IDs()
	want := []uint64{100, 200, 300}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected sorted ids %v, got %v", want, ids)
		}
	}
}

func TestCommitLeavesNoTempFile(t *testing.T) {
	path := tempLedgerPath(t)
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := l.Commit(100); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after commit")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("ledger file should exist after commit: %v", err)
	}
}

func TestOpenCorruptLedger(t *testing.T) {
	path := tempLedgerPath(t)
	if err := os.WriteFile(path, []byte("100\nnot-a-number\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected error for corrupt ledger file")
	}
}

func TestCommitFailureRollsBack(t *testing.T) {
	// Point the ledger at a path whose parent is a file, so the save
	// cannot create its directory.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}

	l := &Ledger{
		path: filepath.Join(blocker, "processed.txt"),
		ids:  make(map[uint64]struct{}),
	}
	if err := l.Commit(100); err == nil {
		t.Fatal("expected Commit to fail")
	}
	if l.Contains(100) {
		t.Error("failed commit should not leave 100 in the in-memory set")
	}
}
