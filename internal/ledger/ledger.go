// Package ledger maintains the durable set of PMIDs that have been fully
// processed. The ledger is the idempotence mechanism for ingestion: an id
// is committed only after its vector-store write has been acknowledged,
// and committed ids are never removed.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Ledger holds the processed-PMID set in memory, backed by a plain-text
// file with one decimal id per line. All mutation goes through Commit,
// which rewrites the full file via a temp-file rename so a crash can never
// lose a previously committed id or leave the file unparseable.
//
// The file is a single-writer resource: concurrent runs against the same
// ledger path are unsupported.
type Ledger struct {
	path string
	ids  map[uint64]struct{}
}

// Open loads the ledger at path. A missing file yields an empty ledger;
// the file is created on first commit.
func Open(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		ids:  make(map[uint64]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing ledger line %d: %w", lineNum, err)
		}
		l.ids[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	return l, nil
}

// Contains reports whether id has been committed.
func (l *Ledger) Contains(id uint64) bool {
	_, ok := l.ids[id]
	return ok
}

// Len returns the number of committed ids.
func (l *Ledger) Len() int {
	return len(l.ids)
}

// IDs returns all committed ids in ascending order.
func (l *Ledger) IDs() []uint64 {
	ids := make([]uint64, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Commit adds id to the set and persists the complete set durably.
// Committing an already-present id is a membership no-op but still
// rewrites the file. A Commit error means durability cannot be
// guaranteed and the caller must abort the run.
func (l *Ledger) Commit(id uint64) error {
	_, present := l.ids[id]
	l.ids[id] = struct{}{}

	if err := l.save(); err != nil {
		// Roll back the in-memory add so Contains stays consistent
		// with the durable state.
		if !present {
			delete(l.ids, id)
		}
		return fmt.Errorf("committing %d: %w", id, err)
	}
	return nil
}

// save writes the full set to a temp file and atomically replaces the
// ledger file.
func (l *Ledger) save() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	tempPath := l.path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, id := range l.IDs() {
		if _, err := fmt.Fprintln(w, id); err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("writing id: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("flushing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
