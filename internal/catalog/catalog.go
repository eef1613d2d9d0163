// Package catalog records per-archive ingestion outcomes in a local
// SQLite database so operators can review what each run did.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// ArchiveRecord is one row of the archives table: the outcome of
// processing a single archive index during a run.
type ArchiveRecord struct {
	Index       int    `json:"index"`
	FileName    string `json:"file_name"`
	Status      string `json:"status"` // matched, mismatched, unverified, failed
	Extracted   int    `json:"records_extracted"`
	Ingested    int    `json:"records_ingested"`
	Skipped     int    `json:"records_skipped"`
	Failed      int    `json:"records_failed"`
	DurationMs  int64  `json:"duration_ms"`
	CompletedAt int64  `json:"completed_at"` // unix seconds
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS archives (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			archive_index INTEGER NOT NULL,
			file_name TEXT NOT NULL,
			status TEXT NOT NULL,
			records_extracted INTEGER NOT NULL,
			records_ingested INTEGER NOT NULL,
			records_skipped INTEGER NOT NULL,
			records_failed INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			completed_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_archives_index ON archives(archive_index);
	`
	_, err := db.Exec(schema)
	return err
}

// Record appends one archive outcome row.
func (d *DB) Record(rec ArchiveRecord) error {
	if rec.CompletedAt == 0 {
		rec.CompletedAt = time.Now().Unix()
	}

	_, err := d.db.Exec(`
		INSERT INTO archives (
			archive_index, file_name, status,
			records_extracted, records_ingested, records_skipped, records_failed,
			duration_ms, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Index, rec.FileName, rec.Status,
		rec.Extracted, rec.Ingested, rec.Skipped, rec.Failed,
		rec.DurationMs, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("recording archive %s: %w", rec.FileName, err)
	}
	return nil
}

// List returns archive rows, most recent first, up to limit rows.
// A limit of 0 returns all rows.
func (d *DB) List(limit int) ([]ArchiveRecord, error) {
	query := `
		SELECT archive_index, file_name, status,
			records_extracted, records_ingested, records_skipped, records_failed,
			duration_ms, completed_at
		FROM archives
		ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	defer rows.Close()

	var records []ArchiveRecord
	for rows.Next() {
		var rec ArchiveRecord
		if err := rows.Scan(
			&rec.Index, &rec.FileName, &rec.Status,
			&rec.Extracted, &rec.Ingested, &rec.Skipped, &rec.Failed,
			&rec.DurationMs, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading archive rows: %w", err)
	}

	return records, nil
}
