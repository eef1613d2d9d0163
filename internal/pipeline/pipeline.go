// Package pipeline sequences the ingestion run: fetch, verify, extract,
// embed, upsert, commit. It owns failure handling; see the error taxonomy
// in the package documentation of each dependency.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pubvec/pubvec/internal/archive"
	"github.com/pubvec/pubvec/internal/catalog"
	"github.com/pubvec/pubvec/internal/embedding"
	"github.com/pubvec/pubvec/internal/ledger"
	"github.com/pubvec/pubvec/internal/pubmed"
	"github.com/pubvec/pubvec/internal/qdrant"
)

// Store is the vector-store surface the pipeline needs.
type Store interface {
	// Upsert writes points keyed by PMID; an existing id is overwritten.
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
}

// Options configures one pipeline run.
type Options struct {
	Collection string
	StartIndex int // first archive sequence index, inclusive
	EndIndex   int // last archive sequence index, inclusive
}

// Pipeline ingests a range of baseline archives. Construct with New; all
// collaborators are explicit dependencies with no hidden global state.
type Pipeline struct {
	source   archive.Source
	variants []embedding.Variant
	store    Store
	ledger   *ledger.Ledger
	catalog  *catalog.DB // nil disables run recording
	log      *slog.Logger
	opts     Options
}

// New creates a pipeline. catalogDB may be nil.
func New(source archive.Source, variants []embedding.Variant, store Store, led *ledger.Ledger, catalogDB *catalog.DB, log *slog.Logger, opts Options) *Pipeline {
	return &Pipeline{
		source:   source,
		variants: variants,
		store:    store,
		ledger:   led,
		catalog:  catalogDB,
		log:      log,
		opts:     opts,
	}
}

// ArchiveStats is the outcome of processing one archive.
type ArchiveStats struct {
	Index    int              `json:"index"`
	FileName string           `json:"file_name"`
	Status   string           `json:"status"` // matched, mismatched, unverified, failed
	Scan     pubmed.ScanStats `json:"scan"`
	Skipped  int              `json:"records_skipped"` // already in ledger
	Ingested int              `json:"records_ingested"`
	Failed   int              `json:"records_failed"` // embed or upsert failures
	Duration time.Duration    `json:"-"`
}

// RunStats aggregates a full run.
type RunStats struct {
	ArchivesProcessed int            `json:"archives_processed"`
	ArchivesAborted   int            `json:"archives_aborted"`
	RecordsExtracted  int            `json:"records_extracted"`
	RecordsSkipped    int            `json:"records_skipped"`
	RecordsIngested   int            `json:"records_ingested"`
	RecordsFailed     int            `json:"records_failed"`
	Archives          []ArchiveStats `json:"archives"`
	Duration          time.Duration  `json:"-"`
}

// Run processes archives strictly in index order. It returns an error only
// for conditions that invalidate the rest of the run: context cancellation
// or a ledger write failure. Integrity and capability failures are logged,
// counted, and skipped; a later run retries them via the ledger gate.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	startTime := time.Now()
	stats := &RunStats{}

	for index := p.opts.StartIndex; index <= p.opts.EndIndex; index++ {
		select {
		case <-ctx.Done():
			stats.Duration = time.Since(startTime)
			return stats, ctx.Err()
		default:
		}

		archStats, err := p.processArchive(ctx, index)
		p.recordArchive(archStats)
		stats.add(archStats)

		if err != nil {
			stats.Duration = time.Since(startTime)
			return stats, err
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// processArchive runs one archive through the full state sequence. The
// returned error is non-nil only for run-fatal conditions.
func (p *Pipeline) processArchive(ctx context.Context, index int) (ArchiveStats, error) {
	startTime := time.Now()
	archStats := ArchiveStats{
		Index:    index,
		FileName: archive.FileName(index),
	}
	log := p.log.With("archive", archStats.FileName)

	sidecar, err := p.source.FetchChecksum(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return archStats, ctx.Err()
		}
		log.Error("fetching checksum sidecar failed", "error", err)
		archStats.Status = "failed"
		archStats.Duration = time.Since(startTime)
		return archStats, nil
	}

	raw, err := p.source.FetchArchive(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return archStats, ctx.Err()
		}
		log.Error("fetching archive failed", "error", err)
		archStats.Status = "failed"
		archStats.Duration = time.Since(startTime)
		return archStats, nil
	}

	status, err := archive.Verify(raw, sidecar)
	if status != archive.StatusMatched {
		// Hard gate: an unverified or mismatched archive is never
		// decompressed or parsed, and never retried within this run.
		// The actual status is recorded so operators can tell a corrupt
		// download from a corrupt sidecar.
		log.Error("integrity check failed", "status", status, "error", err)
		archStats.Status = string(status)
		archStats.Duration = time.Since(startTime)
		return archStats, nil
	}
	archStats.Status = string(archive.StatusMatched)

	document, err := archive.Decompress(raw)
	if err != nil {
		log.Error("decompressing archive failed", "error", err)
		archStats.Status = "failed"
		archStats.Duration = time.Since(startTime)
		return archStats, nil
	}

	if err := p.processRecords(ctx, document, log, &archStats); err != nil {
		archStats.Duration = time.Since(startTime)
		return archStats, err
	}

	archStats.Duration = time.Since(startTime)
	log.Info("archive done",
		"accepted", archStats.Scan.Accepted,
		"rejected", archStats.Scan.Rejected(),
		"skipped", archStats.Skipped,
		"ingested", archStats.Ingested,
		"failed", archStats.Failed,
	)
	return archStats, nil
}

// processRecords iterates the document's citations in source order.
func (p *Pipeline) processRecords(ctx context.Context, document []byte, log *slog.Logger, archStats *ArchiveStats) error {
	scanner := pubmed.NewScanner(bytes.NewReader(document))
	scanner.SetRejectReporter(pubmed.RejectFunc(func(pmid string, reason pubmed.RejectReason) {
		switch reason {
		case pubmed.RejectMissingPMID:
			log.Warn("citation excluded", "pmid", pmid, "reason", reason)
		default:
			// Retracted and abstract-less citations are expected.
			log.Info("citation filtered", "pmid", pmid, "reason", reason)
		}
	}))

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			archStats.Scan = scanner.Stats()
			return ctx.Err()
		default:
		}

		if err := p.processRecord(ctx, scanner.Article(), log, archStats); err != nil {
			archStats.Scan = scanner.Stats()
			return err
		}
	}
	archStats.Scan = scanner.Stats()

	if err := scanner.Err(); err != nil {
		// A document that stops parsing midway keeps whatever was
		// ingested before the error; the ledger protects those records
		// on the next attempt.
		log.Error("scanning document failed", "error", err)
		archStats.Status = "failed"
	}
	return nil
}

// processRecord runs one record through dedup check, embedding, upsert and
// ledger commit. Only a ledger commit failure is returned as an error.
func (p *Pipeline) processRecord(ctx context.Context, article pubmed.Article, log *slog.Logger, archStats *ArchiveStats) error {
	if p.ledger.Contains(article.PMID) {
		log.Debug("already processed", "pmid", article.PMID)
		archStats.Skipped++
		return nil
	}

	vectors, err := embedding.EmbedAll(ctx, p.variants, article.Abstract)
	if err != nil {
		log.Warn("embedding failed, record will be retried on a future run", "pmid", article.PMID, "error", err)
		archStats.Failed++
		return nil
	}

	point := qdrant.BuildPoint(article, vectors)
	if err := p.store.Upsert(ctx, p.opts.Collection, []qdrant.Point{point}); err != nil {
		log.Warn("upsert failed, record will be retried on a future run", "pmid", article.PMID, "error", err)
		archStats.Failed++
		return nil
	}

	// Commit strictly after the store acknowledged the write. A crash
	// between upsert and commit costs at most one redundant re-embed on
	// the next run; the keyed upsert absorbs the re-write.
	if err := p.ledger.Commit(article.PMID); err != nil {
		return fmt.Errorf("ledger commit for %d: %w", article.PMID, err)
	}

	archStats.Ingested++
	log.Debug("record ingested", "pmid", article.PMID)
	return nil
}

// recordArchive writes the archive outcome to the catalog when configured.
// Catalog trouble is observability loss, not a correctness problem, so it
// only logs.
func (p *Pipeline) recordArchive(archStats ArchiveStats) {
	if p.catalog == nil {
		return
	}
	err := p.catalog.Record(catalog.ArchiveRecord{
		Index:      archStats.Index,
		FileName:   archStats.FileName,
		Status:     archStats.Status,
		Extracted:  archStats.Scan.Accepted,
		Ingested:   archStats.Ingested,
		Skipped:    archStats.Skipped,
		Failed:     archStats.Failed,
		DurationMs: archStats.Duration.Milliseconds(),
	})
	if err != nil {
		p.log.Warn("recording archive outcome failed", "archive", archStats.FileName, "error", err)
	}
}

func (s *RunStats) add(archStats ArchiveStats) {
	s.Archives = append(s.Archives, archStats)
	if archStats.Status == string(archive.StatusMatched) {
		s.ArchivesProcessed++
	} else {
		s.ArchivesAborted++
	}
	s.RecordsExtracted += archStats.Scan.Accepted
	s.RecordsSkipped += archStats.Skipped
	s.RecordsIngested += archStats.Ingested
	s.RecordsFailed += archStats.Failed
}
