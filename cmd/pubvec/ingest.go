package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/archive"
	"github.com/pubvec/pubvec/internal/catalog"
	"github.com/pubvec/pubvec/internal/config"
	"github.com/pubvec/pubvec/internal/embedding"
	"github.com/pubvec/pubvec/internal/ledger"
	"github.com/pubvec/pubvec/internal/logging"
	"github.com/pubvec/pubvec/internal/pipeline"
	"github.com/pubvec/pubvec/internal/qdrant"
)

var (
	ingestStart      int
	ingestEnd        int
	ingestCollection string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestStart, "start", 0, "First archive index to ingest (overrides config)")
	ingestCmd.Flags().IntVar(&ingestEnd, "end", 0, "Last archive index to ingest (overrides config)")
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "Target collection (overrides config)")
}

// IngestResponse is the response for the ingest command.
type IngestResponse struct {
	Collection        string             `json:"collection"`
	CollectionCreated bool               `json:"collection_created"`
	DurationMs        int64              `json:"duration_ms"`
	Stats             *pipeline.RunStats `json:"stats"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download, extract and upsert a range of baseline archives",
	Long: `Ingest a range of PubMed baseline archives into the configured collection.

Archives are processed strictly in index order. Each archive is verified
against its checksum sidecar before extraction; a mismatched archive is
skipped for the whole run. Citations already recorded in the ledger are
skipped, so re-running after a partial or failed run resumes where the
previous run left off.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if cmd.Flags().Changed("start") {
		cfg.Archive.StartIndex = ingestStart
	}
	if cmd.Flags().Changed("end") {
		cfg.Archive.EndIndex = ingestEnd
	}
	if ingestCollection != "" {
		cfg.Collection = ingestCollection
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	log := logging.New(cfg.LogLevel)

	variants, err := cfg.BuildVariants()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := embedding.Preflight(ctx, variants); err != nil {
		exitWithError(ExitUnavailable, "embedding provider unavailable: %v", err)
	}

	var sourceOpts []archive.ClientOption
	if cfg.Archive.BaseURL != "" {
		sourceOpts = append(sourceOpts, archive.WithBaseURL(cfg.Archive.BaseURL))
	}
	source := archive.NewClient(sourceOpts...)

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		exitWithError(ExitDataError, "opening ledger: %v", err)
	}

	var catalogDB *catalog.DB
	if cfg.CatalogPath != "" {
		catalogDB, err = catalog.Open(cfg.CatalogPath)
		if err != nil {
			exitWithError(ExitDataError, "opening catalog: %v", err)
		}
	}

	// exitWithError skips deferred cleanup, so the run itself reports an
	// exit code and the catalog is closed before exiting.
	code, msg := executeIngest(ctx, cfg, variants, source, led, catalogDB, log)
	if catalogDB != nil {
		catalogDB.Close()
	}
	if code != ExitSuccess {
		exitWithError(code, "%s", msg)
	}
	return nil
}

// executeIngest prepares the collection and runs the pipeline. It returns
// an exit code and message instead of exiting so the caller can release
// resources first.
func executeIngest(ctx context.Context, cfg *config.Config, variants []embedding.Variant, source archive.Source, led *ledger.Ledger, catalogDB *catalog.DB, log *slog.Logger) (int, string) {
	store := qdrant.NewClient(qdrant.WithBaseURL(cfg.QdrantURL))
	created, err := store.EnsureCollection(ctx, cfg.Collection, cfg.VectorParams())
	if err != nil {
		return ExitUnavailable, fmt.Sprintf("preparing collection: %v", err)
	}
	if created {
		log.Info("collection created", "collection", cfg.Collection)
	}

	p := pipeline.New(source, variants, store, led, catalogDB, log, pipeline.Options{
		Collection: cfg.Collection,
		StartIndex: cfg.Archive.StartIndex,
		EndIndex:   cfg.Archive.EndIndex,
	})

	stats, runErr := p.Run(ctx)

	printIngestResult(cfg, created, stats)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return ExitError, "ingestion interrupted"
		}
		return ExitDataError, fmt.Sprintf("ingestion aborted: %v", runErr)
	}
	return ExitSuccess, ""
}

func printIngestResult(cfg *config.Config, created bool, stats *pipeline.RunStats) {
	if !humanOutput {
		outputJSON(IngestResponse{
			Collection:        cfg.Collection,
			CollectionCreated: created,
			DurationMs:        stats.Duration.Milliseconds(),
			Stats:             stats,
		})
		return
	}

	outputHuman("Collection: %s\n", cfg.Collection)
	outputHuman("Archives:   %d processed, %d aborted\n", stats.ArchivesProcessed, stats.ArchivesAborted)
	outputHuman("Records:    %d extracted, %d ingested, %d skipped, %d failed\n",
		stats.RecordsExtracted, stats.RecordsIngested, stats.RecordsSkipped, stats.RecordsFailed)
	outputHuman("Duration:   %s\n\n", formatDuration(stats.Duration))

	for _, a := range stats.Archives {
		outputHuman("  %s  %-10s  ingested=%d skipped=%d failed=%d  (%s)\n",
			a.FileName, a.Status, a.Ingested, a.Skipped, a.Failed, formatDuration(a.Duration))
	}
}
