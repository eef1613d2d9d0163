package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/catalog"
)

var catalogLimit int

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().IntVarP(&catalogLimit, "limit", "l", 20, "Maximum number of rows to show (0 for all)")
}

// CatalogResponse is the response for the catalog command.
type CatalogResponse struct {
	Path     string                  `json:"path"`
	Archives []catalog.ArchiveRecord `json:"archives"`
	Total    int                     `json:"total"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show recent per-archive ingestion outcomes",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.CatalogPath == "" {
		exitWithError(ExitConfigError, "catalog_path is not configured")
	}

	db, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		exitWithError(ExitDataError, "opening catalog: %v", err)
	}
	defer db.Close()

	records, err := db.List(catalogLimit)
	if err != nil {
		exitWithError(ExitDataError, "listing catalog: %v", err)
	}

	if humanOutput {
		for _, rec := range records {
			completed := time.Unix(rec.CompletedAt, 0).Format(time.RFC3339)
			outputHuman("%s  %s  %-10s  extracted=%d ingested=%d skipped=%d failed=%d\n",
				completed, rec.FileName, rec.Status,
				rec.Extracted, rec.Ingested, rec.Skipped, rec.Failed)
		}
	} else {
		outputJSON(CatalogResponse{
			Path:     cfg.CatalogPath,
			Archives: records,
			Total:    len(records),
		})
	}
	return nil
}
