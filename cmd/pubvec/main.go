// Package main provides the pubvec CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	// configPath is the configuration file; missing file means defaults
	configPath string
)

func main() {
	// A .env file is optional; when present it supplies OPENAI_API_KEY.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubvec",
	Short: "PubMed baseline ingestion into a vector store",
	Long: `pubvec ingests PubMed baseline archives into a Qdrant collection.

Each archive is downloaded with checksum verification, its citations are
extracted and filtered, and every accepted citation is embedded and
upserted keyed by PMID. A durable ledger of processed PMIDs makes re-runs
idempotent. All commands output JSON by default for easy integration with
other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pubvec.yml", "Path to the configuration file")
	rootCmd.Version = Version
}

// loadConfig loads the configuration file, or exits on a config error.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}
