package main

import (
	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/ledger"
)

var ledgerListLimit int

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerCountCmd)
	ledgerCmd.AddCommand(ledgerListCmd)

	ledgerListCmd.Flags().IntVarP(&ledgerListLimit, "limit", "l", 0, "Maximum number of ids to list (0 for all)")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the processed-PMID ledger",
}

// LedgerCountResponse is the response for the ledger count command.
type LedgerCountResponse struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

var ledgerCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many PMIDs have been processed",
	Args:  cobra.NoArgs,
	RunE:  runLedgerCount,
}

// LedgerListResponse is the response for the ledger list command.
type LedgerListResponse struct {
	Path  string   `json:"path"`
	Count int      `json:"count"`
	PMIDs []uint64 `json:"pmids"`
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed PMIDs in ascending order",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

func openLedger() (*ledger.Ledger, string) {
	cfg := loadConfig()
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		exitWithError(ExitDataError, "opening ledger: %v", err)
	}
	return led, cfg.LedgerPath
}

func runLedgerCount(cmd *cobra.Command, args []string) error {
	led, path := openLedger()

	if humanOutput {
		outputHuman("%d processed PMIDs in %s\n", led.Len(), path)
	} else {
		outputJSON(LedgerCountResponse{Path: path, Count: led.Len()})
	}
	return nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	led, path := openLedger()

	ids := led.IDs()
	if ledgerListLimit > 0 && len(ids) > ledgerListLimit {
		ids = ids[:ledgerListLimit]
	}

	if humanOutput {
		for _, id := range ids {
			outputHuman("%d\n", id)
		}
	} else {
		outputJSON(LedgerListResponse{Path: path, Count: led.Len(), PMIDs: ids})
	}
	return nil
}
