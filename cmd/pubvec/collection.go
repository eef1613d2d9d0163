package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/qdrant"
)

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionInitCmd)
	collectionCmd.AddCommand(collectionInfoCmd)
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the target collection",
}

var collectionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the collection if it does not exist",
	Long: `Create the configured collection with one cosine vector field per
configured embedding variant. Creating an existing collection is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runCollectionInit,
}

// CollectionInfoResponse is the response for the collection info command.
type CollectionInfoResponse struct {
	Collection  string `json:"collection"`
	Status      string `json:"status"`
	PointsCount uint64 `json:"points_count"`
}

var collectionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection status and point count",
	Args:  cobra.NoArgs,
	RunE:  runCollectionInfo,
}

func runCollectionInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := loadConfig()

	store := qdrant.NewClient(qdrant.WithBaseURL(cfg.QdrantURL))
	created, err := store.EnsureCollection(ctx, cfg.Collection, cfg.VectorParams())
	if err != nil {
		exitWithError(ExitUnavailable, "preparing collection: %v", err)
	}

	status := "exists"
	if created {
		status = "created"
	}

	if humanOutput {
		outputHuman("Collection %s: %s\n", cfg.Collection, status)
	} else {
		outputJSON(StatusResponse{Status: status, Collection: cfg.Collection})
	}
	return nil
}

func runCollectionInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := loadConfig()

	store := qdrant.NewClient(qdrant.WithBaseURL(cfg.QdrantURL))
	info, err := store.Info(ctx, cfg.Collection)
	if err != nil {
		exitWithError(ExitUnavailable, "describing collection: %v", err)
	}

	if humanOutput {
		outputHuman("Collection: %s\n", cfg.Collection)
		outputHuman("Status:     %s\n", info.Status)
		outputHuman("Points:     %d\n", info.PointsCount)
	} else {
		outputJSON(CollectionInfoResponse{
			Collection:  cfg.Collection,
			Status:      info.Status,
			PointsCount: info.PointsCount,
		})
	}
	return nil
}
