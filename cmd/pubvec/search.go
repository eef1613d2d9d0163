package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pubvec/pubvec/internal/embedding"
	"github.com/pubvec/pubvec/internal/qdrant"
)

var (
	searchVariant string
	searchLimit   int
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchVariant, "variant", "", "Embedding variant to search with (default: first configured)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", DefaultSearchLimit, "Maximum number of results")
}

// SearchResult represents one citation in search results.
type SearchResult struct {
	PMID     uint64  `json:"pmid"`
	Score    float32 `json:"score"`
	Title    string  `json:"title"`
	Journal  string  `json:"journal,omitempty"`
	Abstract string  `json:"abstract,omitempty"`
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query   string         `json:"query"`
	Variant string         `json:"variant"`
	Model   string         `json:"model"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search ingested citations by semantic similarity",
	Long: `Search the collection for citations semantically similar to the query.

The query is embedded with one of the configured variants and searched
against the matching named vector in the collection.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(args[0])
	if query == "" {
		exitWithError(ExitError, "search query cannot be empty")
	}

	cfg := loadConfig()
	variants, err := cfg.BuildVariants()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	variant := variants[0]
	if searchVariant != "" {
		v, ok := embedding.FindVariant(variants, searchVariant)
		if !ok {
			exitWithError(ExitConfigError, "variant %q is not configured", searchVariant)
		}
		variant = v
	}

	if err := embedding.Preflight(ctx, []embedding.Variant{variant}); err != nil {
		exitWithError(ExitUnavailable, "embedding provider unavailable: %v", err)
	}

	emb, err := variant.Provider.Embed(ctx, query)
	if err != nil {
		exitWithError(ExitUnavailable, "embedding query: %v", err)
	}

	store := qdrant.NewClient(qdrant.WithBaseURL(cfg.QdrantURL))
	hits, err := store.Search(ctx, cfg.Collection, qdrant.SearchRequest{
		VectorName: variant.Name,
		Vector:     emb.Vector,
		Limit:      searchLimit,
	})
	if err != nil {
		exitWithError(ExitUnavailable, "searching collection: %v", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		result := SearchResult{
			PMID:     hit.ID,
			Score:    hit.Score,
			Title:    payloadString(hit.Payload, "title"),
			Abstract: payloadString(hit.Payload, "abstract"),
		}
		if journal, ok := hit.Payload["journal"].(map[string]any); ok {
			result.Journal = payloadString(journal, "title")
		}
		results = append(results, result)
	}

	if humanOutput {
		outputHuman("Search: %q\n", query)
		outputHuman("Found %d citations (variant: %s)\n\n", len(results), variant.Name)
		for i, r := range results {
			outputHuman("%d. [%.2f] PMID %d\n", i+1, r.Score, r.PMID)
			outputHuman("   %s\n", truncateString(r.Title, SearchTitleMaxLen))
			if r.Journal != "" {
				outputHuman("   %s\n", r.Journal)
			}
			outputHuman("   %s\n\n", truncateString(r.Abstract, SearchAbstractMaxLen))
		}
	} else {
		outputJSON(SearchResponse{
			Query:   query,
			Variant: variant.Name,
			Model:   variant.Provider.ModelName(),
			Results: results,
			Total:   len(results),
		})
	}

	return nil
}
