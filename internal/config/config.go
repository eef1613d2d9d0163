// Package config handles pubvec configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pubvec/pubvec/internal/archive"
	"github.com/pubvec/pubvec/internal/embedding"
	"github.com/pubvec/pubvec/internal/qdrant"
)

// Provider kinds accepted in a variant configuration.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the pubvec configuration, stored as YAML.
type Config struct {
	LogLevel   string        `yaml:"log_level,omitempty"`
	Collection string        `yaml:"collection,omitempty"`
	QdrantURL  string        `yaml:"qdrant_url,omitempty"`
	Archive    ArchiveConfig `yaml:"archive,omitempty"`
	LedgerPath string        `yaml:"ledger_path,omitempty"`

	// CatalogPath is the SQLite run catalog; empty disables it.
	CatalogPath string `yaml:"catalog_path,omitempty"`

	Variants []VariantConfig `yaml:"variants,omitempty"`
}

// ArchiveConfig selects the remote directory and index range to ingest.
type ArchiveConfig struct {
	BaseURL    string `yaml:"base_url,omitempty"`
	StartIndex int    `yaml:"start_index,omitempty"`
	EndIndex   int    `yaml:"end_index,omitempty"`
}

// VariantConfig describes one named embedding variant.
type VariantConfig struct {
	Name       string `yaml:"name"`
	Provider   string `yaml:"provider"` // ollama or openai
	Model      string `yaml:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
}

// Default returns the configuration used when no file is present: the two
// named bge variants over local Ollama, matching the baseline collection
// layout.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		Collection: "PubMed",
		QdrantURL:  qdrant.DefaultBaseURL,
		Archive: ArchiveConfig{
			BaseURL:    archive.DefaultBaseURL,
			StartIndex: 1,
			EndIndex:   1,
		},
		LedgerPath:  "processed_pmids.txt",
		CatalogPath: "pubvec_catalog.db",
		Variants: []VariantConfig{
			{Name: "bgem3_embedding", Provider: ProviderOllama, Model: "bge-m3", Dimensions: 1024},
			{Name: "bge_large_embedding", Provider: ProviderOllama, Model: "bge-large", Dimensions: 1024},
		},
	}
}

// Load reads configuration from path, applying defaults for any field the
// file leaves unset. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection must not be empty")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must not be empty")
	}
	if c.Archive.StartIndex < 1 {
		return fmt.Errorf("archive.start_index must be at least 1")
	}
	if c.Archive.EndIndex < c.Archive.StartIndex {
		return fmt.Errorf("archive.end_index must not be below archive.start_index")
	}
	if len(c.Variants) == 0 {
		return fmt.Errorf("at least one embedding variant is required")
	}

	seen := make(map[string]bool)
	for i, v := range c.Variants {
		if v.Name == "" && len(c.Variants) > 1 {
			return fmt.Errorf("variant %d: unnamed vectors are only valid in single-variant configurations", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variant name %q", v.Name)
		}
		seen[v.Name] = true

		switch v.Provider {
		case ProviderOllama, ProviderOpenAI:
		default:
			return fmt.Errorf("variant %q: unknown provider %q", v.Name, v.Provider)
		}
		if v.Dimensions < 0 {
			return fmt.Errorf("variant %q: dimensions must not be negative", v.Name)
		}
	}

	return nil
}

// BuildVariants constructs the embedding providers for the configured
// variants.
func (c *Config) BuildVariants() ([]embedding.Variant, error) {
	variants := make([]embedding.Variant, 0, len(c.Variants))
	for _, vc := range c.Variants {
		provider, err := buildProvider(vc)
		if err != nil {
			return nil, err
		}
		variants = append(variants, embedding.Variant{Name: vc.Name, Provider: provider})
	}
	return variants, nil
}

// VectorParams returns the collection vector schema implied by the
// configured variants.
func (c *Config) VectorParams() map[string]qdrant.VectorParams {
	params := make(map[string]qdrant.VectorParams, len(c.Variants))
	for _, vc := range c.Variants {
		dims := vc.Dimensions
		if dims == 0 {
			dims = defaultDimensions(vc)
		}
		params[vc.Name] = qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.DistanceCosine,
		}
	}
	return params
}

func buildProvider(vc VariantConfig) (embedding.Provider, error) {
	switch vc.Provider {
	case ProviderOllama:
		var opts []embedding.OllamaOption
		if vc.BaseURL != "" {
			opts = append(opts, embedding.WithOllamaBaseURL(vc.BaseURL))
		}
		if vc.Model != "" {
			opts = append(opts, embedding.WithOllamaModel(vc.Model))
		}
		if vc.Dimensions != 0 {
			opts = append(opts, embedding.WithOllamaDimensions(vc.Dimensions))
		}
		return embedding.NewOllamaProvider(opts...), nil
	case ProviderOpenAI:
		var opts []embedding.OpenAIOption
		if vc.BaseURL != "" {
			opts = append(opts, embedding.WithOpenAIBaseURL(vc.BaseURL))
		}
		if vc.Model != "" {
			opts = append(opts, embedding.WithOpenAIModel(vc.Model))
		}
		if vc.Dimensions != 0 {
			opts = append(opts, embedding.WithOpenAIDimensions(vc.Dimensions))
		}
		return embedding.NewOpenAIProvider(opts...), nil
	default:
		return nil, fmt.Errorf("variant %q: unknown provider %q", vc.Name, vc.Provider)
	}
}

func defaultDimensions(vc VariantConfig) int {
	if vc.Provider == ProviderOpenAI {
		return embedding.DefaultOpenAIDimensions
	}
	return embedding.DefaultOllamaDimensions
}
