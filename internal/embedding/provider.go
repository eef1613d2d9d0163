package embedding

import (
	"context"
	"fmt"
)

// Provider generates embeddings from text.
type Provider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}

// Variant binds a vector name to the provider that produces it. A point
// stored with multiple variants carries one named vector per variant, all
// generated from the same abstract text.
type Variant struct {
	Name     string
	Provider Provider
}

// EmbedAll generates one vector per variant for the given text. It stops
// at the first provider failure so a partially embedded record is never
// stored.
func EmbedAll(ctx context.Context, variants []Variant, text string) (map[string][]float32, error) {
	vectors := make(map[string][]float32, len(variants))
	for _, v := range variants {
		emb, err := v.Provider.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		vectors[v.Name] = emb.Vector
	}
	return vectors, nil
}

// AvailabilityChecker is implemented by providers that can be probed for
// reachability before a run starts.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) error
}

// ModelChecker is implemented by providers that can report whether their
// configured model is installed.
type ModelChecker interface {
	HasModel(ctx context.Context) (bool, error)
}

// Preflight probes every variant whose provider supports availability or
// model checks, failing on the first problem so a run never starts against
// a provider that cannot serve it. Providers without checks are assumed
// available.
func Preflight(ctx context.Context, variants []Variant) error {
	for _, v := range variants {
		if checker, ok := v.Provider.(AvailabilityChecker); ok {
			if err := checker.IsAvailable(ctx); err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
		}
		if checker, ok := v.Provider.(ModelChecker); ok {
			found, err := checker.HasModel(ctx)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			if !found {
				return fmt.Errorf("variant %s: model %s is not installed", v.Name, v.Provider.ModelName())
			}
		}
	}
	return nil
}

// FindVariant returns the variant with the given name.
func FindVariant(variants []Variant, name string) (Variant, bool) {
	for _, v := range variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
