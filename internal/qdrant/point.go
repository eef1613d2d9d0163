package qdrant

import (
	"github.com/pubvec/pubvec/internal/pubmed"
)

// Point is one stored unit: a numeric id, one or more vectors, and a
// metadata payload. Exactly one of Vector and Vectors is set.
type Point struct {
	ID      uint64
	Vector  []float32            // single-vector collections
	Vectors map[string][]float32 // named-vector collections
	Payload map[string]any
}

// pointJSON is the wire form of a Point.
type pointJSON struct {
	ID      uint64         `json:"id"`
	Vector  any            `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (p Point) toJSON() pointJSON {
	var vector any
	if p.Vectors != nil {
		vector = p.Vectors
	} else {
		vector = p.Vector
	}
	return pointJSON{
		ID:      p.ID,
		Vector:  vector,
		Payload: p.Payload,
	}
}

// BuildPoint assembles the store point for an article. The point is keyed
// by PMID alone (the version tag goes into the payload, not the key), so a
// re-ingested article overwrites its previous point. A single vector keyed
// by the empty string becomes the collection's unnamed vector.
func BuildPoint(article pubmed.Article, vectors map[string][]float32) Point {
	p := Point{
		ID:      article.PMID,
		Payload: buildPayload(article),
	}

	if v, ok := vectors[""]; ok && len(vectors) == 1 {
		p.Vector = v
	} else {
		p.Vectors = vectors
	}
	return p
}

// buildPayload mirrors every article field into the metadata payload.
// Vectors are never part of the payload.
func buildPayload(article pubmed.Article) map[string]any {
	authors := make([]map[string]any, len(article.Authors))
	for i, a := range article.Authors {
		authors[i] = map[string]any{
			"last_name": a.LastName,
			"fore_name": a.ForeName,
		}
	}

	keywords := article.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return map[string]any{
		"pmid":             article.PMID,
		"pmid_version":     article.Version,
		"title":            article.Title,
		"abstract":         article.Abstract,
		"authors":          authors,
		"authors_complete": article.AuthorsComplete,
		"journal": map[string]any{
			"title":  article.Journal.Title,
			"volume": article.Journal.Volume,
			"pub_date": map[string]any{
				"year":  article.Journal.PubDate.Year,
				"month": article.Journal.PubDate.Month,
				"day":   article.Journal.PubDate.Day,
			},
		},
		"keywords": keywords,
		"publication_identifiers": map[string]any{
			"doi": article.DOI,
		},
	}
}
