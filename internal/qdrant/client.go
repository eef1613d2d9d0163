// Package qdrant is a minimal REST client for the Qdrant vector store,
// covering collection administration, keyed upserts and similarity search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the default Qdrant REST endpoint.
	DefaultBaseURL = "http://localhost:6333"

	// DefaultTimeout is the timeout for store requests.
	DefaultTimeout = 60 * time.Second

	// DistanceCosine selects cosine similarity for a collection.
	DistanceCosine = "Cosine"
)

// VectorParams describes one vector field of a collection.
type VectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// Client talks to a Qdrant instance over REST.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the Qdrant REST endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Qdrant client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectionExists reports whether the named collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+name+"/exists", nil, &result); err != nil {
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return result.Result.Exists, nil
}

// CreateCollection creates a collection with the given vector schema. A
// single entry keyed by the empty string configures an unnamed vector;
// otherwise every entry becomes a named vector field.
func (c *Client) CreateCollection(ctx context.Context, name string, vectors map[string]VectorParams) error {
	var vectorsConfig any
	if params, ok := vectors[""]; ok && len(vectors) == 1 {
		vectorsConfig = params
	} else {
		vectorsConfig = vectors
	}

	body := map[string]any{"vectors": vectorsConfig}
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// EnsureCollection creates the collection if it does not already exist.
// It reports whether the collection was created by this call.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectors map[string]VectorParams) (bool, error) {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := c.CreateCollection(ctx, name, vectors); err != nil {
		return false, err
	}
	return true, nil
}

// CollectionInfo summarizes a collection.
type CollectionInfo struct {
	Status      string `json:"status"`
	PointsCount uint64 `json:"points_count"`
}

// Info returns status and point count for the named collection.
func (c *Client) Info(ctx context.Context, name string) (*CollectionInfo, error) {
	var result struct {
		Result CollectionInfo `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &result); err != nil {
		return nil, fmt.Errorf("describing collection %s: %w", name, err)
	}
	return &result.Result, nil
}

// Upsert writes points into the collection. Writing a point whose id
// already exists overwrites it in place, which is what makes re-ingestion
// idempotent on the store side.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	wire := make([]pointJSON, len(points))
	for i, p := range points {
		wire[i] = p.toJSON()
	}

	body := map[string]any{"points": wire}
	if err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// SearchRequest selects the query vector for a similarity search. Name is
// empty for single-vector collections.
type SearchRequest struct {
	VectorName string
	Vector     []float32
	Limit      int
}

// ScoredPoint is one similarity search hit.
type ScoredPoint struct {
	ID      uint64         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search returns the nearest points to the query vector, best first.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) ([]ScoredPoint, error) {
	var queryVector any = req.Vector
	if req.VectorName != "" {
		queryVector = map[string]any{
			"name":   req.VectorName,
			"vector": req.Vector,
		}
	}

	body := map[string]any{
		"vector":       queryVector,
		"limit":        req.Limit,
		"with_payload": true,
	}

	var result struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &result); err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	return result.Result, nil
}

// do sends one JSON request and decodes the JSON response into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant returned status %d: %s", resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
