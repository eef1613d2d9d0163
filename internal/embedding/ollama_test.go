package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOllamaProvider_Defaults(t *testing.T) {
	provider := NewOllamaProvider()

	if provider.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", provider.baseURL, DefaultOllamaURL)
	}
	if provider.model != DefaultOllamaModel {
		t.Errorf("model = %s, want %s", provider.model, DefaultOllamaModel)
	}
	if provider.dimensions != DefaultOllamaDimensions {
		t.Errorf("dimensions = %d, want %d", provider.dimensions, DefaultOllamaDimensions)
	}
	if provider.client == nil {
		t.Error("client should not be nil")
	}
}

func TestNewOllamaProvider_WithOptions(t *testing.T) {
	provider := NewOllamaProvider(
		WithOllamaBaseURL("http://custom:8080"),
		WithOllamaModel("bge-large"),
		WithOllamaDimensions(768),
		WithOllamaTimeout(10*time.Second),
	)

	if provider.baseURL != "http://custom:8080" {
		t.Errorf("baseURL = %s, want http://custom:8080", provider.baseURL)
	}
	if provider.ModelName() != "bge-large" {
		t.Errorf("model = %s, want bge-large", provider.ModelName())
	}
	if provider.Dimensions() != 768 {
		t.Errorf("dimensions = %d, want 768", provider.Dimensions())
	}
	if provider.client.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", provider.client.Timeout)
	}
}

func TestOllamaProvider_Embed(t *testing.T) {
	vector := make([]float32, DefaultOllamaDimensions)
	vector[0] = 0.5

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiPathEmbeddings {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != DefaultOllamaModel {
			t.Errorf("unexpected model in request: %s", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vector})
	}))
	defer server.Close()

	provider := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	emb, err := provider.Embed(context.Background(), "an abstract")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if emb.Dimensions() != DefaultOllamaDimensions {
		t.Errorf("dimensions = %d, want %d", emb.Dimensions(), DefaultOllamaDimensions)
	}
	if emb.Vector[0] != 0.5 {
		t.Errorf("unexpected vector: %v", emb.Vector[:1])
	}
}

func TestOllamaProvider_EmbedDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer server.Close()

	provider := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	if _, err := provider.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestOllamaProvider_EmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	if _, err := provider.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for server failure")
	}
}

func TestOllamaProvider_HasModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiPathTags {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ollamaTagsResponse{Models: []ollamaModel{{Name: "bge-m3"}}})
	}))
	defer server.Close()

	provider := NewOllamaProvider(WithOllamaBaseURL(server.URL))

	has, err := provider.HasModel(context.Background())
	if err != nil {
		t.Fatalf("HasModel failed: %v", err)
	}
	if !has {
		t.Error("expected bge-m3 to be reported available")
	}

	other := NewOllamaProvider(WithOllamaBaseURL(server.URL), WithOllamaModel("missing-model"))
	has, err = other.HasModel(context.Background())
	if err != nil {
		t.Fatalf("HasModel failed: %v", err)
	}
	if has {
		t.Error("expected missing-model to be reported unavailable")
	}
}
