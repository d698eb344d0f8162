// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// ChromaConfig configures the Chroma vector provider, which talks to
// Chroma's HTTP API.
type ChromaConfig struct {
	// Host is the Chroma server hostname. Required.
	Host string `yaml:"host"`

	// Port is the HTTP port (default: 8000).
	Port int `yaml:"port,omitempty"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables https.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// ChromaProvider implements Provider against Chroma's HTTP API.
type ChromaProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewChromaProvider creates a Chroma provider.
func NewChromaProvider(cfg ChromaConfig) (*ChromaProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for Chroma")
	}

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 8000
	}

	return &ChromaProvider{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *ChromaProvider) Name() string {
	return "chroma"
}

// do sends one request to the Chroma API. payload nil sends no body;
// out nil ignores the response body. okStatuses lists the accepted
// status codes (200 is always accepted).
func (p *ChromaProvider) do(ctx context.Context, method, path string, payload, out any, okStatuses ...int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	for _, status := range okStatuses {
		ok = ok || resp.StatusCode == status
	}
	if !ok {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma %s returned status %d: %s", path, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode chroma response: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a document. The "content" metadata entry,
// when present, is also stored as the Chroma document text so searches
// return it directly.
func (p *ChromaProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	document := ""
	if content, ok := metadata["content"].(string); ok {
		document = content
	}

	return p.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/add", collection), map[string]any{
		"ids":        []string{id},
		"embeddings": [][]float32{vector},
		"documents":  []string{document},
		"metadatas":  []map[string]any{metadata},
	}, nil, http.StatusCreated)
}

// Search returns the topK most similar documents.
func (p *ChromaProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter combines vector similarity with a metadata "where"
// clause.
func (p *ChromaProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	payload := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topK,
	}
	if len(filter) > 0 {
		payload["where"] = filter
	}

	var raw chromaQueryResponse
	if err := p.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/query", collection), payload, &raw); err != nil {
		return nil, err
	}
	return raw.results(), nil
}

// Delete removes one document by ID.
func (p *ChromaProvider) Delete(ctx context.Context, collection string, id string) error {
	return p.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/delete", collection), map[string]any{
		"ids": []string{id},
	}, nil, http.StatusNoContent)
}

// DeleteByFilter removes every document matching the "where" clause.
func (p *ChromaProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return p.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/delete", collection), map[string]any{
		"where": filter,
	}, nil)
}

// CreateCollection creates a collection; Chroma infers dimensions from
// the first embeddings, so vectorDimension is not sent.
func (p *ChromaProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	// Probe first: get_or_create makes the create race-safe, but a hit
	// here skips the write entirely.
	if err := p.do(ctx, http.MethodGet, "/api/v1/collections/"+collection, nil, nil); err == nil {
		return nil
	}

	return p.do(ctx, http.MethodPost, "/api/v1/collections", map[string]any{
		"name":          collection,
		"metadata":      map[string]any{},
		"get_or_create": true,
	}, nil, http.StatusCreated)
}

// DeleteCollection drops a collection.
func (p *ChromaProvider) DeleteCollection(ctx context.Context, collection string) error {
	return p.do(ctx, http.MethodDelete, "/api/v1/collections/"+collection, nil, nil, http.StatusNoContent)
}

// Close releases resources; only idle connections are held.
func (p *ChromaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// chromaQueryResponse is the nested-array shape Chroma returns: one
// inner array per query embedding, of which we always send exactly one.
type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// results flattens the first (only) query's hits into Results, sorted
// best-first. Chroma reports distances; scores are 1 - distance.
func (r *chromaQueryResponse) results() []Result {
	if len(r.IDs) == 0 {
		return []Result{}
	}

	ids := r.IDs[0]
	results := make([]Result, 0, len(ids))
	for i, id := range ids {
		var score float32
		if len(r.Distances) > 0 && i < len(r.Distances[0]) {
			score = float32(1.0 - r.Distances[0][i])
		}

		content := ""
		if len(r.Documents) > 0 && i < len(r.Documents[0]) && r.Documents[0][i] != nil {
			content = *r.Documents[0][i]
		}

		metadata := map[string]any{}
		if len(r.Metadatas) > 0 && i < len(r.Metadatas[0]) && r.Metadatas[0][i] != nil {
			metadata = r.Metadatas[0][i]
		}

		results = append(results, Result{
			ID:       id,
			Content:  content,
			Score:    score,
			Metadata: metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

var _ Provider = (*ChromaProvider)(nil)
