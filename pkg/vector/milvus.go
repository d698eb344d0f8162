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
	"strings"
	"time"
)

// MilvusConfig configures the Milvus vector provider, which talks to
// Milvus's HTTP API.
type MilvusConfig struct {
	// Host is the Milvus server hostname.
	Host string `yaml:"host"`

	// Port is the Milvus HTTP port (default: 19530).
	Port int `yaml:"port"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables https.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// MilvusProvider implements Provider against Milvus's HTTP API.
type MilvusProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMilvusProvider creates a new Milvus provider.
func NewMilvusProvider(cfg MilvusConfig) (*MilvusProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 19530
	}

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}

	return &MilvusProvider{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *MilvusProvider) Name() string {
	return "milvus"
}

// post sends one JSON request to the Milvus API and decodes the reply
// into out (which may be nil when only the status matters).
func (p *MilvusProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("milvus request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("milvus %s returned status %d: %s", path, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode milvus response: %w", err)
	}
	return nil
}

// Upsert adds or updates a document with its vector.
func (p *MilvusProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	fields := map[string]any{"id": id, "vector": vector}
	for k, v := range metadata {
		fields[k] = v
	}
	return p.post(ctx, "/api/v1/entities", map[string]any{
		"collection_name": collection,
		"fields_data":     []map[string]any{fields},
	}, nil)
}

// Search returns the topK most similar documents.
func (p *MilvusProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter combines vector similarity with a metadata equality
// filter compiled to a Milvus boolean expression.
func (p *MilvusProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	payload := map[string]any{
		"collection_name": collection,
		"vector":          vector,
		"top_k":           topK,
		"metric_type":     "COSINE",
	}
	if len(filter) > 0 {
		payload["expr"] = milvusFilterExpr(filter)
	}

	var raw struct {
		Results []struct {
			ID       string         `json:"id"`
			Score    float32        `json:"score"`
			Fields   map[string]any `json:"fields"`
			Distance float32        `json:"distance"`
		} `json:"results"`
	}
	if err := p.post(ctx, "/api/v1/search", payload, &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Results))
	for _, r := range raw.Results {
		score := r.Score
		if score == 0 {
			score = r.Distance
		}
		content, _ := r.Fields["content"].(string)
		out = append(out, Result{
			ID:       r.ID,
			Score:    score,
			Content:  content,
			Metadata: r.Fields,
		})
	}
	return out, nil
}

// Delete removes a document by ID.
func (p *MilvusProvider) Delete(ctx context.Context, collection string, id string) error {
	return p.post(ctx, "/api/v1/entities/delete", map[string]any{
		"collection_name": collection,
		"expr":            fmt.Sprintf("id == %q", id),
	}, nil)
}

// DeleteByFilter removes every document matching the metadata filter.
func (p *MilvusProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete by filter requires a non-empty filter")
	}
	return p.post(ctx, "/api/v1/entities/delete", map[string]any{
		"collection_name": collection,
		"expr":            milvusFilterExpr(filter),
	}, nil)
}

// CreateCollection declares a collection with an id field, a metadata
// JSON field and a float vector of the given dimension.
func (p *MilvusProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return p.post(ctx, "/api/v1/collection", map[string]any{
		"collection_name": collection,
		"dimension":       vectorDimension,
		"metric_type":     "COSINE",
		"primary_field":   "id",
		"vector_field":    "vector",
	}, nil)
}

// DeleteCollection drops a collection.
func (p *MilvusProvider) DeleteCollection(ctx context.Context, collection string) error {
	return p.post(ctx, "/api/v1/collection/drop", map[string]any{
		"collection_name": collection,
	}, nil)
}

// Close releases resources. The HTTP client holds none beyond idle
// connections, which are dropped here.
func (p *MilvusProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// milvusFilterExpr compiles a metadata equality map into a Milvus
// boolean expression, ANDing all terms in sorted-key order for a stable
// expression.
func milvusFilterExpr(filter map[string]any) string {
	terms := make([]string, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			terms = append(terms, fmt.Sprintf("%s == %q", k, val))
		default:
			terms = append(terms, fmt.Sprintf("%s == %v", k, val))
		}
	}
	// Map order is random; sort for deterministic expressions.
	sort.Strings(terms)
	return strings.Join(terms, " && ")
}

var _ Provider = (*MilvusProvider)(nil)
