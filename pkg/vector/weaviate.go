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

// WeaviateConfig configures the Weaviate vector provider, which uses
// the REST API for writes and GraphQL for search.
type WeaviateConfig struct {
	// Host is the Weaviate server hostname. Required.
	Host string `yaml:"host"`

	// Port is the HTTP port (default: 8080).
	Port int `yaml:"port,omitempty"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables https.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// WeaviateProvider implements Provider against Weaviate. Collections
// map to Weaviate classes with vectorizer "none": embeddings always
// come from this side.
type WeaviateProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWeaviateProvider creates a Weaviate provider.
func NewWeaviateProvider(cfg WeaviateConfig) (*WeaviateProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for Weaviate")
	}

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	return &WeaviateProvider{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *WeaviateProvider) Name() string {
	return "weaviate"
}

// do sends one request to the Weaviate API; payload nil sends no body,
// out nil ignores the response body. 200 is always accepted, plus any
// extra okStatuses.
func (p *WeaviateProvider) do(ctx context.Context, method, path string, payload, out any, okStatuses ...int) error {
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
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("weaviate request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	for _, status := range okStatuses {
		ok = ok || resp.StatusCode == status
	}
	if !ok {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("weaviate %s returned status %d: %s", path, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode weaviate response: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a document; metadata entries become class
// properties.
func (p *WeaviateProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	properties := make(map[string]any, len(metadata))
	for k, v := range metadata {
		properties[k] = v
	}

	return p.do(ctx, http.MethodPost, "/v1/objects", map[string]any{
		"id":         id,
		"class":      collection,
		"properties": properties,
		"vector":     vector,
	}, nil, http.StatusCreated)
}

// Search returns the topK most similar documents.
func (p *WeaviateProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter runs a GraphQL nearVector query, optionally with an
// equality where clause.
func (p *WeaviateProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	query := map[string]any{
		"query": fmt.Sprintf(`
		{
			Get {
				%s {
					_additional {
						id
						certainty
						distance
					}
					content
				}
			}
		}`, collection),
		"nearVector": map[string]any{"vector": vector},
		"limit":      topK,
	}
	if where := weaviateWhereClause(filter); where != nil {
		query["where"] = where
	}

	var result map[string]any
	if err := p.do(ctx, http.MethodPost, "/v1/graphql", query, &result); err != nil {
		return nil, err
	}
	return convertWeaviateResults(result, collection), nil
}

// Delete removes one document by ID.
func (p *WeaviateProvider) Delete(ctx context.Context, collection string, id string) error {
	return p.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/objects/%s/%s", collection, id), nil, nil, http.StatusNoContent)
}

// DeleteByFilter batch-deletes every object matching the filter.
func (p *WeaviateProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	where := weaviateWhereClause(filter)
	if where == nil {
		return fmt.Errorf("filter is required for delete by filter")
	}

	return p.do(ctx, http.MethodDelete, "/v1/batch/objects", map[string]any{
		"match": map[string]any{
			"class": collection,
			"where": where,
		},
	}, nil)
}

// CreateCollection declares the class with a text content property.
// Weaviate stores the vectors as given, so dimension is not declared.
func (p *WeaviateProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	if err := p.do(ctx, http.MethodGet, "/v1/schema/"+collection, nil, nil); err == nil {
		return nil
	}

	return p.do(ctx, http.MethodPost, "/v1/schema", map[string]any{
		"class":      collection,
		"vectorizer": "none",
		"properties": []map[string]any{
			{"name": "content", "dataType": []string{"text"}},
		},
	}, nil, http.StatusCreated)
}

// DeleteCollection drops the class and its objects.
func (p *WeaviateProvider) DeleteCollection(ctx context.Context, collection string) error {
	return p.do(ctx, http.MethodDelete, "/v1/schema/"+collection, nil, nil, http.StatusNoContent)
}

// Close releases resources; only idle connections are held.
func (p *WeaviateProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// weaviateWhereClause compiles a metadata equality map into a where
// clause, ANDing multiple terms. Values compare as strings.
func weaviateWhereClause(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}

	conditions := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, map[string]any{
			"path":        []string{key},
			"operator":    "Equal",
			"valueString": fmt.Sprintf("%v", value),
		})
	}

	if len(conditions) == 1 {
		return conditions[0]
	}
	return map[string]any{
		"operator": "And",
		"operands": conditions,
	}
}

// convertWeaviateResults flattens the GraphQL response into Results,
// sorted best-first. certainty is preferred; distance converts as
// 1 - distance.
func convertWeaviateResults(result map[string]any, collection string) []Result {
	data, _ := result["data"].(map[string]any)
	get, _ := data["Get"].(map[string]any)
	classData, ok := get[collection].([]any)
	if !ok {
		return []Result{}
	}

	results := make([]Result, 0, len(classData))
	for _, obj := range classData {
		objMap, ok := obj.(map[string]any)
		if !ok {
			continue
		}

		additional, _ := objMap["_additional"].(map[string]any)
		id, _ := additional["id"].(string)

		var score float32
		if certainty, ok := additional["certainty"].(float64); ok {
			score = float32(certainty)
		} else if distance, ok := additional["distance"].(float64); ok {
			score = float32(1.0 - distance)
		} else if scoreVal, ok := additional["score"].(float64); ok {
			score = float32(scoreVal)
		}

		content, _ := objMap["content"].(string)

		metadata := make(map[string]any, len(objMap))
		for k, v := range objMap {
			if k != "_additional" {
				metadata[k] = v
			}
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

var _ Provider = (*WeaviateProvider)(nil)
