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
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone vector provider.
type PineconeConfig struct {
	// APIKey authenticates against Pinecone. Required.
	APIKey string `yaml:"api_key"`

	// Host overrides the default API host.
	Host string `yaml:"host,omitempty"`

	// IndexName is the index used when a call passes no collection
	// (default: "loom-index").
	IndexName string `yaml:"index_name"`

	// Environment names the Pinecone environment, e.g. "us-west1-gcp".
	Environment string `yaml:"environment,omitempty"`
}

// PineconeProvider implements Provider against the managed Pinecone
// service. Collections map to Pinecone indexes, which are provisioned
// out of band: the service controls sizing and billing, so this
// provider never creates or deletes indexes itself.
type PineconeProvider struct {
	client    *pinecone.Client
	config    PineconeConfig
	indexName string
}

// NewPineconeProvider creates a Pinecone provider.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	clientParams := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		clientParams.Host = cfg.Host
	}

	client, err := pinecone.NewClient(clientParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "loom-index"
	}

	return &PineconeProvider{
		client:    client,
		config:    cfg,
		indexName: indexName,
	}, nil
}

// Name returns the provider name.
func (p *PineconeProvider) Name() string {
	return "pinecone"
}

// index resolves the index a call targets: the collection name when
// given, the configured default otherwise.
func (p *PineconeProvider) index(collection string) string {
	if collection != "" {
		return collection
	}
	return p.indexName
}

// connect opens a connection to the named index. Callers close it.
func (p *PineconeProvider) connect(ctx context.Context, indexName string) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", indexName, err)
	}

	indexConn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}
	return indexConn, nil
}

// toStruct converts a plain map into the protobuf struct Pinecone's API
// takes for metadata and filters. A nil or empty map yields nil.
func toStruct(m map[string]any) (*structpb.Struct, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return structpb.NewStruct(m)
}

// Upsert inserts or replaces a document's vector and metadata.
func (p *PineconeProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	indexConn, err := p.connect(ctx, p.index(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	pineconeMetadata, err := toStruct(metadata)
	if err != nil {
		return fmt.Errorf("failed to convert metadata: %w", err)
	}

	_, err = indexConn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       id,
		Values:   vector,
		Metadata: pineconeMetadata,
	}})
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

// Search returns the topK most similar documents.
func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter combines vector similarity with metadata filtering.
func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	indexConn, err := p.connect(ctx, p.index(collection))
	if err != nil {
		return nil, err
	}
	defer indexConn.Close()

	metadataFilter, err := toStruct(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to convert filter: %w", err)
	}

	queryResponse, err := indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}

	results := make([]Result, 0, len(queryResponse.Matches))
	for _, match := range queryResponse.Matches {
		if match.Vector == nil {
			continue
		}
		results = append(results, convertPineconeMatch(match))
	}
	return results, nil
}

// Delete removes one document by ID.
func (p *PineconeProvider) Delete(ctx context.Context, collection string, id string) error {
	indexConn, err := p.connect(ctx, p.index(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	if err := indexConn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

// DeleteByFilter removes every document matching the metadata filter.
func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	indexConn, err := p.connect(ctx, p.index(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	metadataFilter, err := toStruct(filter)
	if err != nil {
		return fmt.Errorf("failed to convert filter: %w", err)
	}

	if err := indexConn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// CreateCollection verifies the index exists; indexes are provisioned
// through Pinecone itself, not here.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	indexName := p.index(collection)

	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == indexName {
			return nil
		}
	}
	return fmt.Errorf("index %s does not exist. Please create it via Pinecone console or API", indexName)
}

// DeleteCollection refuses; index deletion stays with Pinecone's own
// tooling.
func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	return fmt.Errorf("index deletion not implemented. Please delete index %s via Pinecone console or API", p.index(collection))
}

// Close releases resources. The Pinecone client holds none that need
// explicit closing.
func (p *PineconeProvider) Close() error {
	return nil
}

// convertPineconeMatch flattens one scored vector into a Result.
func convertPineconeMatch(match *pinecone.ScoredVector) Result {
	vector := match.Vector

	metadata := make(map[string]any)
	if vector.Metadata != nil {
		for k, v := range vector.Metadata.AsMap() {
			metadata[k] = v
		}
	}
	content, _ := metadata["content"].(string)

	return Result{
		ID:       vector.Id,
		Content:  content,
		Vector:   vector.Values,
		Metadata: metadata,
		Score:    match.Score,
	}
}

var _ Provider = (*PineconeProvider)(nil)
