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

// Package vector provides a uniform interface over vector databases:
// embedded chromem-go, plus networked Qdrant, Chroma, Pinecone, Milvus
// and Weaviate backends, selected by configuration.
package vector

import (
	"context"
	"errors"
)

// Provider is the contract every vector backend satisfies. Collections
// are created lazily by Upsert where the backend allows it; CreateCollection
// exists for backends that need dimensions declared up front.
type Provider interface {
	// Name returns the backend's identifier ("chromem", "qdrant", ...).
	Name() string

	// Upsert inserts or replaces a document's vector and metadata.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK most similar documents.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity search with metadata equality
	// filtering. A nil filter behaves like Search.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes one document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every document matching the metadata filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection declares a collection with a fixed vector size.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection drops a collection and its contents.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases backend resources.
	Close() error
}

// Result is one similarity search hit.
type Result struct {
	// ID is the document identifier passed to Upsert.
	ID string

	// Score is the similarity score; higher is closer.
	Score float32

	// Content is the document text, when the backend stores it.
	Content string

	// Vector is the stored embedding, for backends that return it.
	Vector []float32

	// Metadata is the document's stored metadata.
	Metadata map[string]any
}

// ErrNoProvider is returned by NilProvider for every operation.
var ErrNoProvider = errors.New("no vector provider configured")

// NilProvider stands in when no vector store is configured. Reads return
// empty results so optional features degrade gracefully; writes fail.
type NilProvider struct{}

func (NilProvider) Name() string { return "none" }

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return ErrNoProvider
}

func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(context.Context, string, string) error {
	return ErrNoProvider
}

func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error {
	return ErrNoProvider
}

func (NilProvider) CreateCollection(context.Context, string, int) error {
	return ErrNoProvider
}

func (NilProvider) DeleteCollection(context.Context, string) error {
	return ErrNoProvider
}

func (NilProvider) Close() error { return nil }

var _ Provider = NilProvider{}
