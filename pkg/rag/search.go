// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomkit/loom/pkg/embedder"
	"github.com/loomkit/loom/pkg/vector"
)

// Query length bounds enforced before any embedding work happens.
const (
	MinQueryLength = 2
	MaxQueryLength = 10000
)

// SearchEngine indexes documents and answers semantic queries over
// them: chunking on ingest, vector similarity on search, and optional
// query-side enhancements (HyDE, multi-query expansion, reranking).
type SearchEngine struct {
	provider   vector.Provider
	embedder   embedder.Embedder
	chunker    Chunker
	config     SearchEngineConfig
	collection string

	hyde       *HyDE
	reranker   *Reranker
	multiQuery *MultiQueryExpander

	mu sync.RWMutex
}

// SearchEngineConfig configures a SearchEngine.
type SearchEngineConfig struct {
	// Provider stores and searches vectors. Required.
	Provider vector.Provider

	// Embedder turns text into vectors. Required.
	Embedder embedder.Embedder

	// Chunker splits documents; defaults to the simple chunker.
	Chunker Chunker

	// Collection names the vector collection (default "rag_documents").
	Collection string

	// DefaultTopK is used when a request doesn't set TopK (default 10).
	DefaultTopK int

	// DefaultThreshold drops results scoring below it.
	DefaultThreshold float32

	// HyDE enables hypothetical-document embedding when set.
	HyDE *HyDE

	// Reranker enables model-based result reranking when set.
	Reranker *Reranker

	// MultiQuery enables query expansion when set.
	MultiQuery *MultiQueryExpander
}

// NewSearchEngine creates a search engine.
func NewSearchEngine(cfg SearchEngineConfig) (*SearchEngine, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	chunker := cfg.Chunker
	if chunker == nil {
		chunker = NewSimpleChunker(DefaultChunkerConfig())
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "rag_documents"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}

	slog.Info("Created RAG search engine",
		"provider", cfg.Provider.Name(),
		"collection", collection,
		"chunker", chunker.Strategy(),
		"hyde_enabled", cfg.HyDE != nil,
		"reranker_enabled", cfg.Reranker != nil,
		"multiquery_enabled", cfg.MultiQuery != nil)

	return &SearchEngine{
		provider:   cfg.Provider,
		embedder:   cfg.Embedder,
		chunker:    chunker,
		config:     cfg,
		collection: collection,
		hyde:       cfg.HyDE,
		reranker:   cfg.Reranker,
		multiQuery: cfg.MultiQuery,
	}, nil
}

// IngestDocument chunks, embeds and indexes one document. A stable
// document ID makes re-ingestion an update. Chunks that fail to embed
// or upsert are logged and skipped so one bad chunk doesn't lose the
// rest of the document.
func (e *SearchEngine) IngestDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.Content == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	chunkCtx := &ChunkContext{FilePath: doc.SourcePath}
	if lang, ok := doc.Metadata["language"].(string); ok {
		chunkCtx.Language = lang
	}

	chunks, err := e.chunker.Chunk(doc.Content, chunkCtx)
	if err != nil {
		return fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	indexed := 0
	for _, chunk := range chunks {
		chunkID := fmt.Sprintf("%s:chunk:%d", doc.ID, chunk.Index)

		embedding, err := e.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			slog.Warn("Failed to embed chunk",
				"document_id", doc.ID, "chunk_index", chunk.Index, "error", err)
			continue
		}

		metadata := e.chunkMetadata(doc, chunk)
		if err := e.provider.Upsert(ctx, e.collection, chunkID, embedding, metadata); err != nil {
			slog.Warn("Failed to upsert chunk",
				"document_id", doc.ID, "chunk_index", chunk.Index, "error", err)
			continue
		}
		indexed++
	}

	slog.Debug("Indexed document",
		"document_id", doc.ID, "chunks_total", len(chunks), "chunks_indexed", indexed)
	return nil
}

// chunkMetadata is what each stored chunk carries alongside its vector,
// enough to reconstruct a useful SearchResult without re-reading the
// source.
func (e *SearchEngine) chunkMetadata(doc Document, chunk Chunk) map[string]any {
	metadata := make(map[string]any, len(doc.Metadata)+8)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata["document_id"] = doc.ID
	metadata["chunk_index"] = chunk.Index
	metadata["chunk_total"] = chunk.Total
	metadata["start_line"] = chunk.StartLine
	metadata["end_line"] = chunk.EndLine
	metadata["content"] = chunk.Content
	if doc.Title != "" {
		metadata["title"] = doc.Title
	}
	if doc.SourcePath != "" {
		metadata["source_path"] = doc.SourcePath
	}
	if chunk.Context != nil {
		if chunk.Context.FunctionName != "" {
			metadata["function_name"] = chunk.Context.FunctionName
		}
		if chunk.Context.TypeName != "" {
			metadata["type_name"] = chunk.Context.TypeName
		}
	}
	return metadata
}

// IngestDocuments indexes documents concurrently, one worker per CPU.
func (e *SearchEngine) IngestDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())

	errs := make([]error, len(docs))
	for i, doc := range docs {
		group.Go(func() error {
			if err := e.IngestDocument(ctx, doc); err != nil {
				errs[i] = fmt.Errorf("failed to index %s: %w", doc.ID, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	return errors.Join(errs...)
}

// Search finds documents matching the query, applying the enhancements
// the request opted into.
func (e *SearchEngine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	req.SetDefaults()
	if req.TopK <= 0 {
		req.TopK = e.config.DefaultTopK
	}
	if req.Threshold <= 0 {
		req.Threshold = e.config.DefaultThreshold
	}

	query := normalizeQuery(req.Query)
	if err := validateQuery(query); err != nil {
		return &SearchResponse{Results: []SearchResult{}}, err
	}
	req.Query = query

	collection := req.Collection
	if collection == "" {
		collection = e.collection
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	queryExpansions := []string{req.Query}
	if e.multiQuery != nil && req.Options != nil && req.Options.EnableMultiQuery {
		queries, err := e.multiQuery.ExpandQuery(ctx, req.Query)
		if err != nil {
			slog.Warn("Multi-query expansion failed", "error", err)
		} else {
			queryExpansions = queries
		}
	}

	var allResultSets [][]SearchResult
	for _, query := range queryExpansions {
		results, err := e.searchSingle(ctx, query, collection, req)
		if err != nil {
			slog.Warn("Search failed for query variant", "query", query, "error", err)
			continue
		}
		allResultSets = append(allResultSets, results)
	}

	searchResults := CombineResults(allResultSets)

	if e.reranker != nil && req.Options != nil && req.Options.EnableRerank && len(searchResults) > 0 {
		reranked, err := e.reranker.Rerank(ctx, req.Query, searchResults)
		if err != nil {
			slog.Warn("Reranking failed", "error", err)
		} else {
			searchResults = reranked.Results
		}
	}

	if len(searchResults) > req.TopK {
		searchResults = searchResults[:req.TopK]
	}

	return &SearchResponse{
		Results:         searchResults,
		TotalMatches:    len(searchResults),
		SearchTimeMs:    time.Since(startTime).Milliseconds(),
		QueryExpansions: queryExpansions,
	}, nil
}

// searchSingle runs one query variant against the vector store.
func (e *SearchEngine) searchSingle(ctx context.Context, query, collection string, req SearchRequest) ([]SearchResult, error) {
	// Embed either the query itself or, with HyDE, a hypothetical answer
	// whose embedding tends to land closer to relevant documents.
	textToEmbed := query
	if e.hyde != nil && req.Options != nil && req.Options.EnableHyDE {
		hypothetical, err := e.hyde.GenerateHypotheticalDocument(ctx, query)
		if err != nil {
			slog.Warn("HyDE generation failed, using original query", "error", err)
		} else {
			textToEmbed = hypothetical
		}
	}

	queryEmbedding, err := e.embedder.Embed(ctx, textToEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Overfetch when reranking so the reranker has candidates to demote.
	fetchK := req.TopK
	if e.reranker != nil && req.Options != nil && req.Options.EnableRerank {
		fetchK = min(req.TopK*3, 100)
	}

	var results []vector.Result
	if len(req.Filter) > 0 {
		results, err = e.provider.SearchWithFilter(ctx, collection, queryEmbedding, fetchK, req.Filter)
	} else {
		results, err = e.provider.Search(ctx, collection, queryEmbedding, fetchK)
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if req.Threshold > 0 && r.Score < req.Threshold {
			continue
		}

		content := r.Content
		if content == "" {
			if c, ok := r.Metadata["content"].(string); ok {
				content = c
			}
		}

		docID, _ := r.Metadata["document_id"].(string)

		chunkIndex := 0
		switch ci := r.Metadata["chunk_index"].(type) {
		case int:
			chunkIndex = ci
		case float64:
			chunkIndex = int(ci)
		}

		searchResults = append(searchResults, SearchResult{
			ID:         r.ID,
			Content:    content,
			Score:      r.Score,
			DocumentID: docID,
			ChunkIndex: chunkIndex,
			Metadata:   r.Metadata,
		})
	}

	return searchResults, nil
}

// DeleteDocument removes a document and all of its chunks.
func (e *SearchEngine) DeleteDocument(ctx context.Context, documentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	filter := map[string]any{"document_id": documentID}
	if err := e.provider.DeleteByFilter(ctx, e.collection, filter); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	slog.Debug("Deleted document from index", "document_id", documentID)
	return nil
}

// DeleteByFilter removes every chunk matching the metadata filter.
func (e *SearchEngine) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.provider.DeleteByFilter(ctx, e.collection, filter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Clear drops the whole collection.
func (e *SearchEngine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.provider.DeleteCollection(ctx, e.collection); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}

	slog.Info("Cleared RAG index", "collection", e.collection)
	return nil
}

// Collection returns the collection name.
func (e *SearchEngine) Collection() string {
	return e.collection
}

// Close releases resources. The vector provider is owned by whoever
// built it.
func (e *SearchEngine) Close() error {
	return nil
}

// Status reports the engine's configuration for diagnostics endpoints.
func (e *SearchEngine) Status() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]any{
		"collection":      e.collection,
		"provider":        e.provider.Name(),
		"has_chunker":     e.chunker != nil,
		"has_hyde":        e.hyde != nil,
		"has_reranker":    e.reranker != nil,
		"has_multi_query": e.multiQuery != nil,
		"config": map[string]any{
			"default_top_k":     e.config.DefaultTopK,
			"default_threshold": e.config.DefaultThreshold,
		},
	}
}

func validateQuery(query string) error {
	if query == "" {
		return nil
	}
	if len(query) < MinQueryLength {
		return fmt.Errorf("query too short (min %d characters)", MinQueryLength)
	}
	if len(query) > MaxQueryLength {
		return fmt.Errorf("query too long (max %d characters)", MaxQueryLength)
	}
	return nil
}

// normalizeQuery trims and collapses whitespace.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(query)), " ")
}
