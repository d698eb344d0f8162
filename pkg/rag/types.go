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

// Chunk is the unit of retrieval: a piece of a document with its
// position in the source and enough semantic context to make the hit
// useful on its own.
type Chunk struct {
	// Content is the chunk's text.
	Content string `json:"content"`

	// Index is the chunk's position within the document (0-based).
	Index int `json:"index"`

	// Total is the document's chunk count.
	Total int `json:"total"`

	// StartLine and EndLine locate the chunk in the source (1-based).
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// StartByte and EndByte are byte offsets, when the chunker tracks them.
	StartByte int `json:"start_byte,omitempty"`
	EndByte   int `json:"end_byte,omitempty"`

	// Context carries the surrounding function/type/section, mainly for
	// code files.
	Context *ChunkContext `json:"context,omitempty"`

	// Metadata carries additional chunk-specific information.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChunkContext names where a chunk sits semantically within its source.
type ChunkContext struct {
	// FunctionName is the containing function or method (for code).
	FunctionName string `json:"function_name,omitempty"`

	// TypeName is the containing type (for code).
	TypeName string `json:"type_name,omitempty"`

	// FilePath is the source file path.
	FilePath string `json:"file_path,omitempty"`

	// Language is the detected programming language (for code).
	Language string `json:"language,omitempty"`

	// Section is the document section (for prose).
	Section string `json:"section,omitempty"`

	// ParentID links to a parent chunk for hierarchical retrieval.
	ParentID string `json:"parent_id,omitempty"`
}

// Document is the unit of ingestion. It flows through extraction (for
// binary sources), chunking, embedding and indexing; a stable ID lets
// re-ingestion update in place.
type Document struct {
	// ID uniquely identifies the document. Required.
	ID string `json:"id"`

	// Content is the text to index.
	Content string `json:"content"`

	// Title is the document title, when known.
	Title string `json:"title,omitempty"`

	// SourcePath is the originating file path for file-based documents.
	SourcePath string `json:"source_path,omitempty"`

	// MimeType is the content type.
	MimeType string `json:"mime_type,omitempty"`

	// Size is the content size in bytes.
	Size int64 `json:"size"`

	// Metadata carries additional document information.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is one hit, ordered by Score descending. Without
// reranking the score is vector similarity; with reranking it is the
// reranker's position score.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string `json:"id"`

	// Content is the matched text.
	Content string `json:"content"`

	// Score is the relevance; higher is better.
	Score float32 `json:"score"`

	// DocumentID is the parent document.
	DocumentID string `json:"document_id,omitempty"`

	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int `json:"chunk_index,omitempty"`

	// Metadata carries additional result information.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Highlights are matched text spans, when produced.
	Highlights []string `json:"highlights,omitempty"`
}

// SearchRequest is one search query.
type SearchRequest struct {
	// Query is the search text.
	Query string `json:"query"`

	// Collection overrides the engine's default collection.
	Collection string `json:"collection,omitempty"`

	// TopK caps the number of results.
	TopK int `json:"top_k,omitempty"`

	// Threshold drops results scoring below it.
	Threshold float32 `json:"threshold,omitempty"`

	// Filter applies metadata equality filtering.
	Filter map[string]any `json:"filter,omitempty"`

	// Options selects optional search behaviors.
	Options *SearchOptions `json:"options,omitempty"`
}

// SearchOptions selects per-request search behaviors.
type SearchOptions struct {
	// Mode is "vector", "keyword" or "hybrid".
	Mode string `json:"mode,omitempty"`

	// EnableHyDE embeds a hypothetical answer instead of the raw query.
	EnableHyDE bool `json:"enable_hyde,omitempty"`

	// EnableRerank reorders results with the reranking model.
	EnableRerank bool `json:"enable_rerank,omitempty"`

	// EnableMultiQuery searches several generated query variants.
	EnableMultiQuery bool `json:"enable_multi_query,omitempty"`

	// NumQueries is the number of variants for multi-query expansion.
	NumQueries int `json:"num_queries,omitempty"`
}

// SearchResponse is a search's results plus how they were produced.
type SearchResponse struct {
	// Results are the hits, best first.
	Results []SearchResult `json:"results"`

	// TotalMatches counts matches before the TopK cut.
	TotalMatches int `json:"total_matches,omitempty"`

	// SearchTimeMs is the wall-clock search duration.
	SearchTimeMs int64 `json:"search_time_ms,omitempty"`

	// QueryExpansions are the variants searched when multi-query ran.
	QueryExpansions []string `json:"query_expansions,omitempty"`
}

// SetDefaults applies default values.
func (r *SearchRequest) SetDefaults() {
	if r.TopK <= 0 {
		r.TopK = 10
	}
	if r.Options == nil {
		r.Options = &SearchOptions{}
	}
	if r.Options.Mode == "" {
		r.Options.Mode = "vector"
	}
}
