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

package config

import (
	"fmt"
	"time"
)

// vectorStoreDefaultPorts maps external store types to their standard
// ports, applied when the config leaves port unset.
var vectorStoreDefaultPorts = map[string]int{
	"qdrant":   6333,
	"weaviate": 8080,
	"milvus":   19530,
}

// VectorStoreConfig configures a vector database provider.
//
// Example YAML:
//
//	vector_stores:
//	  local:
//	    type: chromem
//	    persist_path: .loom/vectors
//	  production:
//	    type: qdrant
//	    host: qdrant.example.com
//	    port: 6333
//	    api_key: ${QDRANT_API_KEY}
type VectorStoreConfig struct {
	// Type selects the backend: "chromem", "qdrant", "pinecone",
	// "weaviate", "milvus", "chroma".
	Type string `yaml:"type"`

	// Host for networked stores.
	Host string `yaml:"host,omitempty"`

	// Port for networked stores; defaults per backend.
	Port int `yaml:"port,omitempty"`

	// APIKey for authenticated access.
	APIKey string `yaml:"api_key,omitempty"`

	// EnableTLS enables TLS connections.
	EnableTLS *bool `yaml:"enable_tls,omitempty"`

	// PersistPath for chromem file persistence.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty"`

	// Collection is the default collection name.
	Collection string `yaml:"collection,omitempty"`

	// IndexName for Pinecone.
	IndexName string `yaml:"index_name,omitempty"`

	// Environment for Pinecone.
	Environment string `yaml:"environment,omitempty"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Port == 0 {
		c.Port = vectorStoreDefaultPorts[c.Type]
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "chromem", "pinecone", "chroma":
	case "qdrant", "weaviate", "milvus":
		if c.Host == "" {
			return fmt.Errorf("host is required for %s vector store", c.Type)
		}
	default:
		return fmt.Errorf("invalid vector store type %q (valid: chromem, qdrant, pinecone, weaviate, milvus, chroma)", c.Type)
	}

	if c.Type == "pinecone" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for pinecone vector store")
	}
	return nil
}

// IsEmbedded reports whether the store runs in-process with no network
// dependency.
func (c *VectorStoreConfig) IsEmbedded() bool {
	return c.Type == "chromem"
}

// DocumentStoreConfig configures one RAG document store: where the
// documents come from, how they are chunked, and which vector store and
// embedder index them.
//
// Example YAML:
//
//	document_stores:
//	  codebase:
//	    source:
//	      type: directory
//	      path: ./src
//	      include: ["*.go", "*.ts"]
//	    chunking:
//	      strategy: semantic
//	      size: 1000
//	    vector_store: local
//	    embedder: default
//	    watch: true
//	    indexing:
//	      max_concurrent: 8
//	      retry:
//	        max_retries: 3
//	        base_delay: 1s
type DocumentStoreConfig struct {
	// Source configures where documents come from. Required.
	Source *DocumentSourceConfig `yaml:"source"`

	// Chunking configures how documents are split.
	Chunking *ChunkingConfig `yaml:"chunking,omitempty"`

	// VectorStore references a vector store from vector_stores.
	VectorStore string `yaml:"vector_store,omitempty"`

	// Embedder references an embedder from embedders.
	Embedder string `yaml:"embedder,omitempty"`

	// Collection overrides the collection name.
	Collection string `yaml:"collection,omitempty"`

	// Watch re-indexes automatically when source files change.
	Watch bool `yaml:"watch,omitempty"`

	// IncrementalIndexing only re-indexes changed documents.
	IncrementalIndexing bool `yaml:"incremental_indexing,omitempty"`

	// Search configures search behavior for this store.
	Search *DocumentSearchConfig `yaml:"search,omitempty"`

	// Indexing configures concurrency and retry for indexing runs.
	Indexing *IndexingConfig `yaml:"indexing,omitempty"`

	// MCPParsers routes document parsing through MCP tools (e.g.
	// Docling) instead of the native parsers.
	MCPParsers *MCPParserConfig `yaml:"mcp_parsers,omitempty"`
}

func (c *DocumentStoreConfig) SetDefaults() {
	if c.Source != nil {
		c.Source.SetDefaults()
	}
	if c.Chunking == nil {
		c.Chunking = &ChunkingConfig{}
	}
	c.Chunking.SetDefaults()
	if c.Search == nil {
		c.Search = &DocumentSearchConfig{}
	}
	c.Search.SetDefaults()
	if c.Indexing == nil {
		c.Indexing = &IndexingConfig{}
	}
	c.Indexing.SetDefaults()
	if c.MCPParsers != nil {
		c.MCPParsers.SetDefaults()
	}
}

func (c *DocumentStoreConfig) Validate() error {
	if c.Source == nil {
		return fmt.Errorf("source is required")
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if c.Chunking != nil {
		if err := c.Chunking.Validate(); err != nil {
			return fmt.Errorf("chunking: %w", err)
		}
	}
	if c.Search != nil {
		if err := c.Search.Validate(); err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}
	if c.Indexing != nil {
		if err := c.Indexing.Validate(); err != nil {
			return fmt.Errorf("indexing: %w", err)
		}
	}
	if c.MCPParsers != nil {
		if err := c.MCPParsers.Validate(); err != nil {
			return fmt.Errorf("mcp_parsers: %w", err)
		}
	}
	return nil
}

// DocumentSourceConfig configures a document source.
type DocumentSourceConfig struct {
	// Type is the source type: "directory", "sql", "api", "collection".
	Type string `yaml:"type"`

	// Path is the directory to walk (directory sources).
	Path string `yaml:"path,omitempty"`

	// Include glob patterns (directory sources).
	Include []string `yaml:"include,omitempty"`

	// Exclude glob patterns (directory sources).
	Exclude []string `yaml:"exclude,omitempty"`

	// MaxFileSize caps file size in bytes (directory sources).
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`

	// SQL configures sql sources.
	SQL *SQLSourceConfig `yaml:"sql,omitempty"`

	// API configures api sources.
	API *APISourceConfig `yaml:"api,omitempty"`

	// Collection names an existing pre-populated collection
	// (collection sources).
	Collection string `yaml:"collection,omitempty"`
}

func (c *DocumentSourceConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "directory"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
	if c.Exclude == nil {
		c.Exclude = []string{".*", "node_modules", "__pycache__", "vendor", ".git"}
	}
}

func (c *DocumentSourceConfig) Validate() error {
	switch c.Type {
	case "directory":
		if c.Path == "" {
			return fmt.Errorf("path is required for directory source")
		}
	case "sql":
		if c.SQL == nil {
			return fmt.Errorf("sql config is required for sql source")
		}
		if err := c.SQL.Validate(); err != nil {
			return fmt.Errorf("sql: %w", err)
		}
	case "api":
		if c.API == nil {
			return fmt.Errorf("api config is required for api source")
		}
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	case "collection":
		if c.Collection == "" {
			return fmt.Errorf("collection name is required for collection source")
		}
	default:
		return fmt.Errorf("invalid source type %q (valid: directory, sql, api, collection)", c.Type)
	}
	return nil
}

// SQLSourceConfig configures a SQL-backed document source.
type SQLSourceConfig struct {
	// Database references a connection from the databases section.
	Database string `yaml:"database"`

	// Tables lists the tables to index.
	Tables []SQLTableConfig `yaml:"tables"`
}

func (c *SQLSourceConfig) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database reference is required")
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table is required")
	}
	for i, table := range c.Tables {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("table[%d]: %w", i, err)
		}
	}
	return nil
}

// SQLTableConfig selects a table and the columns that form each
// document.
type SQLTableConfig struct {
	// Table is the table name.
	Table string `yaml:"table"`

	// Columns are concatenated to form the document content.
	Columns []string `yaml:"columns"`

	// IDColumn is the primary key column.
	IDColumn string `yaml:"id_column"`

	// UpdatedColumn tracks row changes for incremental indexing.
	UpdatedColumn string `yaml:"updated_column,omitempty"`

	// WhereClause filters rows.
	WhereClause string `yaml:"where_clause,omitempty"`

	// MetadataColumns are carried into chunk metadata.
	MetadataColumns []string `yaml:"metadata_columns,omitempty"`
}

func (c *SQLTableConfig) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	if c.IDColumn == "" {
		return fmt.Errorf("id_column is required")
	}
	return nil
}

// APISourceConfig configures an HTTP API document source.
type APISourceConfig struct {
	// URL is the endpoint returning documents.
	URL string `yaml:"url"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IDField is the JSON path to document IDs.
	IDField string `yaml:"id_field"`

	// ContentField is the JSON path to document content.
	ContentField string `yaml:"content_field"`
}

func (c *APISourceConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	// Strategy: "simple", "overlapping", "semantic".
	Strategy string `yaml:"strategy,omitempty"`

	// Size is the target chunk size in characters.
	Size int `yaml:"size,omitempty"`

	// Overlap between adjacent chunks (overlapping strategy).
	Overlap int `yaml:"overlap,omitempty"`

	// MinSize must not exceed Size. No chunker merges chunks smaller
	// than this.
	MinSize int `yaml:"min_size,omitempty"`

	// MaxSize must be at least Size. The chunkers do not enforce it as a
	// bound on chunk size.
	MaxSize int `yaml:"max_size,omitempty"`

	// PreserveWords is passed to the chunker, which does not read it;
	// chunks always end between lines.
	PreserveWords *bool `yaml:"preserve_words,omitempty"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "simple"
	}
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.MinSize <= 0 {
		c.MinSize = 100
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 2000
	}
	if c.PreserveWords == nil {
		c.PreserveWords = BoolPtr(true)
	}
}

func (c *ChunkingConfig) Validate() error {
	switch c.Strategy {
	case "simple", "overlapping", "semantic":
	default:
		return fmt.Errorf("invalid chunking strategy %q (valid: simple, overlapping, semantic)", c.Strategy)
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive")
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative")
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("overlap must be less than size")
	}
	return nil
}

// DocumentSearchConfig configures search behavior for one store. The
// HyDE, rerank, and multi-query stages each require an LLM reference
// when enabled.
type DocumentSearchConfig struct {
	// TopK is the default number of results.
	TopK int `yaml:"top_k,omitempty"`

	// Threshold drops results scoring below it.
	Threshold float32 `yaml:"threshold,omitempty"`

	// EnableHyDE turns on hypothetical document embeddings.
	EnableHyDE bool `yaml:"enable_hyde,omitempty"`

	// HyDELLM references the LLM used for HyDE generation.
	HyDELLM string `yaml:"hyde_llm,omitempty"`

	// EnableRerank turns on LLM-based reranking.
	EnableRerank bool `yaml:"enable_rerank,omitempty"`

	// RerankLLM references the LLM used for reranking.
	RerankLLM string `yaml:"rerank_llm,omitempty"`

	// RerankMaxResults caps reranking candidates.
	RerankMaxResults int `yaml:"rerank_max_results,omitempty"`

	// EnableMultiQuery turns on query expansion.
	EnableMultiQuery bool `yaml:"enable_multi_query,omitempty"`

	// MultiQueryLLM references the LLM used for query expansion.
	MultiQueryLLM string `yaml:"multi_query_llm,omitempty"`

	// MultiQueryCount is the number of query variants.
	MultiQueryCount int `yaml:"multi_query_count,omitempty"`
}

func (c *DocumentSearchConfig) SetDefaults() {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.RerankMaxResults <= 0 {
		c.RerankMaxResults = 20
	}
	if c.MultiQueryCount <= 0 {
		c.MultiQueryCount = 3
	}
}

func (c *DocumentSearchConfig) Validate() error {
	if c.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	if c.EnableHyDE && c.HyDELLM == "" {
		return fmt.Errorf("hyde_llm is required when enable_hyde is true")
	}
	if c.EnableRerank && c.RerankLLM == "" {
		return fmt.Errorf("rerank_llm is required when enable_rerank is true")
	}
	if c.EnableMultiQuery && c.MultiQueryLLM == "" {
		return fmt.Errorf("multi_query_llm is required when enable_multi_query is true")
	}
	return nil
}

// IndexingConfig controls indexing concurrency and retry.
//
// Example YAML:
//
//	indexing:
//	  max_concurrent: 8
//	  retry:
//	    max_retries: 5
//	    base_delay: 2s
//	    max_delay: 60s
type IndexingConfig struct {
	// MaxConcurrent limits parallel document processing. Zero lets the
	// indexer pick (NumCPU); 1 forces sequential indexing. Lower values
	// suit rate-limited embedding APIs.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// Retry configures backoff for transient failures.
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

func (c *IndexingConfig) SetDefaults() {
	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	c.Retry.SetDefaults()
}

func (c *IndexingConfig) Validate() error {
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be non-negative")
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	return nil
}

// RetryConfig configures exponential backoff with jitter.
//
// Example YAML:
//
//	retry:
//	  max_retries: 3
//	  base_delay: 1s
//	  max_delay: 30s
//	  jitter: 0.1
type RetryConfig struct {
	// MaxRetries is the number of retry attempts.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BaseDelay is the initial delay; each retry doubles it.
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`

	// Jitter randomizes delays, 0.0-1.0 of the computed delay.
	Jitter float64 `yaml:"jitter,omitempty"`
}

func (c *RetryConfig) SetDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.1
	}
}

func (c *RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("base_delay must be non-negative")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max_delay must be non-negative")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1")
	}
	return nil
}

// MCPParserConfig routes document parsing through MCP tools. Tools like
// Docling extract structure from binary formats better than the native
// parsers.
//
// Example YAML:
//
//	mcp_parsers:
//	  tool_names: ["convert_document_into_docling_document"]
//	  extensions: [".pdf", ".docx", ".pptx"]
//	  priority: 8
//	  path_prefix: "/docs"
type MCPParserConfig struct {
	// ToolNames are tried in order until one parses the document.
	ToolNames []string `yaml:"tool_names"`

	// Extensions limits which file types use MCP parsing; empty means
	// all binary files.
	Extensions []string `yaml:"extensions,omitempty"`

	// Priority orders this extractor against others; native parsers
	// register at 5.
	Priority *int `yaml:"priority,omitempty"`

	// PreferNative uses MCP only when native parsers fail.
	PreferNative *bool `yaml:"prefer_native,omitempty"`

	// PathPrefix remaps local paths for containerized MCP services,
	// e.g. "/docs" when mounting ./my-docs:/docs.
	PathPrefix string `yaml:"path_prefix,omitempty"`
}

func (c *MCPParserConfig) SetDefaults() {
	if c.Priority == nil {
		c.Priority = IntPtr(8)
	}
	if c.PreferNative == nil {
		c.PreferNative = BoolPtr(false)
	}
	if c.Extensions == nil {
		c.Extensions = []string{".pdf", ".docx", ".pptx", ".xlsx"}
	}
}

func (c *MCPParserConfig) Validate() error {
	if len(c.ToolNames) == 0 {
		return fmt.Errorf("tool_names is required")
	}
	return nil
}
