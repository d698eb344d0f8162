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

package rag

import (
	"context"
	"time"
)

// DataSource is where a document store's content comes from: a
// directory tree, SQL rows, a pre-populated collection. Sources stream
// discovery so a large corpus never has to fit in memory at once.
type DataSource interface {
	// Type names the source kind ("directory", "sql", "collection").
	Type() string

	// DiscoverDocuments streams the source's documents and any
	// per-document errors. Both channels close when discovery ends.
	// File-backed sources read content during discovery; row- and
	// API-backed sources arrive with content already populated.
	DiscoverDocuments(ctx context.Context) (<-chan Document, <-chan error)

	// ReadDocument fetches one document by its source-specific ID
	// (file path, row key, ...).
	ReadDocument(ctx context.Context, id string) (*Document, error)

	// SupportsIncrementalIndexing reports whether the source can tell
	// what changed since the last pass.
	SupportsIncrementalIndexing() bool

	// GetLastModified returns a document's modification time, or the
	// zero time when the source cannot know it.
	GetLastModified(ctx context.Context, id string) (time.Time, error)

	// Close releases source resources.
	Close() error
}

// SourceDocument is a source's raw view of one document before it
// becomes a rag.Document for ingestion.
type SourceDocument struct {
	// ID is the source-specific identifier.
	ID string

	// Content is the text to index.
	Content string

	// Metadata is source-specific (file path, table name, ...).
	Metadata map[string]interface{}

	// LastModified is the modification time, when known.
	LastModified time.Time

	// Size in bytes, approximate for non-file sources.
	Size int64

	// ShouldIndex is the filter verdict for this document.
	ShouldIndex bool

	// SourcePath is the original location, for relative-path math and
	// display.
	SourcePath string
}

// FileFilter decides which paths a file-backed source indexes.
type FileFilter interface {
	ShouldInclude(path string) bool
	ShouldExclude(path string) bool
}

// NilDataSource discovers nothing, for stores constructed without a
// source.
type NilDataSource struct{}

func (NilDataSource) Type() string { return "nil" }

func (NilDataSource) DiscoverDocuments(ctx context.Context) (<-chan Document, <-chan error) {
	docChan := make(chan Document)
	errChan := make(chan error)
	close(docChan)
	close(errChan)
	return docChan, errChan
}

func (NilDataSource) ReadDocument(ctx context.Context, id string) (*Document, error) {
	return nil, nil
}

func (NilDataSource) SupportsIncrementalIndexing() bool {
	return false
}

func (NilDataSource) GetLastModified(ctx context.Context, id string) (time.Time, error) {
	return time.Time{}, nil
}

func (NilDataSource) Close() error {
	return nil
}

var _ DataSource = NilDataSource{}
