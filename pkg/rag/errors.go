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
	"fmt"
	"time"
)

// The ingestion pipeline fails per stage, and each stage's error names
// what a log reader needs to find the document again: the store, the
// operation, and the source identifier. All wrap their cause for
// errors.Is/As.

// DocumentStoreError is a failure of a store-level operation.
type DocumentStoreError struct {
	StoreName string
	Operation string
	Message   string
	FilePath  string
	Err       error
	Timestamp time.Time
}

func (e *DocumentStoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.StoreName, e.Operation, e.Message)
	if e.FilePath != "" {
		msg += fmt.Sprintf(" (file: %s)", e.FilePath)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DocumentStoreError) Unwrap() error {
	return e.Err
}

// NewDocumentStoreError builds a DocumentStoreError stamped with the
// current time.
func NewDocumentStoreError(storeName, operation, message, filePath string, err error) *DocumentStoreError {
	return &DocumentStoreError{
		StoreName: storeName,
		Operation: operation,
		Message:   message,
		FilePath:  filePath,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// SearchError is a failure inside the search path, naming the component
// (embedder, vector store, reranker) that failed.
type SearchError struct {
	Component string
	Operation string
	Message   string
	Query     string
	Err       error
}

func (e *SearchError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Component, e.Operation, e.Message)
	if e.Query != "" {
		// Queries can be arbitrarily long user text; keep the error line
		// readable.
		query := e.Query
		if len(query) > 50 {
			query = query[:50] + "..."
		}
		msg += fmt.Sprintf(" (query: %q)", query)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError builds a SearchError.
func NewSearchError(component, operation, message, query string, err error) *SearchError {
	return &SearchError{
		Component: component,
		Operation: operation,
		Message:   message,
		Query:     query,
		Err:       err,
	}
}

// ExtractionError is a content-extraction failure for one file.
type ExtractionError struct {
	Extractor string
	FilePath  string
	Message   string
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("[%s] extraction failed for %s: %s", e.Extractor, e.FilePath, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError builds an ExtractionError.
func NewExtractionError(extractor, filePath, message string, err error) *ExtractionError {
	return &ExtractionError{
		Extractor: extractor,
		FilePath:  filePath,
		Message:   message,
		Err:       err,
	}
}

// ChunkingError is a chunking failure for one document.
type ChunkingError struct {
	Strategy   string
	DocumentID string
	Message    string
	Err        error
}

func (e *ChunkingError) Error() string {
	msg := fmt.Sprintf("[%s] chunking failed for %s: %s", e.Strategy, e.DocumentID, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ChunkingError) Unwrap() error {
	return e.Err
}

// NewChunkingError builds a ChunkingError.
func NewChunkingError(strategy, documentID, message string, err error) *ChunkingError {
	return &ChunkingError{
		Strategy:   strategy,
		DocumentID: documentID,
		Message:    message,
		Err:        err,
	}
}

// IndexError is an embed/upsert/delete failure for one document.
type IndexError struct {
	StoreName  string
	DocumentID string
	Operation  string
	Message    string
	Err        error
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("[%s] index %s failed for %s: %s", e.StoreName, e.Operation, e.DocumentID, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// NewIndexError builds an IndexError.
func NewIndexError(storeName, documentID, operation, message string, err error) *IndexError {
	return &IndexError{
		StoreName:  storeName,
		DocumentID: documentID,
		Operation:  operation,
		Message:    message,
		Err:        err,
	}
}
