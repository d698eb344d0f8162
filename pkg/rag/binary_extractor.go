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
	"path/filepath"
	"strings"
	"time"
)

// binaryExtensions are the formats the native parsers understand.
var binaryExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
}

// NativeParser turns one binary document into text. The in-process
// implementation covers PDF, DOCX and XLSX.
type NativeParser interface {
	ParseDocument(ctx context.Context, filePath string, fileSize int64) (*NativeParseResult, error)
}

// NativeParseResult is a parser's output for one document.
type NativeParseResult struct {
	Success          bool
	Content          string
	Title            string
	Author           string
	Metadata         map[string]string
	Error            string
	ProcessingTimeMs int64
}

// BinaryExtractor extracts text from binary document formats through a
// NativeParser.
type BinaryExtractor struct {
	nativeParsers NativeParser
}

// NewBinaryExtractor creates a binary extractor over the given parsers.
func NewBinaryExtractor(nativeParsers NativeParser) *BinaryExtractor {
	return &BinaryExtractor{nativeParsers: nativeParsers}
}

// Name returns the extractor name.
func (be *BinaryExtractor) Name() string {
	return "BinaryExtractor"
}

// CanExtract reports whether the file's extension names a supported
// binary format.
func (be *BinaryExtractor) CanExtract(path string, mimeType string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extract parses the document. A parser that ran but could not produce
// content yields (nil, nil): the file is skipped, not failed.
func (be *BinaryExtractor) Extract(ctx context.Context, path string, fileSize int64) (*ExtractedContent, error) {
	startTime := time.Now()

	result, err := be.nativeParsers.ParseDocument(ctx, path, fileSize)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, nil
	}

	metadata := make(map[string]string, len(result.Metadata))
	for k, v := range result.Metadata {
		metadata[k] = v
	}

	return &ExtractedContent{
		Content:          result.Content,
		Title:            result.Title,
		Author:           result.Author,
		Metadata:         metadata,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// Priority places binary extraction between the MCP extractor and the
// plain-text fallback.
func (be *BinaryExtractor) Priority() int {
	return 5
}

var _ ContentExtractor = (*BinaryExtractor)(nil)
