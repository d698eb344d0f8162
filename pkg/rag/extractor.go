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
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// ContentExtractor turns one file into indexable text. Extractors are
// ranked: the registry asks the highest-priority one that claims a file
// first and falls through on failure.
type ContentExtractor interface {
	// Name returns the extractor name for logging.
	Name() string

	// CanExtract reports whether this extractor handles the file.
	CanExtract(path string, mimeType string) bool

	// Extract reads the file's text. Returning (nil, nil) skips the
	// file without failing it.
	Extract(ctx context.Context, path string, fileSize int64) (*ExtractedContent, error)

	// Priority ranks extractors; higher wins when several claim a file.
	Priority() int
}

// ExtractedContent is one file's extracted text plus what the format
// knew about it.
type ExtractedContent struct {
	Content          string
	Title            string
	Author           string
	Metadata         map[string]string
	ProcessingTimeMs int64
	ExtractorName    string
}

// ExtractorRegistry holds the extractors, ordered by priority.
type ExtractorRegistry struct {
	extractors []ContentExtractor
}

// NewExtractorRegistry creates a registry seeded with the plain-text
// fallback extractor.
func NewExtractorRegistry() *ExtractorRegistry {
	reg := &ExtractorRegistry{}
	reg.Register(NewTextExtractor())
	return reg
}

// Register adds an extractor, keeping the list priority-sorted.
func (r *ExtractorRegistry) Register(extractor ContentExtractor) {
	r.extractors = append(r.extractors, extractor)
	sort.Slice(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// Extract extracts a document's content. Documents that already carry
// text and no file path (SQL rows, API responses) pass through without
// touching an extractor.
func (r *ExtractorRegistry) Extract(ctx context.Context, doc Document) (*ExtractedContent, error) {
	if doc.Content != "" && !isFilePath(doc.SourcePath) {
		return &ExtractedContent{
			Content:       doc.Content,
			Title:         doc.Title,
			Metadata:      make(map[string]string),
			ExtractorName: "direct",
		}, nil
	}

	return r.ExtractContent(ctx, doc.SourcePath, doc.MimeType, doc.Size)
}

// ExtractContent runs the best claiming extractor over the file. A
// failing extractor falls through to the next claimant.
func (r *ExtractorRegistry) ExtractContent(ctx context.Context, path string, mimeType string, fileSize int64) (*ExtractedContent, error) {
	for _, extractor := range r.extractors {
		if !extractor.CanExtract(path, mimeType) {
			continue
		}
		content, err := extractor.Extract(ctx, path, fileSize)
		if err != nil {
			continue
		}
		if content != nil {
			content.ExtractorName = extractor.Name()
			return content, nil
		}
	}

	return nil, fmt.Errorf("no suitable extractor found for file: %s (mime: %s)", path, mimeType)
}

// GetExtractors returns the registered extractors, priority-ordered.
func (r *ExtractorRegistry) GetExtractors() []ContentExtractor {
	return r.extractors
}

// HasExtractorForFile reports whether any extractor claims the file, so
// discovery can skip unextractable files before reading them.
func (r *ExtractorRegistry) HasExtractorForFile(path string, mimeType string) bool {
	for _, extractor := range r.extractors {
		if extractor.CanExtract(path, mimeType) {
			return true
		}
	}
	return false
}

// isFilePath reports whether the string looks like a filesystem path
// (separator or extension) rather than an opaque source ID.
func isFilePath(path string) bool {
	if path == "" {
		return false
	}
	return strings.Contains(path, string(os.PathSeparator)) ||
		strings.Contains(path, "/") ||
		filepath.Ext(path) != ""
}

// TextExtractor is the fallback: any file that sniffs as text.
type TextExtractor struct{}

// NewTextExtractor creates the plain-text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Name returns the extractor name.
func (te *TextExtractor) Name() string {
	return "TextExtractor"
}

// CanExtract trusts an explicit MIME type, sniffing the file's first
// bytes otherwise.
func (te *TextExtractor) CanExtract(path string, mimeType string) bool {
	if mimeType != "" {
		return isTextMimeType(mimeType)
	}
	return !te.isBinaryFile(path)
}

// Extract reads the file and cleans its encoding. Files that clean to
// empty are skipped.
func (te *TextExtractor) Extract(ctx context.Context, path string, fileSize int64) (*ExtractedContent, error) {
	startTime := time.Now()

	contentBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := cleanUTF8Content(string(contentBytes))
	if content == "" {
		return nil, nil
	}

	return &ExtractedContent{
		Content:          content,
		Title:            filepath.Base(path),
		Metadata:         make(map[string]string),
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// Priority is lowest: every format-specific extractor outranks the
// text fallback.
func (te *TextExtractor) Priority() int {
	return 1
}

// isBinaryFile sniffs the first 512 bytes. Unreadable files read as
// text so the error surfaces from Extract, not the probe.
func (te *TextExtractor) isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buffer := make([]byte, 512)
	n, err := f.Read(buffer)
	if err != nil || n == 0 {
		return false
	}

	return !isTextMimeType(http.DetectContentType(buffer[:n]))
}

// isTextMimeType reports whether a MIME type carries text.
func isTextMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/json" ||
		mimeType == "application/xml" ||
		strings.Contains(mimeType, "javascript")
}

// cleanUTF8Content strips invalid UTF-8. A file that is mostly invalid
// is treated as binary and rejected outright.
func cleanUTF8Content(content string) string {
	if utf8.ValidString(content) {
		return content
	}

	cleaned := strings.ToValidUTF8(content, "")
	if float64(len(content)-len(cleaned))/float64(len(content)) > 0.5 {
		return ""
	}
	return cleaned
}
