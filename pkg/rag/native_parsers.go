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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// maxExcelCellsPerSheet bounds how much of a spreadsheet is indexed.
const maxExcelCellsPerSheet = 1000

// NativeParserRegistry dispatches binary documents to the in-process
// parsers: PDF via ledongthuc/pdf, DOCX via nguyenthenguyen/docx, XLSX
// via excelize.
type NativeParserRegistry struct {
	parsers []nativeParserImpl
}

// nativeParserImpl is one format family's parser.
type nativeParserImpl interface {
	CanParse(filePath string) bool
	Parse(ctx context.Context, filePath string, fileSize int64) (*NativeParseResult, error)
	GetSupportedExtensions() []string
}

// NewNativeParserRegistry creates a registry with the built-in parsers.
func NewNativeParserRegistry() *NativeParserRegistry {
	return &NativeParserRegistry{
		parsers: []nativeParserImpl{&pdfParser{}, &officeParser{}},
	}
}

// ParseDocument routes the file to its parser. An unsupported format is
// an unsuccessful result, not an error: the extractor chain treats it
// as "skip this file".
func (r *NativeParserRegistry) ParseDocument(ctx context.Context, filePath string, fileSize int64) (*NativeParseResult, error) {
	for _, parser := range r.parsers {
		if parser.CanParse(filePath) {
			return parser.Parse(ctx, filePath, fileSize)
		}
	}
	return &NativeParseResult{
		Success: false,
		Error:   fmt.Sprintf("no native parser available for file: %s", filepath.Ext(filePath)),
	}, nil
}

// GetSupportedExtensions returns every extension some parser handles.
func (r *NativeParserRegistry) GetSupportedExtensions() []string {
	seen := make(map[string]bool)
	var result []string
	for _, parser := range r.parsers {
		for _, ext := range parser.GetSupportedExtensions() {
			if !seen[ext] {
				seen[ext] = true
				result = append(result, ext)
			}
		}
	}
	return result
}

var _ NativeParser = (*NativeParserRegistry)(nil)

// parseFailure builds an unsuccessful result with elapsed time.
func parseFailure(start time.Time, format string, args ...any) *NativeParseResult {
	return &NativeParseResult{
		Success:          false,
		Error:            fmt.Sprintf(format, args...),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

// pdfParser extracts text page by page.
type pdfParser struct{}

func (p *pdfParser) CanParse(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".pdf"
}

func (p *pdfParser) GetSupportedExtensions() []string {
	return []string{".pdf"}
}

func (p *pdfParser) Parse(ctx context.Context, filePath string, fileSize int64) (*NativeParseResult, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return parseFailure(startTime, "failed to open PDF file: %v", err), nil
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, fileSize)
	if err != nil {
		return parseFailure(startTime, "failed to parse PDF: %v", err), nil
	}

	var contentParts []string
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		// Large PDFs take a while; stay cancellable per page.
		select {
		case <-ctx.Done():
			return parseFailure(startTime, "context cancelled"), ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// One bad page shouldn't lose the document.
			contentParts = append(contentParts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			contentParts = append(contentParts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	content := strings.Join(contentParts, "\n\n")
	metadata := pdfMetadata(reader, filePath)
	metadata["word_count"] = fmt.Sprintf("%d", len(strings.Fields(content)))

	return &NativeParseResult{
		Success:          true,
		Content:          content,
		Title:            metadata["title"],
		Author:           metadata["author"],
		Metadata:         metadata,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// pdfMetadata collects document facts. PDFs rarely carry a usable title
// field, so the filename stands in.
func pdfMetadata(reader *pdf.Reader, filePath string) map[string]string {
	metadata := map[string]string{
		"pages": fmt.Sprintf("%d", reader.NumPage()),
		"type":  "PDF Document",
		"title": filepath.Base(filePath),
	}
	if fileInfo, err := os.Stat(filePath); err == nil {
		metadata["file_size"] = fmt.Sprintf("%d", fileInfo.Size())
		metadata["file_modified"] = fileInfo.ModTime().Format(time.RFC3339)
	}
	return metadata
}

// officeParser extracts Word and Excel documents.
type officeParser struct{}

func (p *officeParser) CanParse(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == ".docx" || ext == ".xlsx"
}

func (p *officeParser) GetSupportedExtensions() []string {
	return []string{".docx", ".xlsx"}
}

func (p *officeParser) Parse(ctx context.Context, filePath string, fileSize int64) (*NativeParseResult, error) {
	startTime := time.Now()

	var content, title, author string
	var metadata map[string]string

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".docx":
		content, title, author, metadata = p.parseWordDocument(filePath)
	case ".xlsx":
		content, title, author, metadata = p.parseExcelDocument(ctx, filePath)
	default:
		return parseFailure(startTime, "unsupported Office format: %s", filepath.Ext(filePath)), nil
	}

	return &NativeParseResult{
		Success:          true,
		Content:          content,
		Title:            title,
		Author:           author,
		Metadata:         metadata,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

func (p *officeParser) parseWordDocument(filePath string) (string, string, string, map[string]string) {
	title := filepath.Base(filePath)

	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return fmt.Sprintf("Error parsing Word document: %v", err), title, "", make(map[string]string)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	metadata := map[string]string{
		"title":      title,
		"type":       "Word Document",
		"paragraphs": fmt.Sprintf("%d", len(strings.Split(content, "\n\n"))),
	}
	return content, title, "", metadata
}

// parseExcelDocument renders non-empty cells as "A1: value" lines, one
// block per sheet, capped per sheet to keep the output indexable.
func (p *officeParser) parseExcelDocument(ctx context.Context, filePath string) (string, string, string, map[string]string) {
	title := filepath.Base(filePath)

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return fmt.Sprintf("Error parsing Excel document: %v", err), title, "", make(map[string]string)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	metadata := map[string]string{
		"sheets": fmt.Sprintf("%d", len(sheets)),
		"title":  title,
		"type":   "Excel Spreadsheet",
	}

	var contentParts []string
	for _, sheetName := range sheets {
		select {
		case <-ctx.Done():
			return strings.Join(contentParts, "\n\n"), title, "", metadata
		default:
		}

		var sheetText strings.Builder
		fmt.Fprintf(&sheetText, "--- Sheet: %s ---\n", sheetName)

		rows, err := f.GetRows(sheetName)
		if err != nil {
			fmt.Fprintf(&sheetText, "Error reading sheet: %v\n", err)
			continue
		}

		cellCount := 0
		for rowIndex, row := range rows {
			if cellCount >= maxExcelCellsPerSheet {
				sheetText.WriteString("... (truncated)\n")
				break
			}
			for colIndex, cell := range row {
				if cellCount >= maxExcelCellsPerSheet {
					break
				}
				if text := strings.TrimSpace(cell); text != "" {
					fmt.Fprintf(&sheetText, "%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text)
					cellCount++
				}
			}
		}

		if text := strings.TrimSpace(sheetText.String()); text != "" {
			contentParts = append(contentParts, text)
		}
	}

	return strings.Join(contentParts, "\n\n"), title, "", metadata
}

// columnLetter converts a 0-based column index to the spreadsheet
// letter scheme (A..Z, AA, AB, ...).
func columnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			return result
		}
	}
}
