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
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// ToolCaller resolves tools by name. A narrow local interface so this
// package depends on no particular tool registry.
type ToolCaller interface {
	GetTool(name string) (Tool, error)
}

// Tool is the slice of a tool this extractor needs: describe and run.
type Tool interface {
	GetInfo() ToolInfo
	Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error)
}

// ToolInfo describes a tool and its parameters.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolParameter describes one tool parameter.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolResult is a tool invocation's outcome.
type ToolResult struct {
	Success  bool
	Content  string
	Error    string
	Metadata interface{}
}

// MCPExtractor parses documents through external MCP tools (Docling and
// the like), trying each configured tool name in order until one
// produces content.
type MCPExtractor struct {
	toolCaller      ToolCaller
	parserToolNames []string
	supportedExts   map[string]bool
	priority        int

	// localBasePath/pathPrefix remap paths for containerized MCP
	// services that mount the document directory elsewhere, e.g.
	// /home/u/docs/a.pdf -> /docs/a.pdf.
	localBasePath string
	pathPrefix    string
}

// MCPExtractorConfig configures an MCPExtractor.
type MCPExtractorConfig struct {
	// ToolCaller resolves the parser tools. Required.
	ToolCaller ToolCaller

	// ParserToolNames are tried in order, e.g. ["parse_document",
	// "docling_parse"]. At least one is required.
	ParserToolNames []string

	// SupportedExts restricts the extractor to these extensions; empty
	// claims every file.
	SupportedExts []string

	// Priority ranks the extractor (default 8: above the binary
	// parsers, below plugins).
	Priority int

	// LocalBasePath is the document root on this machine.
	LocalBasePath string

	// PathPrefix is the same root as the MCP service sees it.
	PathPrefix string
}

// NewMCPExtractor creates an MCP-backed extractor.
func NewMCPExtractor(config MCPExtractorConfig) (*MCPExtractor, error) {
	if config.ToolCaller == nil {
		return nil, fmt.Errorf("tool caller is required")
	}
	if len(config.ParserToolNames) == 0 {
		return nil, fmt.Errorf("at least one parser tool name is required")
	}

	priority := config.Priority
	if priority == 0 {
		priority = 8
	}

	extMap := make(map[string]bool, len(config.SupportedExts))
	for _, ext := range config.SupportedExts {
		extMap[strings.ToLower(ext)] = true
	}

	return &MCPExtractor{
		toolCaller:      config.ToolCaller,
		parserToolNames: config.ParserToolNames,
		supportedExts:   extMap,
		priority:        priority,
		localBasePath:   config.LocalBasePath,
		pathPrefix:      config.PathPrefix,
	}, nil
}

// Name returns the extractor name, including its tool chain.
func (e *MCPExtractor) Name() string {
	return fmt.Sprintf("MCPExtractor:%s", strings.Join(e.parserToolNames, ","))
}

// CanExtract reports whether the file's extension is claimed and at
// least one parser tool currently resolves.
func (e *MCPExtractor) CanExtract(path string, mimeType string) bool {
	if len(e.supportedExts) > 0 && !e.supportedExts[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return e.hasParserTool()
}

// hasParserTool reports whether any configured tool resolves right now;
// MCP toolsets can come and go with their connections.
func (e *MCPExtractor) hasParserTool() bool {
	for _, toolName := range e.parserToolNames {
		if _, err := e.toolCaller.GetTool(toolName); err == nil {
			return true
		}
	}
	return false
}

// remapPath rewrites a local path into the MCP service's view of the
// same file. Paths outside the configured base pass through untouched.
func (e *MCPExtractor) remapPath(localPath string) string {
	if e.pathPrefix == "" || e.localBasePath == "" {
		return localPath
	}
	if relative, ok := strings.CutPrefix(localPath, e.localBasePath); ok {
		return e.pathPrefix + relative
	}
	return localPath
}

// Extract runs the parser tools in order until one yields content.
func (e *MCPExtractor) Extract(ctx context.Context, path string, fileSize int64) (*ExtractedContent, error) {
	startTime := time.Now()

	remotePath := e.remapPath(path)
	if remotePath != path {
		slog.Debug("Remapped path for MCP tool", "local_path", path, "remote_path", remotePath)
	}

	for _, toolName := range e.parserToolNames {
		tool, err := e.toolCaller.GetTool(toolName)
		if err != nil {
			continue
		}

		result, err := tool.Execute(ctx, parserArgs(tool, remotePath))
		if err != nil {
			slog.Debug("MCP tool execution error", "tool", toolName, "path", path, "error", err.Error())
			continue
		}

		if !result.Success {
			slog.Debug("MCP tool returned failure, trying next tool",
				"tool", toolName, "path", path, "error", result.Error)
			continue
		}

		content := strings.TrimSpace(resultContent(result))
		if content == "" {
			slog.Debug("MCP tool returned empty content, trying next tool",
				"tool", toolName, "path", path)
			continue
		}

		title, author, metadata := resultMetadata(result)
		if title == "" {
			title = filepath.Base(path)
		}
		metadata["file_path"] = path
		metadata["file_size"] = fmt.Sprintf("%d", fileSize)
		metadata["extractor"] = "mcp"
		metadata["tool"] = toolName

		return &ExtractedContent{
			Content:          content,
			Title:            title,
			Author:           author,
			Metadata:         metadata,
			ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		}, nil
	}

	return nil, fmt.Errorf("all MCP parser tools failed for file %s (tried tools: %v)", path, e.parserToolNames)
}

// parserArgs guesses which parameter carries the file path: the tool's
// first required parameter, then the conventional names, then a bare
// "file_path" for tools that declare nothing.
func parserArgs(tool Tool, path string) map[string]interface{} {
	args := make(map[string]interface{}, 1)

	info := tool.GetInfo()
	if len(info.Parameters) == 0 {
		args["file_path"] = path
		return args
	}

	for _, param := range info.Parameters {
		if param.Required {
			args[param.Name] = path
			return args
		}
	}

	for _, name := range []string{"file_path", "path", "input", "document"} {
		for _, param := range info.Parameters {
			if param.Name == name {
				args[name] = path
				return args
			}
		}
	}

	return args
}

// resultContent reads the parsed text, falling back to the metadata
// fields some parsers put it in.
func resultContent(result ToolResult) string {
	if result.Content != "" {
		return result.Content
	}
	if metadata, ok := result.Metadata.(map[string]interface{}); ok {
		if text, ok := metadata["content"].(string); ok {
			return text
		}
		if text, ok := metadata["text"].(string); ok {
			return text
		}
	}
	return ""
}

// resultMetadata flattens the string-valued metadata and pulls out the
// conventional title/author keys.
func resultMetadata(result ToolResult) (title, author string, metadata map[string]string) {
	metadata = make(map[string]string)

	metaMap, ok := result.Metadata.(map[string]interface{})
	if !ok {
		return "", "", metadata
	}

	for k, v := range metaMap {
		strVal, ok := v.(string)
		if !ok {
			continue
		}
		metadata[k] = strVal
		switch k {
		case "title", "document_title":
			title = strVal
		case "author", "document_author":
			author = strVal
		}
	}
	return title, author, metadata
}

// Priority returns the extractor priority.
func (e *MCPExtractor) Priority() int {
	return e.priority
}

var _ ContentExtractor = (*MCPExtractor)(nil)
