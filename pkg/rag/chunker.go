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

import "fmt"

// ChunkerStrategy identifies a chunking strategy.
type ChunkerStrategy string

const (
	// ChunkerSimple splits on a fixed character budget. Fast; may cut
	// mid-sentence.
	ChunkerSimple ChunkerStrategy = "simple"

	// ChunkerOverlapping repeats a tail of each chunk at the head of
	// the next, so boundary context survives retrieval.
	ChunkerOverlapping ChunkerStrategy = "overlapping"

	// ChunkerSemantic splits at natural boundaries (paragraphs,
	// sections). Best retrieval quality, slowest.
	ChunkerSemantic ChunkerStrategy = "semantic"
)

// defaultSeparators are the preferred split points, strongest first.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits content for indexing. Chunk size is the main quality
// lever in retrieval: too small loses context, too large dilutes
// relevance and wastes tokens.
type Chunker interface {
	// Chunk splits content per the strategy, returning chunks in
	// source order with their line positions. ctx, when non-nil,
	// carries semantic context (file path, language) into each chunk.
	Chunk(content string, ctx *ChunkContext) ([]Chunk, error)

	// Strategy returns the chunker strategy name.
	Strategy() ChunkerStrategy

	// Config returns the chunker configuration.
	Config() ChunkerConfig
}

// ChunkerConfig configures chunking behavior.
type ChunkerConfig struct {
	// Strategy selects the chunker (default "simple").
	Strategy ChunkerStrategy `yaml:"strategy,omitempty"`

	// Size is the target chunk size in characters (default 1000).
	Size int `yaml:"size,omitempty"`

	// Overlap is the carried-over tail for the overlapping strategy
	// (default 200).
	Overlap int `yaml:"overlap,omitempty"`

	// MinSize must not exceed Size (default 100). No chunker merges
	// chunks smaller than this.
	MinSize int `yaml:"min_size,omitempty"`

	// MaxSize must be at least Size (default 2000). The chunkers do not
	// enforce it as a bound on chunk size.
	MaxSize int `yaml:"max_size,omitempty"`

	// Separators lists split points, strongest first. The chunkers do
	// not consult it; they split only between lines.
	Separators []string `yaml:"separators,omitempty"`

	// PreserveWords defaults to true in DefaultChunkerConfig. The
	// chunkers do not read it; they split only between lines, so no
	// chunk ends mid-word either way.
	PreserveWords bool `yaml:"preserve_words,omitempty"`
}

// DefaultChunkerConfig returns the defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Strategy:      ChunkerSimple,
		Size:          1000,
		Overlap:       200,
		MinSize:       100,
		MaxSize:       2000,
		Separators:    defaultSeparators,
		PreserveWords: true,
	}
}

// SetDefaults applies default values.
func (c *ChunkerConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = ChunkerSimple
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
	if len(c.Separators) == 0 {
		c.Separators = defaultSeparators
	}
}

// Validate checks the configuration.
func (c *ChunkerConfig) Validate() error {
	switch c.Strategy {
	case ChunkerSimple, ChunkerOverlapping, ChunkerSemantic, "":
	default:
		return fmt.Errorf("invalid chunker strategy: %q", c.Strategy)
	}

	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("overlap (%d) must be less than size (%d)", c.Overlap, c.Size)
	}
	if c.MinSize > c.Size {
		return fmt.Errorf("min_size (%d) must not exceed size (%d)", c.MinSize, c.Size)
	}
	if c.MaxSize < c.Size {
		return fmt.Errorf("max_size (%d) must be at least size (%d)", c.MaxSize, c.Size)
	}
	return nil
}

// NewChunker builds the configured chunker.
func NewChunker(cfg ChunkerConfig) (Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}

	switch cfg.Strategy {
	case ChunkerOverlapping:
		return NewOverlappingChunker(cfg), nil
	case ChunkerSemantic:
		return NewSemanticChunker(cfg), nil
	default:
		return NewSimpleChunker(cfg), nil
	}
}

// NilChunker yields the whole content as one chunk.
type NilChunker struct{}

func (NilChunker) Chunk(content string, ctx *ChunkContext) ([]Chunk, error) {
	return []Chunk{{
		Content:   content,
		Index:     0,
		Total:     1,
		StartLine: 1,
		EndLine:   countLines(content),
		Context:   ctx,
	}}, nil
}

func (NilChunker) Strategy() ChunkerStrategy {
	return "nil"
}

func (NilChunker) Config() ChunkerConfig {
	return ChunkerConfig{}
}

// countLines counts newline-delimited lines; empty content has none.
func countLines(content string) int {
	if len(content) == 0 {
		return 0
	}
	lines := 1
	for _, c := range content {
		if c == '\n' {
			lines++
		}
	}
	return lines
}
