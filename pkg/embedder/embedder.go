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

// Package embedder turns text into vectors for semantic search. The
// memory index and the RAG search engine both consume the Embedder
// interface; OpenAI, Ollama and Cohere backends implement it.
package embedder

import "context"

// Embedder produces vector embeddings from text. Implementations must
// be safe for concurrent use; the RAG ingest path calls them from
// multiple workers.
type Embedder interface {
	// Embed converts one text to its embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts many texts in one round trip where the
	// provider supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector size.
	Dimension() int

	// Model returns the model name in use.
	Model() string

	// Close releases provider resources.
	Close() error
}
