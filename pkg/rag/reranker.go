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

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/loomkit/loom/pkg/model"
)

// rerankSnippetLength bounds how much of each result the ranking model
// sees.
const rerankSnippetLength = 500

// Reranker reorders search results with a ranking model, trading
// latency and model cost for relevance judgments that embeddings alone
// miss. Practical only for small candidate sets.
type Reranker struct {
	llm        model.LLM
	maxResults int
}

// RerankResult is a reranked result set plus the model's decisions.
type RerankResult struct {
	// Results are the reranked search results.
	Results []SearchResult

	// Rankings are the model's per-result decisions.
	Rankings []RankingDecision
}

// RankingDecision is the model's verdict on one candidate.
type RankingDecision struct {
	// Index is the candidate's position in the original result list.
	Index int `json:"index"`

	// Relevance is the assigned relevance, 1-10.
	Relevance int `json:"relevance"`

	// Reason explains the assignment.
	Reason string `json:"reason,omitempty"`
}

// NewReranker creates a reranker that judges at most maxResults
// candidates per call (default 20).
func NewReranker(llm model.LLM, maxResults int) *Reranker {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Reranker{llm: llm, maxResults: maxResults}
}

// Rerank reorders results by the model's relevance assessment. After
// reranking, scores are position-based (1st = 1.0, stepping down 0.05);
// the original similarity scores are replaced. Any model or parse
// failure degrades to the original order rather than failing the search.
func (r *Reranker) Rerank(ctx context.Context, query string, results []SearchResult) (*RerankResult, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("LLM is required for reranking")
	}
	if len(results) == 0 {
		return &RerankResult{Results: results}, nil
	}

	toRerank := results
	if len(toRerank) > r.maxResults {
		toRerank = toRerank[:r.maxResults]
	}

	temp := 0.0
	request := &model.Request{
		Messages: []*a2a.Message{
			a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: r.buildRerankPrompt(query, toRerank)}),
		},
		Config: &model.GenerateConfig{
			// Ranking should be deterministic.
			Temperature: &temp,
		},
	}

	var response string
	for resp, err := range r.llm.GenerateContent(ctx, request, false) {
		if err != nil {
			slog.Warn("Reranking failed, returning original order", "error", err)
			return &RerankResult{Results: results}, nil
		}
		if resp.Content != nil {
			for _, part := range resp.Content.Parts {
				if tp, ok := part.(a2a.TextPart); ok {
					response += tp.Text
				}
			}
		}
	}

	rankings, err := r.parseRankings(response, len(toRerank))
	if err != nil {
		slog.Warn("Failed to parse rankings, returning original order", "error", err)
		return &RerankResult{Results: results}, nil
	}

	reranked := r.applyRankings(toRerank, rankings)

	// Candidates beyond the rerank window keep their original order
	// behind the reranked head.
	if len(results) > r.maxResults {
		reranked = append(reranked, results[r.maxResults:]...)
	}

	slog.Debug("Reranked search results",
		"query", query,
		"original_count", len(results),
		"reranked_count", len(toRerank))

	return &RerankResult{Results: reranked, Rankings: rankings}, nil
}

func (r *Reranker) buildRerankPrompt(query string, results []SearchResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `Given the query: %q

Rank the following documents by their relevance to the query.
For each document, provide a relevance score from 1-10 (10 being most relevant).

Documents:
`, sanitizeInput(query))

	for i, result := range results {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i, truncateString(result.Content, rerankSnippetLength))
	}

	sb.WriteString(`

Respond with a JSON array of rankings, ordered from most to least relevant:
[{"index": 0, "relevance": 9, "reason": "directly answers the query"}, ...]

Only include the JSON array, no other text.`)

	return sb.String()
}

// parseRankings extracts the decisions from the model's reply,
// tolerating prose around the JSON array. Candidates the model skipped
// are appended with minimal relevance so nothing silently disappears.
func (r *Reranker) parseRankings(response string, numResults int) ([]RankingDecision, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var rankings []RankingDecision
	if err := json.Unmarshal([]byte(response[start:end+1]), &rankings); err != nil {
		return nil, fmt.Errorf("failed to parse rankings JSON: %w", err)
	}

	seen := make(map[int]bool)
	var valid []RankingDecision
	for _, ranking := range rankings {
		if ranking.Index >= 0 && ranking.Index < numResults && !seen[ranking.Index] {
			seen[ranking.Index] = true
			valid = append(valid, ranking)
		}
	}
	for i := 0; i < numResults; i++ {
		if !seen[i] {
			valid = append(valid, RankingDecision{Index: i, Relevance: 1})
		}
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Relevance > valid[j].Relevance
	})
	return valid, nil
}

func (r *Reranker) applyRankings(results []SearchResult, rankings []RankingDecision) []SearchResult {
	reranked := make([]SearchResult, len(rankings))
	for i, ranking := range rankings {
		if ranking.Index < len(results) {
			reranked[i] = results[ranking.Index]
			reranked[i].Score = max(1.0-float32(i)*0.05, 0.1)
		}
	}
	return reranked
}

// truncateString shortens s to maxLen with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// NilReranker returns results unchanged.
type NilReranker struct{}

func (NilReranker) Rerank(ctx context.Context, query string, results []SearchResult) (*RerankResult, error) {
	return &RerankResult{Results: results}, nil
}
