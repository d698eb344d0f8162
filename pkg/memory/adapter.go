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

package memory

import (
	"context"

	"github.com/loomkit/loom/pkg/agent"
)

// SearchableService is the slice of the index service the memory
// adapter needs.
type SearchableService interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// Adapter exposes an index service to agents as agent.Memory, scoped to
// one (app, user) pair so agents never pass identity on each call. The
// index is a derived search structure; session.Service stays the source
// of truth, and the runner reindexes after each turn.
type Adapter struct {
	svc     SearchableService
	appName string
	userID  string
}

// NewAdapter creates the per-invocation memory view over svc.
func NewAdapter(svc SearchableService, appName, userID string) *Adapter {
	return &Adapter{
		svc:     svc,
		appName: appName,
		userID:  userID,
	}
}

// AddSession is a no-op: the runner indexes sessions itself after each
// turn, and the session service already holds the durable data.
func (a *Adapter) AddSession(ctx context.Context, session agent.Session) error {
	return nil
}

// Search returns memory entries relevant to the query, scoped to the
// adapter's app and user.
func (a *Adapter) Search(ctx context.Context, query string) (*agent.MemorySearchResponse, error) {
	if a.svc == nil {
		return &agent.MemorySearchResponse{}, nil
	}

	resp, err := a.svc.Search(ctx, &SearchRequest{
		Query:   query,
		AppName: a.appName,
		UserID:  a.userID,
	})
	if err != nil {
		return nil, err
	}

	results := make([]agent.MemoryResult, len(resp.Results))
	for i, r := range resp.Results {
		metadata := r.Metadata
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["session_id"] = r.SessionID
		metadata["event_id"] = r.EventID
		metadata["author"] = r.Author
		metadata["timestamp"] = r.Timestamp

		results[i] = agent.MemoryResult{
			Content:  r.Content,
			Score:    r.Score,
			Metadata: metadata,
		}
	}

	return &agent.MemorySearchResponse{Results: results}, nil
}

// NilMemory returns a memory implementation whose operations succeed and
// do nothing, for configurations without a memory backend.
func NilMemory() agent.Memory {
	return nilMemory{}
}

type nilMemory struct{}

func (nilMemory) AddSession(context.Context, agent.Session) error {
	return nil
}

func (nilMemory) Search(context.Context, string) (*agent.MemorySearchResponse, error) {
	return &agent.MemorySearchResponse{}, nil
}

var (
	_ agent.Memory = (*Adapter)(nil)
	_ agent.Memory = nilMemory{}
)
