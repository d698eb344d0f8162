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

// Package ratelimit enforces request- and token-budget limits on model
// usage, per session or per user, over stacked time windows.
//
// A limiter combines limit rules with a Store. The in-memory store
// suits a single process; the SQL store makes limits hold across
// restarts and replicas sharing one database. The runtime wraps every
// configured LLM with the limiter (model.WithRateLimit), so enforcement
// happens on the model-call path rather than in handlers.
//
//	store := ratelimit.NewMemoryStore()
//	limiter, err := ratelimit.NewRateLimiter(cfg, store)
//
//	result, err := limiter.CheckAndRecord(ctx, ratelimit.ScopeSession, sessionID, tokens, 1)
//	if !result.Allowed {
//	    // reject, retry after result.RetryAfter
//	}
//
// Configured as:
//
//	rate_limiting:
//	  enabled: true
//	  scope: "session"   # or "user"
//	  backend: "memory"  # or "sql"
//	  limits:
//	    - type: token    # token budget (cost control)
//	      window: day
//	      limit: 100000
//	    - type: count    # request count (throttling)
//	      window: minute
//	      limit: 60
//
// Windows stack: a request must clear every configured rule, so a
// per-minute burst cap and a per-month budget can coexist. Supported
// windows are minute, hour, day, week and month.
package ratelimit
