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

package ratelimit

import (
	"context"
	"time"
)

// RateLimiter evaluates and records usage against the configured rules.
// Implementations must be safe for concurrent use: the runtime wraps
// every model backend with one limiter.
type RateLimiter interface {
	// Check evaluates the rules without consuming quota. Use it ahead
	// of work too expensive to start when already over budget.
	Check(ctx context.Context, scope Scope, identifier string) (*CheckResult, error)

	// Record consumes quota after the fact, once actual token counts
	// are known.
	Record(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) error

	// CheckAndRecord evaluates and consumes atomically, closing the
	// race between a Check and a separate Record.
	CheckAndRecord(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) (*CheckResult, error)

	// GetUsage reports live consumption for every configured rule.
	GetUsage(ctx context.Context, scope Scope, identifier string) ([]Usage, error)

	// Reset zeroes an identifier's usage, for tests and manual quota
	// grants.
	Reset(ctx context.Context, scope Scope, identifier string) error

	// ResetExpired drops usage rows whose windows ended before the
	// given time; call it periodically to bound store growth.
	ResetExpired(ctx context.Context, before time.Time) error
}

// Store persists per-rule usage counters. Implementations must be safe
// for concurrent use; window rollover is the store's responsibility so
// the limiter never reads stale windows.
type Store interface {
	// GetUsage returns the live amount and window end for one rule. A
	// missing or expired row reads as zero in a fresh window.
	GetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow) (int64, time.Time, error)

	// IncrementUsage adds amount to one rule's live window, starting a
	// new window when the old one expired. Returns the new amount and
	// window end.
	IncrementUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64) (int64, time.Time, error)

	// SetUsage overwrites one rule's amount and window end, for resets
	// and rollovers.
	SetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64, windowEnd time.Time) error

	// DeleteUsage drops every rule's usage for an identifier.
	DeleteUsage(ctx context.Context, scope Scope, identifier string) error

	// DeleteExpired drops rows whose windows ended before the given
	// time.
	DeleteExpired(ctx context.Context, before time.Time) error

	// Close releases store resources.
	Close() error
}

// Compile-time interface checks.
var (
	_ RateLimiter = (*DefaultRateLimiter)(nil)
	_ Store       = (*MemoryStore)(nil)
	_ Store       = (*SQLStore)(nil)
)
