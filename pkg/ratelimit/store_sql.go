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
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// rate_limits keeps one row per (scope, identifier, limit type, window).
// time_window is the window name, not its end; window_end carries the
// expiry instant.
const createRateLimitTableSQL = `
CREATE TABLE IF NOT EXISTS rate_limits (
    scope VARCHAR(50) NOT NULL,
    identifier VARCHAR(255) NOT NULL,
    limit_type VARCHAR(50) NOT NULL,
    time_window VARCHAR(50) NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    window_end TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (scope, identifier, limit_type, time_window)
);

CREATE INDEX IF NOT EXISTS idx_rate_limits_window_end ON rate_limits(window_end);
CREATE INDEX IF NOT EXISTS idx_rate_limits_scope_identifier ON rate_limits(scope, identifier);
`

// SQLStore persists rate-limit usage in a relational database so limits
// hold across process restarts and multiple serving instances sharing
// one database. Supported dialects: "postgres", "mysql", "sqlite".
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates the schema on first use and returns a Store
// backed by db.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, createRateLimitTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create rate_limits table: %w", err)
	}
	return s, nil
}

// rebind converts "?" placeholders to the dialect's marker syntax.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetUsage returns the live amount for one limit, treating a missing or
// expired row as zero usage in a fresh window.
func (s *SQLStore) GetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow) (int64, time.Time, error) {
	query := s.rebind(`SELECT amount, window_end FROM rate_limits
		WHERE scope = ? AND identifier = ? AND limit_type = ? AND time_window = ?`)

	var amount int64
	var windowEnd time.Time
	err := s.db.QueryRowContext(ctx, query,
		string(scope), identifier, string(limitType), string(window)).Scan(&amount, &windowEnd)

	now := time.Now()
	switch {
	case err == sql.ErrNoRows:
		return 0, now.Add(window.Duration()), nil
	case err != nil:
		return 0, time.Time{}, fmt.Errorf("failed to query usage: %w", err)
	case windowEnd.Before(now):
		return 0, now.Add(window.Duration()), nil
	}
	return amount, windowEnd, nil
}

// IncrementUsage adds amount to the limit's live window, rolling the
// window over if it expired. The update-then-insert sequence tolerates
// racing writers: a lost insert race retries as an update.
func (s *SQLStore) IncrementUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64) (int64, time.Time, error) {
	now := time.Now()

	update := s.rebind(`UPDATE rate_limits
		SET amount = amount + ?, updated_at = ?
		WHERE scope = ? AND identifier = ? AND limit_type = ? AND time_window = ? AND window_end > ?`)
	result, err := s.db.ExecContext(ctx, update,
		amount, now, string(scope), identifier, string(limitType), string(window), now)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to update usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return s.GetUsage(ctx, scope, identifier, limitType, window)
	}

	// No live row: start a new window. Another writer may beat us to the
	// insert, in which case the retry lands on its row via the update path.
	windowEnd := now.Add(window.Duration())
	if err := s.SetUsage(ctx, scope, identifier, limitType, window, amount, windowEnd); err != nil {
		return s.IncrementUsage(ctx, scope, identifier, limitType, window, amount)
	}
	return amount, windowEnd, nil
}

// SetUsage upserts one limit row.
func (s *SQLStore) SetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64, windowEnd time.Time) error {
	now := time.Now()

	var query string
	switch s.dialect {
	case "postgres":
		query = s.rebind(`INSERT INTO rate_limits (scope, identifier, limit_type, time_window, amount, window_end, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (scope, identifier, limit_type, time_window)
			DO UPDATE SET amount = EXCLUDED.amount, window_end = EXCLUDED.window_end, updated_at = EXCLUDED.updated_at`)
	case "mysql":
		query = `INSERT INTO rate_limits (scope, identifier, limit_type, time_window, amount, window_end, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE amount = VALUES(amount), window_end = VALUES(window_end), updated_at = VALUES(updated_at)`
	default: // sqlite
		query = `INSERT OR REPLACE INTO rate_limits (scope, identifier, limit_type, time_window, amount, window_end, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := s.db.ExecContext(ctx, query,
		string(scope), identifier, string(limitType), string(window), amount, windowEnd, now, now)
	if err != nil {
		return fmt.Errorf("failed to set usage: %w", err)
	}
	return nil
}

// DeleteUsage drops all limit rows for an identifier.
func (s *SQLStore) DeleteUsage(ctx context.Context, scope Scope, identifier string) error {
	query := s.rebind(`DELETE FROM rate_limits WHERE scope = ? AND identifier = ?`)
	if _, err := s.db.ExecContext(ctx, query, string(scope), identifier); err != nil {
		return fmt.Errorf("failed to delete usage: %w", err)
	}
	return nil
}

// DeleteExpired drops rows whose window ended before the given time.
func (s *SQLStore) DeleteExpired(ctx context.Context, before time.Time) error {
	query := s.rebind(`DELETE FROM rate_limits WHERE window_end < ?`)
	if _, err := s.db.ExecContext(ctx, query, before); err != nil {
		return fmt.Errorf("failed to delete expired records: %w", err)
	}
	return nil
}

// Close is a no-op: the database connection is owned by the shared pool,
// not this store.
func (s *SQLStore) Close() error {
	return nil
}

var _ Store = (*SQLStore)(nil)
