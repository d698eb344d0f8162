package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLSessionService implements session.Service with a SQL backend,
// supporting PostgreSQL, MySQL, and SQLite via database/sql. Unlike the
// in-memory service in pkg/session, every appended event and state
// mutation is written through to the database immediately, so sessions
// survive process restarts.
type SQLSessionService struct {
	db      *sql.DB
	dialect string // "postgres", "mysql", or "sqlite"
	mu      sync.Mutex
}

const (
	createSQLSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_key VARCHAR(512) PRIMARY KEY,
    app_name VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    state_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_app_user ON sessions(app_name, user_id);
`

	createSQLiteEventsTableSQL = `
CREATE TABLE IF NOT EXISTS session_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_key VARCHAR(512) NOT NULL,
    sequence_num INTEGER NOT NULL,
    event_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_key) REFERENCES sessions(session_key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_session_key ON session_events(session_key, sequence_num);
`

	createPostgresEventsTableSQL = `
CREATE TABLE IF NOT EXISTS session_events (
    id SERIAL PRIMARY KEY,
    session_key VARCHAR(512) NOT NULL,
    sequence_num BIGINT NOT NULL,
    event_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_key) REFERENCES sessions(session_key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_session_key ON session_events(session_key, sequence_num);
`

	createMySQLEventsTableSQL = `
CREATE TABLE IF NOT EXISTS session_events (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    session_key VARCHAR(512) NOT NULL,
    sequence_num BIGINT NOT NULL,
    event_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_key) REFERENCES sessions(session_key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_session_key ON session_events(session_key, sequence_num);
`

	// scoped_state holds app: and user: keys, which outlive any single
	// session. partition_key is the app name for app scope and
	// app_name + "/" + user_id for user scope.
	createScopedStateTableSQL = `
CREATE TABLE IF NOT EXISTS scoped_state (
    scope VARCHAR(8) NOT NULL,
    partition_key VARCHAR(512) NOT NULL,
    state_key VARCHAR(255) NOT NULL,
    value_json TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (scope, partition_key, state_key)
);
`
)

// NewSQLSessionService opens the schema (creating tables on first use) and
// returns a session.Service backed by db. dialect must be one of
// "postgres", "mysql", or "sqlite" and determines both placeholder syntax
// and the events table's auto-increment flavor.
func NewSQLSessionService(db *sql.DB, dialect string) (*SQLSessionService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLSessionService{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLSessionService) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createSQLSessionsTableSQL); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	eventsSQL := createSQLiteEventsTableSQL
	switch s.dialect {
	case "postgres":
		eventsSQL = createPostgresEventsTableSQL
	case "mysql":
		eventsSQL = createMySQLEventsTableSQL
	}
	if _, err := s.db.ExecContext(ctx, eventsSQL); err != nil {
		return fmt.Errorf("failed to create session_events table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createScopedStateTableSQL); err != nil {
		return fmt.Errorf("failed to create scoped_state table: %w", err)
	}
	return nil
}

// placeholder returns the dialect's positional parameter marker for
// argument position n (1-indexed).
func (s *SQLSessionService) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + ":" + userID + ":" + sessionID
}

func (s *SQLSessionService) Get(ctx context.Context, req *session.GetRequest) (*session.GetResponse, error) {
	key := sessionKey(req.AppName, req.UserID, req.SessionID)

	var stateJSON string
	var updatedAt time.Time
	query := fmt.Sprintf("SELECT state_json, updated_at FROM sessions WHERE session_key = %s", s.placeholder(1))
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&stateJSON, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	stateData, err := unmarshalState(stateJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}

	events, err := s.loadEvents(ctx, key, req.NumRecentEvents, req.After)
	if err != nil {
		return nil, fmt.Errorf("failed to load session events: %w", err)
	}

	sess := &sqlSession{
		svc:            s,
		key:            key,
		id:             req.SessionID,
		appName:        req.AppName,
		userID:         req.UserID,
		state:          newSQLState(s, key, req.AppName, req.UserID, stateData),
		events:         &sqlEvents{events: events},
		lastUpdateTime: updatedAt,
	}
	return &session.GetResponse{Session: sess}, nil
}

func (s *SQLSessionService) Create(ctx context.Context, req *session.CreateRequest) (*session.CreateResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := sessionKey(req.AppName, req.UserID, sessionID)

	for k := range req.State {
		if invalidScope(k) {
			return nil, fmt.Errorf("%w: %q", session.ErrInvalidStateScope, k)
		}
	}

	// Only session-scoped keys live in state_json; app:/user: keys go to
	// the shared scoped_state table below and temp: keys stay in memory.
	stateJSON, err := marshalState(sessionOnly(req.State))
	if err != nil {
		return nil, fmt.Errorf("failed to encode initial state: %w", err)
	}

	now := time.Now()
	query := fmt.Sprintf(
		"INSERT INTO sessions (session_key, app_name, user_id, session_id, state_json, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7),
	)
	if _, err := s.db.ExecContext(ctx, query, key, req.AppName, req.UserID, sessionID, stateJSON, now, now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess := &sqlSession{
		svc:            s,
		key:            key,
		id:             sessionID,
		appName:        req.AppName,
		userID:         req.UserID,
		state:          newSQLState(s, key, req.AppName, req.UserID, sessionOnly(req.State)),
		events:         &sqlEvents{},
		lastUpdateTime: now,
	}

	for k, v := range req.State {
		if strings.HasPrefix(k, session.KeyPrefixApp) ||
			strings.HasPrefix(k, session.KeyPrefixUser) ||
			strings.HasPrefix(k, session.KeyPrefixTemp) {
			if err := sess.state.Set(k, v); err != nil {
				return nil, fmt.Errorf("failed to seed scoped state key %q: %w", k, err)
			}
		}
	}

	return &session.CreateResponse{Session: sess}, nil
}

func (s *SQLSessionService) AppendEvent(ctx context.Context, sess session.Session, event *agent.Event) error {
	key := sessionKey(sess.AppName(), sess.UserID(), sess.ID())

	// Validate the delta before touching the log so a rejected append
	// leaves neither the event row nor the state behind.
	for k := range event.Actions.StateDelta {
		if invalidScope(k) {
			return fmt.Errorf("%w: %q", session.ErrInvalidStateScope, k)
		}
	}

	eventJSON, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSequenceNum(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get next sequence number: %w", err)
	}

	now := time.Now()
	insertQuery := fmt.Sprintf(
		"INSERT INTO session_events (session_key, sequence_num, event_json, created_at) VALUES (%s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
	)
	if _, err := s.db.ExecContext(ctx, insertQuery, key, seq, eventJSON, now); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	for k, v := range event.Actions.StateDelta {
		if err := sess.State().Set(k, v); err != nil {
			return fmt.Errorf("failed to apply state delta key %q: %w", k, err)
		}
	}

	if local, ok := sess.(*sqlSession); ok {
		local.events.append(event)
		local.mu.Lock()
		local.lastUpdateTime = now
		local.mu.Unlock()
	}

	updateQuery := fmt.Sprintf("UPDATE sessions SET updated_at = %s WHERE session_key = %s", s.placeholder(1), s.placeholder(2))
	_, err = s.db.ExecContext(ctx, updateQuery, now, key)
	return err
}

func (s *SQLSessionService) List(ctx context.Context, req *session.ListRequest) (*session.ListResponse, error) {
	query := fmt.Sprintf(
		"SELECT session_id, state_json, updated_at FROM sessions WHERE app_name = %s AND user_id = %s ORDER BY updated_at DESC",
		s.placeholder(1), s.placeholder(2),
	)
	rows, err := s.db.QueryContext(ctx, query, req.AppName, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		var sessionID, stateJSON string
		var updatedAt time.Time
		if err := rows.Scan(&sessionID, &stateJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		stateData, err := unmarshalState(stateJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode session state: %w", err)
		}

		key := sessionKey(req.AppName, req.UserID, sessionID)
		sessions = append(sessions, &sqlSession{
			svc:            s,
			key:            key,
			id:             sessionID,
			appName:        req.AppName,
			userID:         req.UserID,
			state:          newSQLState(s, key, req.AppName, req.UserID, stateData),
			events:         &sqlEvents{},
			lastUpdateTime: updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return &session.ListResponse{Sessions: sessions}, nil
}

func (s *SQLSessionService) Delete(ctx context.Context, req *session.DeleteRequest) error {
	key := sessionKey(req.AppName, req.UserID, req.SessionID)

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM session_events WHERE session_key = %s", s.placeholder(1)), key); err != nil {
		return fmt.Errorf("failed to delete session events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM sessions WHERE session_key = %s", s.placeholder(1)), key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLSessionService) Close() error {
	return s.db.Close()
}

func (s *SQLSessionService) nextSequenceNum(ctx context.Context, key string) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_events WHERE session_key = %s", s.placeholder(1))
	var seq int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&seq)
	return seq, err
}

func (s *SQLSessionService) loadEvents(ctx context.Context, key string, limit int, after time.Time) ([]*agent.Event, error) {
	query := fmt.Sprintf("SELECT event_json, created_at FROM session_events WHERE session_key = %s", s.placeholder(1))
	args := []any{key}

	if !after.IsZero() {
		query += fmt.Sprintf(" AND created_at >= %s", s.placeholder(len(args)+1))
		args = append(args, after)
	}
	query += " ORDER BY sequence_num ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*agent.Event
	for rows.Next() {
		var eventJSON string
		var createdAt time.Time
		if err := rows.Scan(&eventJSON, &createdAt); err != nil {
			return nil, err
		}
		event, err := unmarshalEvent(eventJSON)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (s *SQLSessionService) setStateKey(key, field string, value any) error {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadState(ctx, key)
	if err != nil {
		return err
	}
	current[field] = value
	return s.saveState(ctx, key, current)
}

func (s *SQLSessionService) deleteStateKey(key, field string) error {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadState(ctx, key)
	if err != nil {
		return err
	}
	delete(current, field)
	return s.saveState(ctx, key, current)
}

// getScopedKey reads one app:/user: key from the scoped_state table.
func (s *SQLSessionService) getScopedKey(scope, partition, key string) (any, error) {
	ctx := context.Background()
	query := fmt.Sprintf(
		"SELECT value_json FROM scoped_state WHERE scope = %s AND partition_key = %s AND state_key = %s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3),
	)
	var valueJSON string
	if err := s.db.QueryRowContext(ctx, query, scope, partition, key).Scan(&valueJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrStateKeyNotExist
		}
		return nil, fmt.Errorf("failed to load scoped state: %w", err)
	}
	var value any
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return nil, fmt.Errorf("failed to decode scoped state: %w", err)
	}
	return value, nil
}

// setScopedKey upserts one app:/user: key. The delete-then-insert pair
// runs under the service mutex, which keeps it atomic across the three
// supported dialects without dialect-specific upsert syntax.
func (s *SQLSessionService) setScopedKey(scope, partition, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode scoped state: %w", err)
	}

	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	delQuery := fmt.Sprintf(
		"DELETE FROM scoped_state WHERE scope = %s AND partition_key = %s AND state_key = %s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3),
	)
	if _, err := s.db.ExecContext(ctx, delQuery, scope, partition, key); err != nil {
		return fmt.Errorf("failed to replace scoped state: %w", err)
	}

	insQuery := fmt.Sprintf(
		"INSERT INTO scoped_state (scope, partition_key, state_key, value_json, updated_at) VALUES (%s, %s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
	)
	if _, err := s.db.ExecContext(ctx, insQuery, scope, partition, key, string(valueJSON), time.Now()); err != nil {
		return fmt.Errorf("failed to write scoped state: %w", err)
	}
	return nil
}

func (s *SQLSessionService) deleteScopedKey(scope, partition, key string) error {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(
		"DELETE FROM scoped_state WHERE scope = %s AND partition_key = %s AND state_key = %s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3),
	)
	_, err := s.db.ExecContext(ctx, query, scope, partition, key)
	return err
}

// loadScoped returns every app: key of the app plus every user: key of
// the (app, user) pair, with their prefixed key names intact.
func (s *SQLSessionService) loadScoped(appName, userID string) (map[string]any, error) {
	ctx := context.Background()
	query := fmt.Sprintf(
		"SELECT state_key, value_json FROM scoped_state WHERE (scope = 'app' AND partition_key = %s) OR (scope = 'user' AND partition_key = %s)",
		s.placeholder(1), s.placeholder(2),
	)
	rows, err := s.db.QueryContext(ctx, query, appName, appName+"/"+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoped state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, valueJSON string
		if err := rows.Scan(&key, &valueJSON); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("failed to decode scoped state key %q: %w", key, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *SQLSessionService) loadState(ctx context.Context, key string) (map[string]any, error) {
	var stateJSON string
	query := fmt.Sprintf("SELECT state_json FROM sessions WHERE session_key = %s", s.placeholder(1))
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&stateJSON); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return unmarshalState(stateJSON)
}

func (s *SQLSessionService) saveState(ctx context.Context, key string, state map[string]any) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	query := fmt.Sprintf("UPDATE sessions SET state_json = %s, updated_at = %s WHERE session_key = %s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	_, err = s.db.ExecContext(ctx, query, stateJSON, time.Now(), key)
	return err
}

func marshalState(state map[string]any) (string, error) {
	if state == nil {
		state = make(map[string]any)
	}
	b, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalState(stateJSON string) (map[string]any, error) {
	state := make(map[string]any)
	if stateJSON == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, err
	}
	return state, nil
}

// sessionOnly filters a state map down to its session-scoped keys.
func sessionOnly(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !strings.Contains(k, ":") {
			out[k] = v
		}
	}
	return out
}

// sqlSession is a session.Session backed by SQLSessionService, with state
// writes applied through to the database immediately and events loaded
// once at Get time. Sessions returned by Create and List start with no
// events loaded.
type sqlSession struct {
	svc *SQLSessionService
	key string

	id      string
	appName string
	userID  string

	state  *sqlState
	events *sqlEvents

	mu             sync.RWMutex
	lastUpdateTime time.Time
}

func (s *sqlSession) ID() string           { return s.id }
func (s *sqlSession) AppName() string      { return s.appName }
func (s *sqlSession) UserID() string       { return s.userID }
func (s *sqlSession) State() agent.State   { return s.state }
func (s *sqlSession) Events() agent.Events { return s.events }
func (s *sqlSession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

// sqlState is a write-through agent.State backed by the sessions table's
// state_json column for session-scoped keys and the scoped_state table
// for app: and user: keys. temp: keys live only in process memory and
// are never written to the database. The in-memory cache serves reads
// for session-scoped keys; every durable Set/Delete persists before
// returning.
type sqlState struct {
	svc     *SQLSessionService
	key     string
	appName string
	userID  string

	mu   sync.RWMutex
	data map[string]any
	temp map[string]any
}

func newSQLState(svc *SQLSessionService, key, appName, userID string, initial map[string]any) *sqlState {
	if initial == nil {
		initial = make(map[string]any)
	}
	return &sqlState{
		svc:     svc,
		key:     key,
		appName: appName,
		userID:  userID,
		data:    initial,
		temp:    make(map[string]any),
	}
}

// scopePartition maps a state key to its scoped_state row coordinates.
// ok is false for session- and temp-scoped keys, which are not stored in
// the scoped_state table.
func (s *sqlState) scopePartition(key string) (scope, partition string, ok bool) {
	switch {
	case strings.HasPrefix(key, session.KeyPrefixApp):
		return "app", s.appName, true
	case strings.HasPrefix(key, session.KeyPrefixUser):
		return "user", s.appName + "/" + s.userID, true
	}
	return "", "", false
}

// invalidScope reports a key carrying an unreserved "<prefix>:" scope.
func invalidScope(key string) bool {
	if !strings.Contains(key, ":") {
		return false
	}
	return !strings.HasPrefix(key, session.KeyPrefixApp) &&
		!strings.HasPrefix(key, session.KeyPrefixUser) &&
		!strings.HasPrefix(key, session.KeyPrefixTemp)
}

func (s *sqlState) Get(key string) (any, error) {
	if invalidScope(key) {
		return nil, fmt.Errorf("%w: %q", session.ErrInvalidStateScope, key)
	}
	if scope, partition, ok := s.scopePartition(key); ok {
		return s.svc.getScopedKey(scope, partition, key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.data
	if strings.HasPrefix(key, session.KeyPrefixTemp) {
		m = s.temp
	}
	val, ok := m[key]
	if !ok {
		return nil, session.ErrStateKeyNotExist
	}
	return val, nil
}

func (s *sqlState) Set(key string, value any) error {
	if invalidScope(key) {
		return fmt.Errorf("%w: %q", session.ErrInvalidStateScope, key)
	}
	if scope, partition, ok := s.scopePartition(key); ok {
		return s.svc.setScopedKey(scope, partition, key, value)
	}
	if strings.HasPrefix(key, session.KeyPrefixTemp) {
		s.mu.Lock()
		s.temp[key] = value
		s.mu.Unlock()
		return nil
	}

	if err := s.svc.setStateKey(s.key, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *sqlState) Delete(key string) error {
	if invalidScope(key) {
		return fmt.Errorf("%w: %q", session.ErrInvalidStateScope, key)
	}
	if scope, partition, ok := s.scopePartition(key); ok {
		return s.svc.deleteScopedKey(scope, partition, key)
	}
	if strings.HasPrefix(key, session.KeyPrefixTemp) {
		s.mu.Lock()
		delete(s.temp, key)
		s.mu.Unlock()
		return nil
	}

	if err := s.svc.deleteStateKey(s.key, key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *sqlState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		shared, err := s.svc.loadScoped(s.appName, s.userID)
		if err != nil {
			shared = nil
		}

		s.mu.RLock()
		local := make(map[string]any, len(s.data)+len(s.temp))
		for k, v := range s.data {
			local[k] = v
		}
		for k, v := range s.temp {
			local[k] = v
		}
		s.mu.RUnlock()

		for k, v := range local {
			if !yield(k, v) {
				return
			}
		}
		for k, v := range shared {
			if !yield(k, v) {
				return
			}
		}
	}
}

// ClearTempKeys drops the in-process temp: partition. Nothing temp-scoped
// ever reaches the database, so there is no durable cleanup to do.
func (s *sqlState) ClearTempKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = make(map[string]any)
}

// sqlEvents is an in-memory snapshot of a session's event history, loaded
// once when the session is fetched and appended to as new events persist.
type sqlEvents struct {
	mu     sync.RWMutex
	events []*agent.Event
}

func (e *sqlEvents) All() iter.Seq[*agent.Event] {
	return func(yield func(*agent.Event) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for _, ev := range e.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (e *sqlEvents) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}

func (e *sqlEvents) At(i int) *agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *sqlEvents) append(event *agent.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// storedPart is the durable encoding of an a2a.Part. Only text and data
// parts are persisted: file parts can carry arbitrary binary payloads
// better suited to a dedicated artifact store, so they are dropped on
// persist (the live in-process event still carries them for the
// current invocation).
type storedPart struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

type storedMessage struct {
	Role  a2a.MessageRole `json:"role"`
	Parts []storedPart    `json:"parts,omitempty"`
}

// storedEvent is the JSON encoding of agent.Event used for persistence.
// It excludes OnPersisted, which is an in-process synchronization hook
// with no durable meaning.
type storedEvent struct {
	ID                 string                  `json:"id"`
	Timestamp          time.Time               `json:"timestamp"`
	InvocationID       string                  `json:"invocation_id"`
	Branch             string                  `json:"branch,omitempty"`
	Author             string                  `json:"author"`
	Message            *storedMessage          `json:"message,omitempty"`
	Actions            agent.EventActions      `json:"actions"`
	LongRunningToolIDs []string                `json:"long_running_tool_ids,omitempty"`
	Partial            bool                    `json:"partial,omitempty"`
	TurnComplete       bool                    `json:"turn_complete,omitempty"`
	Interrupted        bool                    `json:"interrupted,omitempty"`
	ErrorCode          string                  `json:"error_code,omitempty"`
	ErrorMessage       string                  `json:"error_message,omitempty"`
	Thinking           *agent.ThinkingState    `json:"thinking,omitempty"`
	ToolCalls          []agent.ToolCallState   `json:"tool_calls,omitempty"`
	ToolResults        []agent.ToolResultState `json:"tool_results,omitempty"`
	CustomMetadata     map[string]any          `json:"custom_metadata,omitempty"`
}

func marshalEvent(event *agent.Event) (string, error) {
	se := &storedEvent{
		ID:                 event.ID,
		Timestamp:          event.Timestamp,
		InvocationID:       event.InvocationID,
		Branch:             event.Branch,
		Author:             event.Author,
		Actions:            event.Actions,
		LongRunningToolIDs: event.LongRunningToolIDs,
		Partial:            event.Partial,
		TurnComplete:       event.TurnComplete,
		Interrupted:        event.Interrupted,
		ErrorCode:          event.ErrorCode,
		ErrorMessage:       event.ErrorMessage,
		Thinking:           event.Thinking,
		ToolCalls:          event.ToolCalls,
		ToolResults:        event.ToolResults,
		CustomMetadata:     event.CustomMetadata,
	}
	if event.Message != nil {
		se.Message = &storedMessage{Role: event.Message.Role, Parts: encodeParts(event.Message.Parts)}
	}

	b, err := json.Marshal(se)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEvent(eventJSON string) (*agent.Event, error) {
	var se storedEvent
	if err := json.Unmarshal([]byte(eventJSON), &se); err != nil {
		return nil, err
	}

	event := &agent.Event{
		ID:                 se.ID,
		Timestamp:          se.Timestamp,
		InvocationID:       se.InvocationID,
		Branch:             se.Branch,
		Author:             se.Author,
		Actions:            se.Actions,
		LongRunningToolIDs: se.LongRunningToolIDs,
		Partial:            se.Partial,
		TurnComplete:       se.TurnComplete,
		Interrupted:        se.Interrupted,
		ErrorCode:          se.ErrorCode,
		ErrorMessage:       se.ErrorMessage,
		Thinking:           se.Thinking,
		ToolCalls:          se.ToolCalls,
		ToolResults:        se.ToolResults,
		CustomMetadata:     se.CustomMetadata,
	}
	if se.Message != nil {
		event.Message = a2a.NewMessage(se.Message.Role, decodeParts(se.Message.Parts)...)
	}
	return event, nil
}

func encodeParts(parts []a2a.Part) []storedPart {
	out := make([]storedPart, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case a2a.TextPart:
			out = append(out, storedPart{Kind: "text", Text: p.Text})
		case a2a.DataPart:
			out = append(out, storedPart{Kind: "data", Data: p.Data})
		}
	}
	return out
}

func decodeParts(parts []storedPart) []a2a.Part {
	out := make([]a2a.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case "text":
			out = append(out, a2a.TextPart{Text: p.Text})
		case "data":
			out = append(out, a2a.DataPart{Data: p.Data})
		}
	}
	return out
}

var (
	_ session.Service = (*SQLSessionService)(nil)
	_ session.Session = (*sqlSession)(nil)
	_ agent.State     = (*sqlState)(nil)
	_ agent.Events    = (*sqlEvents)(nil)
)
