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

// Package session manages conversation sessions and their event logs.
//
// A session is an append-only sequence of events plus a layered state
// store. State keys are scoped by prefix:
//
//   - no prefix: visible to this session only
//   - "app:":    shared by every session of the same app
//   - "user:":   shared by every session of the same user within an app
//   - "temp:":   visible during the current invocation, never persisted
//
// Appending an event applies its state delta to the scope each key's
// prefix selects, so replaying the deltas of all events in order always
// reproduces the current state snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomkit/loom/pkg/agent"
)

// Session represents a conversation session between user and agents.
type Session interface {
	// ID returns the unique session identifier.
	ID() string

	// AppName returns the application name.
	AppName() string

	// UserID returns the user identifier.
	UserID() string

	// State returns the session state store.
	State() agent.State

	// Events returns the session event history.
	Events() agent.Events

	// LastUpdateTime returns when the session was last modified.
	LastUpdateTime() time.Time
}

// Service manages session lifecycle and persistence.
type Service interface {
	// Get retrieves an existing session.
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)

	// Create creates a new session.
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// AppendEvent adds an event to the session history and applies its
	// state delta. The two effects are atomic with respect to other
	// appends on the same session.
	AppendEvent(ctx context.Context, session Session, event *agent.Event) error

	// List returns sessions matching the filter criteria.
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)

	// Delete removes a session. App- and user-scoped state survives the
	// deletion; only the session's own events and state are dropped.
	Delete(ctx context.Context, req *DeleteRequest) error
}

// GetRequest contains parameters for retrieving a session.
type GetRequest struct {
	AppName   string
	UserID    string
	SessionID string

	// NumRecentEvents, when positive, limits the returned history to
	// the N most recent events.
	NumRecentEvents int

	// After, when non-zero, drops events whose timestamp precedes it.
	After time.Time
}

// GetResponse contains the retrieved session.
type GetResponse struct {
	Session Session
}

// CreateRequest contains parameters for creating a session.
type CreateRequest struct {
	AppName   string
	UserID    string
	SessionID string // Optional - generated if empty

	// State seeds the initial state. Keys route to the scope their
	// prefix selects, same as event deltas.
	State map[string]any
}

// CreateResponse contains the created session.
type CreateResponse struct {
	Session Session
}

// ListRequest contains parameters for listing sessions.
type ListRequest struct {
	AppName   string
	UserID    string
	PageSize  int
	PageToken string
}

// ListResponse contains the list of sessions.
type ListResponse struct {
	Sessions      []Session
	NextPageToken string
}

// DeleteRequest contains parameters for deleting a session.
type DeleteRequest struct {
	AppName   string
	UserID    string
	SessionID string
}

// State prefixes for scoping state keys.
const (
	// KeyPrefixApp is for app-level state (shared across all users/sessions).
	KeyPrefixApp = "app:"

	// KeyPrefixUser is for user-level state (shared across sessions for a user).
	KeyPrefixUser = "user:"

	// KeyPrefixTemp is for temporary state (discarded after invocation).
	KeyPrefixTemp = "temp:"
)

// ErrStateKeyNotExist is returned when a state key doesn't exist.
var ErrStateKeyNotExist = errors.New("state key does not exist")

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidStateScope is returned when a state key carries a scope
// prefix other than app:, user: or temp:.
var ErrInvalidStateScope = errors.New("invalid state scope prefix")

// scope identifies the partition a state key belongs to.
type scope int

const (
	scopeSession scope = iota
	scopeApp
	scopeUser
	scopeTemp
	scopeInvalid
)

// scopeOf classifies a state key by its prefix. A key containing ":" with
// an unreserved prefix is invalid; writes to it must be rejected.
func scopeOf(key string) scope {
	switch {
	case strings.HasPrefix(key, KeyPrefixApp):
		return scopeApp
	case strings.HasPrefix(key, KeyPrefixUser):
		return scopeUser
	case strings.HasPrefix(key, KeyPrefixTemp):
		return scopeTemp
	case strings.Contains(key, ":"):
		return scopeInvalid
	default:
		return scopeSession
	}
}

// scopeStore holds the app- and user-level partitions a service shares
// across all of its sessions. Keys are stored with their prefix intact.
type scopeStore struct {
	mu   sync.RWMutex
	app  map[string]map[string]any // appName -> key -> value
	user map[string]map[string]any // appName + "\x00" + userID -> key -> value
}

func newScopeStore() *scopeStore {
	return &scopeStore{
		app:  make(map[string]map[string]any),
		user: make(map[string]map[string]any),
	}
}

func (s *scopeStore) partition(sc scope, appName, userID string) map[string]any {
	switch sc {
	case scopeApp:
		if s.app[appName] == nil {
			s.app[appName] = make(map[string]any)
		}
		return s.app[appName]
	case scopeUser:
		key := appName + "\x00" + userID
		if s.user[key] == nil {
			s.user[key] = make(map[string]any)
		}
		return s.user[key]
	}
	return nil
}

func (s *scopeStore) get(sc scope, appName, userID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.partition(sc, appName, userID)[key]
	return val, ok
}

func (s *scopeStore) set(sc scope, appName, userID, key string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partition(sc, appName, userID)[key] = val
}

func (s *scopeStore) delete(sc scope, appName, userID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partition(sc, appName, userID), key)
}

func (s *scopeStore) snapshot(appName, userID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any)
	for k, v := range s.partition(scopeApp, appName, userID) {
		out[k] = v
	}
	for k, v := range s.partition(scopeUser, appName, userID) {
		out[k] = v
	}
	return out
}

// memorySession is an in-memory Session implementation.
type memorySession struct {
	id             string
	appName        string
	userID         string
	state          *memoryState
	events         *memoryEvents
	lastUpdateTime time.Time
	mu             sync.RWMutex
}

func (s *memorySession) ID() string           { return s.id }
func (s *memorySession) AppName() string      { return s.appName }
func (s *memorySession) UserID() string       { return s.userID }
func (s *memorySession) State() agent.State   { return s.state }
func (s *memorySession) Events() agent.Events { return s.events }
func (s *memorySession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateTime
}

func (s *memorySession) appendEvent(event *agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole delta before applying any of it, so a rejected
	// append leaves neither the log nor the state touched.
	for key := range event.Actions.StateDelta {
		if scopeOf(key) == scopeInvalid {
			return fmt.Errorf("%w: %q", ErrInvalidStateScope, key)
		}
	}

	s.events.append(event)
	s.lastUpdateTime = time.Now()
	for key, val := range event.Actions.StateDelta {
		if val == nil {
			s.state.Delete(key)
			continue
		}
		s.state.Set(key, val)
	}
	return nil
}

// sessionView is a read-only projection of a session with a filtered
// event history, returned by Get when history filters are requested.
// State reads go to the live session.
type sessionView struct {
	*memorySession
	events *memoryEvents
}

func (v *sessionView) Events() agent.Events { return v.events }

// memoryState routes state keys to their scope's partition: session and
// temp keys live on the state itself, app and user keys in the service's
// shared scopeStore.
type memoryState struct {
	scopes  *scopeStore
	appName string
	userID  string

	mu      sync.RWMutex
	session map[string]any
	temp    map[string]any
}

func newMemoryState(scopes *scopeStore, appName, userID string, initial map[string]any) (*memoryState, error) {
	st := &memoryState{
		scopes:  scopes,
		appName: appName,
		userID:  userID,
		session: make(map[string]any),
		temp:    make(map[string]any),
	}
	for k, v := range initial {
		if err := st.Set(k, v); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *memoryState) Get(key string) (any, error) {
	switch sc := scopeOf(key); sc {
	case scopeApp, scopeUser:
		if val, ok := s.scopes.get(sc, s.appName, s.userID, key); ok {
			return val, nil
		}
		return nil, ErrStateKeyNotExist
	case scopeInvalid:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStateScope, key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.session
	if scopeOf(key) == scopeTemp {
		m = s.temp
	}
	val, ok := m[key]
	if !ok {
		return nil, ErrStateKeyNotExist
	}
	return val, nil
}

func (s *memoryState) Set(key string, val any) error {
	switch sc := scopeOf(key); sc {
	case scopeApp, scopeUser:
		s.scopes.set(sc, s.appName, s.userID, key, val)
		return nil
	case scopeTemp:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.temp[key] = val
		return nil
	case scopeInvalid:
		return fmt.Errorf("%w: %q", ErrInvalidStateScope, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session[key] = val
	return nil
}

func (s *memoryState) Delete(key string) error {
	switch sc := scopeOf(key); sc {
	case scopeApp, scopeUser:
		s.scopes.delete(sc, s.appName, s.userID, key)
		return nil
	case scopeTemp:
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.temp, key)
		return nil
	case scopeInvalid:
		return fmt.Errorf("%w: %q", ErrInvalidStateScope, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.session, key)
	return nil
}

// All yields every key visible to this session across all scopes.
func (s *memoryState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		shared := s.scopes.snapshot(s.appName, s.userID)

		s.mu.RLock()
		local := make(map[string]any, len(s.session)+len(s.temp))
		for k, v := range s.session {
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

// ClearTempKeys drops the temp: partition. The runner calls this after
// each invocation completes.
func (s *memoryState) ClearTempKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = make(map[string]any)
}

// memoryEvents is an in-memory Events implementation.
type memoryEvents struct {
	events []*agent.Event
	mu     sync.RWMutex
}

func (e *memoryEvents) All() iter.Seq[*agent.Event] {
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

func (e *memoryEvents) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events)
}

func (e *memoryEvents) At(i int) *agent.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.events) {
		return nil
	}
	return e.events[i]
}

func (e *memoryEvents) append(event *agent.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// filter returns the suffix of events passing the Get filters.
func (e *memoryEvents) filter(numRecent int, after time.Time) *memoryEvents {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := e.events
	if !after.IsZero() {
		i := 0
		for i < len(events) && events[i].Timestamp.Before(after) {
			i++
		}
		events = events[i:]
	}
	if numRecent > 0 && len(events) > numRecent {
		events = events[len(events)-numRecent:]
	}

	out := make([]*agent.Event, len(events))
	copy(out, events)
	return &memoryEvents{events: out}
}

// InMemoryService returns an in-memory session service.
// Useful for testing and development.
func InMemoryService() Service {
	return &inMemoryService{
		sessions: make(map[string]*memorySession),
		scopes:   newScopeStore(),
	}
}

type inMemoryService struct {
	sessions map[string]*memorySession
	scopes   *scopeStore
	mu       sync.RWMutex
}

func (s *inMemoryService) sessionKey(appName, userID, sessionID string) string {
	return appName + ":" + userID + ":" + sessionID
}

func (s *inMemoryService) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.sessionKey(req.AppName, req.UserID, req.SessionID)
	session, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if req.NumRecentEvents > 0 || !req.After.IsZero() {
		return &GetResponse{Session: &sessionView{
			memorySession: session,
			events:        session.events.filter(req.NumRecentEvents, req.After),
		}}, nil
	}

	return &GetResponse{Session: session}, nil
}

func (s *inMemoryService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	state, err := newMemoryState(s.scopes, req.AppName, req.UserID, req.State)
	if err != nil {
		return nil, err
	}

	session := &memorySession{
		id:             sessionID,
		appName:        req.AppName,
		userID:         req.UserID,
		state:          state,
		events:         &memoryEvents{},
		lastUpdateTime: time.Now(),
	}

	key := s.sessionKey(req.AppName, req.UserID, sessionID)
	s.sessions[key] = session

	return &CreateResponse{Session: session}, nil
}

func (s *inMemoryService) AppendEvent(ctx context.Context, session Session, event *agent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.sessionKey(session.AppName(), session.UserID(), session.ID())
	ms, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}

	return ms.appendEvent(event)
}

func (s *inMemoryService) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []Session
	prefix := req.AppName + ":" + req.UserID + ":"

	for key, session := range s.sessions {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			sessions = append(sessions, session)
		}
	}

	return &ListResponse{Sessions: sessions}, nil
}

func (s *inMemoryService) Delete(ctx context.Context, req *DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.sessionKey(req.AppName, req.UserID, req.SessionID)
	delete(s.sessions, key)
	return nil
}

var (
	_ Session      = (*memorySession)(nil)
	_ Session      = (*sessionView)(nil)
	_ agent.State  = (*memoryState)(nil)
	_ agent.Events = (*memoryEvents)(nil)
	_ Service      = (*inMemoryService)(nil)
)
