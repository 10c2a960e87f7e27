// Package session persists chat turn state between calls, so a session can
// continue across CLI invocations or tool server requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raphaelgruber/fsechat/internal/chat"
)

var (
	// ErrNotFound indicates no state is stored for the session (or it expired).
	ErrNotFound = errors.New("session not found")

	// ErrConflict indicates the stored state was saved by someone else after
	// the caller loaded it.
	ErrConflict = errors.New("session changed concurrently")
)

// Store keeps the latest TurnState per session and remembers which session
// is current.
//
// Save only succeeds when state.Version matches the stored version (zero for
// a session that is not stored yet) and bumps state.Version on success. A
// stale state fails with ErrConflict and leaves the stored one untouched.
type Store interface {
	Load(ctx context.Context, sessionID string) (*chat.TurnState, error)
	Save(ctx context.Context, state *chat.TurnState) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
	SetCurrent(ctx context.Context, sessionID string) error
	Current(ctx context.Context) (string, error)
}

// MemoryStore is a process-local Store. Stored states are copies, so callers
// can keep mutating what they saved.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string][]byte
	versions map[string]int64
	current  string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*chat.TurnState, error) {
	m.mu.RLock()
	data, ok := m.states[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	return decode(data)
}

func (m *MemoryStore) Save(_ context.Context, state *chat.TurnState) error {
	data, next, err := encodeNext(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[state.SessionID] != state.Version {
		return fmt.Errorf("%s: %w", state.SessionID, ErrConflict)
	}
	m.states[state.SessionID] = data
	m.versions[state.SessionID] = next
	state.Version = next
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.states, sessionID)
	delete(m.versions, sessionID)
	if m.current == sessionID {
		m.current = ""
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) SetCurrent(_ context.Context, sessionID string) error {
	m.mu.Lock()
	m.current = sessionID
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Current(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == "" {
		return "", ErrNotFound
	}
	return m.current, nil
}

func encode(state *chat.TurnState) ([]byte, error) {
	if state == nil || state.SessionID == "" {
		return nil, errors.New("save session: session id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn state: %w", err)
	}
	return data, nil
}

// encodeNext encodes state as it will be stored: with its version bumped.
// state itself is left unchanged.
func encodeNext(state *chat.TurnState) ([]byte, int64, error) {
	if state == nil {
		return nil, 0, errors.New("save session: state required")
	}
	next := *state
	next.Version++
	data, err := encode(&next)
	if err != nil {
		return nil, 0, err
	}
	return data, next.Version, nil
}

// storedVersion reads only the version of an encoded state.
func storedVersion(data []byte) (int64, error) {
	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("failed to read stored session version: %w", err)
	}
	return v.Version, nil
}

func decode(data []byte) (*chat.TurnState, error) {
	var state chat.TurnState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turn state: %w", err)
	}
	return &state, nil
}
