// Package credential stores the bearer token the real-time channel presents
// when it connects.
package credential

import (
	"errors"
	"strings"
	"sync"
)

// TokenKey is the fixed key the auth token is persisted under.
const TokenKey = "auth_token"

// ErrNoToken is returned when no usable token is stored.
var ErrNoToken = errors.New("no auth token stored")

// Source resolves the current bearer token.
type Source interface {
	Token() (string, error)
}

// Store is a Source that can also be written, used by login and logout flows.
type Store interface {
	Source
	SetToken(token string) error
	ClearToken() error
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if strings.TrimSpace(m.token) == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryStore) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearToken() error {
	return m.SetToken("")
}
