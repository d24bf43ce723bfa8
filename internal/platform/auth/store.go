package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoSession is returned by TokenStore.Load when nobody is logged in.
var ErrNoSession = errors.New("no stored session")

const (
	keyToken = "token"
	keyRole  = "role"
)

// legacyKeys were written by older clients and are cleared on logout.
var legacyKeys = []string{"authToken", "jwt"}

// TokenStore persists the session between CLI invocations.
type TokenStore interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

func sessionFromValues(values map[string]string) (*Session, error) {
	if values[keyToken] == "" {
		return nil, ErrNoSession
	}
	return NewSession(values[keyToken], values[keyRole])
}

func clearValues(values map[string]string) {
	delete(values, keyToken)
	delete(values, keyRole)
	for _, k := range legacyKeys {
		delete(values, k)
	}
}

// FileTokenStore keeps the session as a flat JSON object readable only by
// the owner.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (f *FileTokenStore) Path() string { return f.path }

func (f *FileTokenStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return values, nil
}

func (f *FileTokenStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f *FileTokenStore) Load() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return nil, err
	}
	return sessionFromValues(values)
}

func (f *FileTokenStore) Save(s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[keyToken] = s.Token()
	values[keyRole] = string(s.Role())
	return f.write(values)
}

// Clear removes the token, the role and any legacy token keys. Unrelated
// keys are preserved; the file is removed once nothing is left.
func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	clearValues(values)
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return f.write(values)
}

// MemoryTokenStore is a process-local TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{values: map[string]string{}}
}

// Set writes a raw key, for seeding legacy entries.
func (m *MemoryTokenStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryTokenStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryTokenStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sessionFromValues(m.values)
}

func (m *MemoryTokenStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[keyToken] = s.Token()
	m.values[keyRole] = string(s.Role())
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clearValues(m.values)
	return nil
}
