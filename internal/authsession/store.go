package authsession

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoToken is returned by Store.Load when nothing is persisted.
var ErrNoToken = errors.New("authsession: no stored token")

// Store persists the raw auth token across process restarts.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// ---- file store ----

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// ConfigDir returns the per-user configuration directory of the client.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "speedcube")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "speedcube")
}

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct{ path string }

// NewFileStore stores the token at path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// DefaultFileStore stores the token as token.json in ConfigDir.
func DefaultFileStore() *FileStore {
	return NewFileStore(filepath.Join(ConfigDir(), "token.json"))
}

// Path is the location of the token file.
func (s *FileStore) Path() string { return s.path }

// Load reads the stored token. A missing file or empty value is ErrNoToken.
func (s *FileStore) Load() (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" {
		return "", ErrNoToken
	}
	return tf.AccessToken, nil
}

// Save overwrites the stored token.
func (s *FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

// Clear removes the stored token; clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ---- memory store ----

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// Load returns the token or ErrNoToken.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// Save replaces the token.
func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear forgets the token.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
