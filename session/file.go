package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileData struct {
	User  string `yaml:"user,omitempty"`
	Admin string `yaml:"admin,omitempty"`
}

func (d *fileData) get(realm Realm) string {
	if realm == Admin {
		return d.Admin
	}
	return d.User
}

func (d *fileData) set(realm Realm, token string) {
	if realm == Admin {
		d.Admin = token
		return
	}
	d.User = token
}

// FileStore persists tokens in a YAML file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Token(realm Realm) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read()
	if err != nil {
		return "", false
	}
	tok := d.get(realm)
	return tok, tok != ""
}

func (s *FileStore) SetToken(realm Realm, token string) error {
	if !realm.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRealm, realm)
	}
	return s.update(realm, token)
}

func (s *FileStore) Clear(realm Realm) error {
	return s.update(realm, "")
}

func (s *FileStore) update(realm Realm, token string) error {
	const op = "session.FileStore.update"

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.set(realm, token)

	if d.User == "" && d.Admin == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	bytes, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(s.path, bytes, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// a missing file reads as empty.
func (s *FileStore) read() (*fileData, error) {
	d := &fileData{}
	bytes, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bytes, d); err != nil {
		return nil, err
	}
	return d, nil
}

var _ Store = (*FileStore)(nil)
