package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const credentialsFile = "credentials.json"

// ErrNoCredentials is returned by LoadCredentials when nothing is stored.
var ErrNoCredentials = errors.New("sdk: no stored credentials")

// Credentials is the locally persisted session.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
}

// IsExpired reports whether the token is past its expiry at now.
func (c *Credentials) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CredentialStore persists the current session between processes.
type CredentialStore interface {
	SaveCredentials(*Credentials) error
	// LoadCredentials returns ErrNoCredentials when nothing is stored.
	LoadCredentials() (*Credentials, error)
	DeleteCredentials() error
}

// FileCredentialStore keeps credentials in a JSON file readable only by
// the owner.
type FileCredentialStore struct {
	mu   sync.Mutex
	path string
}

var _ CredentialStore = (*FileCredentialStore)(nil)

// NewFileCredentialStore stores credentials under dir, creating it if needed.
func NewFileCredentialStore(dir string) (*FileCredentialStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileCredentialStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// Path returns the credentials file location.
func (s *FileCredentialStore) Path() string {
	return s.path
}

// SaveCredentials writes to a temp file and renames it into place.
func (s *FileCredentialStore) SaveCredentials(creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileCredentialStore) LoadCredentials() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

func (s *FileCredentialStore) DeleteCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// MemoryCredentialStore keeps credentials for the life of the process.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds *Credentials
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

func (s *MemoryCredentialStore) SaveCredentials(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *creds
	s.creds = &c
	return nil
}

func (s *MemoryCredentialStore) LoadCredentials() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	c := *s.creds
	return &c, nil
}

func (s *MemoryCredentialStore) DeleteCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
