package inspirehub

import (
	"context"
	"sync"
)

// CredentialKey is the fixed key the credential record is persisted under.
const CredentialKey = "user"

// Credential is the access/refresh token pair of an authenticated user,
// together with the profile fields shown while logged in.
type Credential struct {
	SubjectID      string `json:"_id"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken,omitempty"`
}

// Valid reports whether the credential can be used to authorize requests.
func (c *Credential) Valid() bool {
	return c != nil && c.SubjectID != "" && c.AccessToken != ""
}

// CredentialStore persists the active credential across process restarts.
// Load returns nil, nil when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred Credential) error
	Delete(ctx context.Context) error
}

// MemoryStore is a CredentialStore kept in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemoryStore returns an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		return nil, nil
	}
	cred := *s.cred
	return &cred, nil
}

func (s *MemoryStore) Save(_ context.Context, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = &cred
	return nil
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil
	return nil
}
