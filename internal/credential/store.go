package credential

import (
	"context"
	"errors"
	"log"
	"strings"
)

// Key is the fixed entry the API key is stored under.
const Key = "elevenlabs_api_key"

var (
	ErrEmptyCredential = errors.New("credential must not be empty")
	ErrNotFound        = errors.New("credential not found")
)

// Backend is durable key-value storage. Get returns ErrNotFound for missing keys.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store keeps the single API credential. Storage faults degrade to
// "never set" and are only logged.
type Store struct {
	backend Backend
}

// NewStore wraps a backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the persisted credential, if any.
func (s *Store) Load(ctx context.Context) (string, bool) {
	value, err := s.backend.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[credential] load failed, treating as absent: %v", err)
		}
		return "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// Save persists the credential verbatim, overwriting any prior value.
func (s *Store) Save(ctx context.Context, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return ErrEmptyCredential
	}
	if err := s.backend.Put(ctx, Key, credential); err != nil {
		log.Printf("[credential] save failed: %v", err)
	}
	return nil
}

// Clear removes the credential.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, Key); err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("[credential] clear failed: %v", err)
	}
}
