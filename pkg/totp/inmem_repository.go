package totp

import (
	"context"
	"sync"
)

// InMemSecretRepository keeps enrollments in memory for tests and demos.
type InMemSecretRepository struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewInMemSecretRepository() *InMemSecretRepository {
	return &InMemSecretRepository{secrets: make(map[string]string)}
}

func (r *InMemSecretRepository) StoreSecret(ctx context.Context, subjectUserID, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[subjectUserID] = secret
	return nil
}

func (r *InMemSecretRepository) GetSecret(ctx context.Context, subjectUserID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	secret, ok := r.secrets[subjectUserID]
	if !ok {
		return "", ErrSecretNotFound
	}
	return secret, nil
}
