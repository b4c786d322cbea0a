package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "employd"
)

// TokenStore persists the provider access token across process restarts,
// keyed by gateway host so several environments can be logged in at
// once. Mocked in tests.
type TokenStore interface {
	SaveToken(host, token string) error
	LoadToken(host string) (string, error)
	DeleteToken(host string) error
}

// ErrNoToken is returned by LoadToken when no token is stored for the
// host.
var ErrNoToken = errors.New("no stored token")

func tokenKey(host string) string {
	return fmt.Sprintf("token-%s", host)
}

// KeyringTokenStore stores tokens in the OS keychain/credential manager.
type KeyringTokenStore struct{}

func (k *KeyringTokenStore) SaveToken(host, token string) error {
	if err := keyring.Set(keyringService, tokenKey(host), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (k *KeyringTokenStore) LoadToken(host string) (string, error) {
	token, err := keyring.Get(keyringService, tokenKey(host))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (k *KeyringTokenStore) DeleteToken(host string) error {
	if err := keyring.Delete(keyringService, tokenKey(host)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps tokens in memory; used by tests and by
// processes that should not touch the keyring.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

func (m *MemoryTokenStore) SaveToken(host, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[host] = token
	return nil
}

func (m *MemoryTokenStore) LoadToken(host string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[host]
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

func (m *MemoryTokenStore) DeleteToken(host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, host)
	return nil
}
