package projection

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/employd-dev/employd/internal/session"
)

const (
	keyringService = "employd"
	keyringSlot    = "auth-storage"
)

// KeyringStore persists the projection in the OS keychain/credential
// manager under a single named slot.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed projection store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (k *KeyringStore) Save(p session.Projection) error {
	data, err := encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode session projection: %w", err)
	}
	if err := keyring.Set(keyringService, keyringSlot, string(data)); err != nil {
		return fmt.Errorf("failed to save session projection: %w", err)
	}
	return nil
}

func (k *KeyringStore) Load() (session.Projection, bool, error) {
	raw, err := keyring.Get(keyringService, keyringSlot)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return session.Projection{}, false, nil
		}
		return session.Projection{}, false, fmt.Errorf("failed to load session projection: %w", err)
	}
	p, ok := decode([]byte(raw))
	return p, ok, nil
}

func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(keyringService, keyringSlot); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already cleared
		}
		return fmt.Errorf("failed to clear session projection: %w", err)
	}
	return nil
}
