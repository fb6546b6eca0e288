package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

var defaultBackends = []keyring.BackendType{
	keyring.KeychainBackend,
	keyring.SecretServiceBackend,
	keyring.WinCredBackend,
	keyring.PassBackend,
	keyring.FileBackend,
}

// KeyringOptions configures the system keyring lookup.
type KeyringOptions struct {
	Service  string
	FileDir  string
	Backends []string
}

// KeyringStore persists the token in the operating system keyring, falling
// back to an encrypted file.
type KeyringStore struct {
	ring keyring.Keyring
}

var _ Store = (*KeyringStore)(nil)

// OpenKeyring opens the keyring described by opts.
func OpenKeyring(opts KeyringOptions) (*KeyringStore, error) {
	backends := defaultBackends
	if len(opts.Backends) > 0 {
		backends = make([]keyring.BackendType, 0, len(opts.Backends))
		for _, b := range opts.Backends {
			backends = append(backends, keyring.BackendType(strings.TrimSpace(b)))
		}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              opts.Service,
		AllowedBackends:          backends,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(opts.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (k *KeyringStore) Token() (string, error) {
	item, err := k.ring.Get(TokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", TokenKey, err)
	}
	token := strings.TrimSpace(string(item.Data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (k *KeyringStore) SetToken(token string) error {
	err := k.ring.Set(keyring.Item{
		Key:   TokenKey,
		Data:  []byte(token),
		Label: "Nexus Réussite real-time token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey, err)
	}
	return nil
}

// ClearToken removes the token. Clearing an absent token succeeds.
func (k *KeyringStore) ClearToken() error {
	err := k.ring.Remove(TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey, err)
	}
	return nil
}
