package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "pi_productivity"

// MotionAPIKey is the keyring entry holding the task API key.
const MotionAPIKey = "motion-api-key"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets in a keyring backend.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the system keyring, falling back to an
// encrypted file under ~/.config/pi_productivity/credentials on headless
// systems such as a Raspberry Pi without a desktop session.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KeychainBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/pi_productivity/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("pi_productivity-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// ResolveAPIKey returns configured when it is non-empty, otherwise the key
// stored in the keyring. A missing keyring entry yields "" and no error so
// the caller can run without remote sync.
func (s *Store) ResolveAPIKey(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	key, err := s.Get(MotionAPIKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return key, err
}
