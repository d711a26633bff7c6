package keyring

import (
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "tunnelguard"

	// UserTokenKey stores the account-level token used in generated configs.
	UserTokenKey = "user_token"

	// NodeTokenKey stores the node-level token used in generated configs.
	NodeTokenKey = "node_token"
)

var (
	ring     keyring.Keyring
	ringOnce sync.Once
	ringErr  error
)

// initKeyring initializes the keyring with fallback options
func initKeyring() (keyring.Keyring, error) {
	ringOnce.Do(func() {
		// On macOS, prioritize Keychain and don't include FileBackend fallback
		// to avoid the "No directory provided" error
		ring, ringErr = keyring.Open(keyring.Config{
			ServiceName: serviceName,
			// Allow multiple backends with priority order
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,      // macOS Keychain
				keyring.SecretServiceBackend, // Linux Secret Service (GNOME Keyring, KWallet)
				keyring.WinCredBackend,       // Windows Credential Manager
				keyring.PassBackend,          // Pass (password-store.org)
			},
		})
	})
	return ring, ringErr
}

// SetToken stores a token under the given key
func SetToken(key, token string) error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	return kr.Set(keyring.Item{
		Key:  key,
		Data: []byte(token),
	})
}

// GetToken retrieves the token stored under the given key
// Returns empty string if no token is stored
func GetToken(key string) (string, error) {
	kr, err := initKeyring()
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := kr.Get(key)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve token: %w", err)
	}
	return string(item.Data), nil
}

// DeleteToken removes the token stored under the given key
func DeleteToken(key string) error {
	kr, err := initKeyring()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	err = kr.Remove(key)
	if err == keyring.ErrKeyNotFound {
		return fmt.Errorf("no token stored for '%s'", key)
	}
	return err
}

// HasToken checks if a token is stored under the given key
func HasToken(key string) bool {
	kr, err := initKeyring()
	if err != nil {
		return false
	}

	_, err = kr.Get(key)
	return err == nil
}
