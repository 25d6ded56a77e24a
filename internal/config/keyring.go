package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "crewdesk"

// SetSecret saves a secret to the OS keyring under its config key.
func SetSecret(key, value string) error {
	return keyring.Set(KeyringService, key, value)
}

// GetSecret retrieves a secret from the OS keyring.
// Returns empty string if not found or the keyring is unavailable.
func GetSecret(key string) string {
	val, err := keyring.Get(KeyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring. A missing secret is
// not an error.
func DeleteSecret(key string) error {
	if err := keyring.Delete(KeyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	// Try a write+delete cycle with a test key.
	testKey := "__crewdesk_test__"
	if err := keyring.Set(KeyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, testKey)
	return true
}
