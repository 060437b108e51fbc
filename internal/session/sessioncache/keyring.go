package sessioncache

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "amanda-scrapping"
	keyringField   = "session-key"

	// envSessionKey lets headless hosts without a keyring daemon supply
	// the 32-byte key as hex.
	envSessionKey = "AMANDA_SESSION_KEY"
)

// loadKey returns the cache encryption key, generating and storing one
// in the OS keyring on first use.
func loadKey() ([]byte, error) {
	if keyHex := os.Getenv(envSessionKey); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envSessionKey, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("invalid %s: expected 32 bytes, got %d", envSessionKey, len(key))
		}
		return key, nil
	}

	stored, err := keyring.Get(keyringService, keyringField)
	if err == nil {
		key, err := hex.DecodeString(stored)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("corrupted key in keyring, delete it and re-login")
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := keyring.Set(keyringService, keyringField, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("failed to store session key in keyring: %w", err)
	}
	return key, nil
}
