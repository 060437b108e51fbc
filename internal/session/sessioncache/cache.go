// Package sessioncache persists acquired sessions between runs so that
// a valid login is reused instead of repeated. Cookie values are stored
// AES-GCM encrypted under a key held in the OS keyring.
package sessioncache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// cacheEntry is the on-disk representation. Cookie values inside
// Cookies are ciphertext.
type cacheEntry struct {
	Cookies    []session.Cookie
	UserAgent  string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	Source     string
}

type Cache struct {
	path   string
	key    []byte
	logger *observability.Logger
}

// New opens a session cache at path. The encryption key comes from the
// OS keyring (or AMANDA_SESSION_KEY), generated on first use.
func New(path string, logger *observability.Logger) (*Cache, error) {
	key, err := loadKey()
	if err != nil {
		return nil, err
	}
	return &Cache{path: path, key: key, logger: logger}, nil
}

// NewWithKey opens a cache with an explicit key. Used in tests.
func NewWithKey(path string, key []byte, logger *observability.Logger) *Cache {
	return &Cache{path: path, key: key, logger: logger}
}

// Store writes the session to disk atomically, file mode 0600.
func (c *Cache) Store(s *session.Session) error {
	entry := cacheEntry{
		Cookies:    make([]session.Cookie, len(s.Cookies)),
		UserAgent:  s.UserAgent,
		AcquiredAt: s.AcquiredAt,
		ExpiresAt:  s.ExpiresAt,
		Source:     s.Source,
	}

	for i, ck := range s.Cookies {
		encrypted, err := encryptValue(ck.Value, c.key)
		if err != nil {
			return fmt.Errorf("failed to encrypt cookie value: %w", err)
		}
		ck.Value = string(encrypted)
		entry.Cookies[i] = ck
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&entry); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace session cache: %w", err)
	}
	return nil
}

// Load reads the cached session. Returns (nil, nil) when there is no
// cache or the cached session has expired. A cache that fails to
// decrypt is logged, removed and treated as absent, so a changed key
// forces a fresh login instead of a hard failure.
func (c *Cache) Load(now time.Time) (*session.Session, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}

	var entry cacheEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		c.logger.Warn("Discarding session cache that failed to decode", "path", c.path, "error", err.Error())
		_ = os.Remove(c.path)
		return nil, nil
	}

	if !now.Before(entry.ExpiresAt) {
		c.logger.Info("Cached session has expired", "expired_at", entry.ExpiresAt)
		return nil, nil
	}

	cookies := make([]session.Cookie, len(entry.Cookies))
	for i, ck := range entry.Cookies {
		value, err := decryptValue([]byte(ck.Value), c.key)
		if err != nil {
			c.logger.Warn("Discarding session cache that failed to decrypt, the encryption key may have changed", "path", c.path)
			_ = os.Remove(c.path)
			return nil, nil
		}
		ck.Value = value
		cookies[i] = ck
	}

	return &session.Session{
		Cookies:    cookies,
		Header:     session.BuildHeader(cookies),
		UserAgent:  entry.UserAgent,
		AcquiredAt: entry.AcquiredAt,
		ExpiresAt:  entry.ExpiresAt,
		Source:     entry.Source,
	}, nil
}

// Clear removes the cached session.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
