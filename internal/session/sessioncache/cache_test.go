package sessioncache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func testSession(expiry time.Time) *session.Session {
	cookies := []session.Cookie{
		{Name: "SSESSabc", Value: "secret-value", Domain: "example.org", Expiry: expiry},
		{Name: "has_js", Value: "1", Domain: "example.org"},
	}
	return &session.Session{
		Cookies:    cookies,
		Header:     session.BuildHeader(cookies),
		UserAgent:  "amanda/1.0",
		AcquiredAt: time.Now(),
		ExpiresAt:  expiry,
		Source:     "browser",
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	cache := NewWithKey(path, testKey(), observability.NewNopLogger())

	stored := testSession(time.Now().Add(time.Hour))
	require.NoError(t, cache.Store(stored))

	loaded, err := cache.Load(time.Now())
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, stored.Header, loaded.Header)
	assert.Equal(t, stored.UserAgent, loaded.UserAgent)
	assert.Equal(t, stored.Source, loaded.Source)
	assert.Len(t, loaded.Cookies, 2)
	assert.Equal(t, "secret-value", loaded.Cookies[0].Value)
}

func TestValuesEncryptedOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	cache := NewWithKey(path, testKey(), observability.NewNopLogger())

	require.NoError(t, cache.Store(testSession(time.Now().Add(time.Hour))))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadMissingCache(t *testing.T) {
	cache := NewWithKey(filepath.Join(t.TempDir(), "none.amanda"), testKey(), observability.NewNopLogger())

	loaded, err := cache.Load(time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadExpiredSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	cache := NewWithKey(path, testKey(), observability.NewNopLogger())

	require.NoError(t, cache.Store(testSession(time.Now().Add(-time.Minute))))

	loaded, err := cache.Load(time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded, "expired session must not be returned")
}

func TestLoadWithWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	require.NoError(t, NewWithKey(path, testKey(), observability.NewNopLogger()).Store(testSession(time.Now().Add(time.Hour))))

	otherKey := testKey()
	otherKey[0] ^= 0xff
	var logBuf bytes.Buffer
	loaded, err := NewWithKey(path, otherKey, observability.NewWriterLogger(&logBuf)).Load(time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded, "undecryptable cache must be treated as absent")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "undecryptable cache file should be removed")
	assert.Contains(t, logBuf.String(), "failed to decrypt", "the dropped cache must leave a trace in the log")
	assert.NotContains(t, logBuf.String(), "secret-value")
}

func TestLoadLogsUndecodableCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	require.NoError(t, os.WriteFile(path, []byte("not a session cache"), 0o600))

	var logBuf bytes.Buffer
	loaded, err := NewWithKey(path, testKey(), observability.NewWriterLogger(&logBuf)).Load(time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, logBuf.String(), "failed to decode")
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.amanda")
	cache := NewWithKey(path, testKey(), observability.NewNopLogger())

	require.NoError(t, cache.Store(testSession(time.Now().Add(time.Hour))))
	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear(), "clearing an empty cache is not an error")

	loaded, err := cache.Load(time.Now())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
