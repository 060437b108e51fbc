package cookies

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func writeFirefoxStore(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cookies.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE moz_cookies (
		name TEXT, value TEXT, host TEXT, path TEXT,
		expiry INTEGER, isSecure INTEGER, isHttpOnly INTEGER
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	future := time.Now().Add(24 * time.Hour).Unix()
	past := time.Now().Add(-24 * time.Hour).Unix()
	rows := [][]interface{}{
		{"SSESSdead", "beef", ".example.org", "/", future, 1, 1},
		{"has_js", "1", "example.org", "/", future, 0, 0},
		{"stale", "old", "example.org", "/", past, 0, 0},
		{"foreign", "x", "other.test", "/", future, 0, 0},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO moz_cookies VALUES (?,?,?,?,?,?,?)`, r...); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return path
}

func writeChromeStore(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Cookies")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE cookies (
		name TEXT, value TEXT, host_key TEXT, path TEXT,
		expires_utc INTEGER, is_secure INTEGER, is_httponly INTEGER
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	toChrome := func(t time.Time) int64 {
		return (t.Unix() + chromeEpochOffsetSeconds) * 1_000_000
	}
	future := toChrome(time.Now().Add(24 * time.Hour))
	rows := [][]interface{}{
		{"SSESSdead", "beef", ".example.org", "/", future, 1, 1},
		{"encrypted", "", "example.org", "/", future, 0, 0}, // value lives in the OS keystore
		{"foreign", "x", "other.test", "/", future, 0, 0},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO cookies VALUES (?,?,?,?,?,?,?)`, r...); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return path
}

func TestImportFirefox(t *testing.T) {
	path := writeFirefoxStore(t, t.TempDir())

	imported, source, err := Import(path, "example.org")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if source.Format != FormatFirefox || source.Browser != "Firefox" {
		t.Errorf("wrong source: %+v", source)
	}
	if len(imported) != 2 {
		t.Fatalf("expected 2 cookies (expired and foreign filtered), got %d", len(imported))
	}
	for _, c := range imported {
		if c.Name == "stale" || c.Name == "foreign" {
			t.Errorf("cookie %q should have been filtered", c.Name)
		}
	}
}

func TestImportChromeSkipsEncrypted(t *testing.T) {
	path := writeChromeStore(t, t.TempDir())

	imported, source, err := Import(path, "example.org")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if source.Format != FormatChrome {
		t.Errorf("wrong format: %v", source.Format)
	}
	if len(imported) != 1 || imported[0].Name != "SSESSdead" {
		t.Fatalf("expected only the unencrypted same-domain cookie, got %+v", imported)
	}
	if imported[0].Expiry.Before(time.Now()) {
		t.Errorf("chrome epoch conversion produced a past expiry: %v", imported[0].Expiry)
	}
}

func TestImportNetscape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	future := time.Now().Add(24 * time.Hour).Unix()
	content := "# Netscape HTTP Cookie File\n" +
		"# This file is generated by a browser extension.\n" +
		".example.org\tTRUE\t/\tTRUE\t" + itoa(future) + "\tSSESSdead\tbeef\n" +
		"#HttpOnly_.example.org\tTRUE\t/\tFALSE\t0\tonlysess\tval\n" +
		"malformed line without tabs\n" +
		"other.test\tTRUE\t/\tFALSE\t" + itoa(future) + "\tforeign\tx\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	imported, source, err := Import(path, "example.org")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if source.Format != FormatNetscape {
		t.Errorf("wrong format: %v", source.Format)
	}
	if len(imported) != 2 {
		t.Fatalf("expected 2 cookies, got %d: %+v", len(imported), imported)
	}
	if !imported[1].HttpOnly {
		t.Error("#HttpOnly_ prefix should set the HttpOnly flag")
	}
	if !imported[1].Expiry.IsZero() {
		t.Error("expiry 0 should map to a session cookie without expiry")
	}
}

func TestDetectFormatErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := DetectFormat(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing file should fail detection")
	}
	if _, err := DetectFormat(dir); err == nil {
		t.Error("directory should fail detection")
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DetectFormat(empty); err == nil {
		t.Error("empty file should fail detection")
	}

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage, []byte("not a cookie store at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DetectFormat(garbage); err == nil {
		t.Error("unknown format should fail detection")
	}
}

func TestMatchesDomain(t *testing.T) {
	tests := []struct {
		cookieDomain string
		domain       string
		want         bool
	}{
		{"example.org", "example.org", true},
		{".example.org", "example.org", true},
		{"sub.example.org", "example.org", true},
		{"other.test", "example.org", false},
		{"notexample.org", "example.org", false},
	}

	for _, tt := range tests {
		if got := matchesDomain(tt.cookieDomain, tt.domain); got != tt.want {
			t.Errorf("matchesDomain(%q, %q) = %v, want %v", tt.cookieDomain, tt.domain, got, tt.want)
		}
	}
}

func TestNewestFirst(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old-profile-cookies.sqlite")
	recent := filepath.Join(dir, "recent-profile-cookies.sqlite")
	newest := filepath.Join(dir, "newest-profile-cookies.sqlite")
	for _, p := range []string{old, recent, newest} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now()
	stamps := map[string]time.Time{
		old:    now.Add(-48 * time.Hour),
		recent: now.Add(-time.Hour),
		newest: now,
	}
	for p, ts := range stamps {
		if err := os.Chtimes(p, ts, ts); err != nil {
			t.Fatal(err)
		}
	}

	missing := filepath.Join(dir, "does-not-exist", "Cookies")
	got := newestFirst([]string{old, missing, newest, recent})

	want := []string{newest, recent, old}
	if len(got) != len(want) {
		t.Fatalf("expected %d stores, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
