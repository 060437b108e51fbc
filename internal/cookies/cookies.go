// Package cookies reads session cookies out of a local browser cookie
// store, replacing the manual copy-from-devtools step of the login
// procedure. Firefox and Chrome SQLite stores and Netscape-format text
// exports are supported.
//
// This is local tooling: it reads the operator's own browser state and
// must never run in a server context. Cookie values are returned
// in-memory only and are never logged.
package cookies

import (
	"fmt"
	"path/filepath"

	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// Format identifies the format of a browser cookie store.
type Format int

const (
	FormatUnknown Format = iota
	FormatFirefox
	FormatChrome
	FormatNetscape
)

func (f Format) String() string {
	switch f {
	case FormatFirefox:
		return "Firefox"
	case FormatChrome:
		return "Chrome"
	case FormatNetscape:
		return "Netscape"
	default:
		return "unknown"
	}
}

// Source describes where cookies were imported from. Browser and Path
// are shown to the operator; values never are.
type Source struct {
	Path    string
	Format  Format
	Browser string
}

// ErrUnsupportedStore is wrapped by import errors for files that are
// not a known cookie store format.
var ErrUnsupportedStore = fmt.Errorf("unsupported cookie store format")

// Import reads cookies for domain from the store at path. SQLite
// stores are copied to a temp dir first so an open browser does not
// block the read. Expired cookies are filtered out.
func Import(path string, domain string) ([]session.Cookie, *Source, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}

	source := &Source{
		Path:    path,
		Format:  format,
		Browser: format.String(),
	}

	var imported []session.Cookie
	switch format {
	case FormatFirefox:
		imported, err = importSQLite(path, domain, parseFirefox)
	case FormatChrome:
		imported, err = importSQLite(path, domain, parseChrome)
	case FormatNetscape:
		imported, err = parseNetscape(path, domain)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, path)
	}
	if err != nil {
		return nil, nil, err
	}

	return imported, source, nil
}

// importSQLite copies a SQLite cookie store safely and parses the copy.
func importSQLite(path, domain string, parse func(string, string) ([]session.Cookie, error)) ([]session.Cookie, error) {
	tempDir, cleanup, err := safeCopy(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return parse(filepath.Join(tempDir, filepath.Base(path)), domain)
}

// matchesDomain reports whether a cookie domain covers the target
// domain: exact, dot-prefixed, or a subdomain of it.
func matchesDomain(cookieDomain, domain string) bool {
	dotDomain := "." + domain
	if cookieDomain == domain || cookieDomain == dotDomain {
		return true
	}
	return len(cookieDomain) > len(dotDomain) &&
		cookieDomain[len(cookieDomain)-len(dotDomain):] == dotDomain
}
