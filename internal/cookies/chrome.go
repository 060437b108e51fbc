package cookies

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// chromeEpochOffsetSeconds is the number of seconds between the Windows
// NT epoch (1601-01-01) and the Unix epoch (1970-01-01). Chrome stores
// expiries as microseconds since the former.
const chromeEpochOffsetSeconds int64 = 11_644_473_600

func chromeToUnix(chromeUSec int64) int64 {
	return (chromeUSec / 1_000_000) - chromeEpochOffsetSeconds
}

// parseChrome reads cookies for domain from a copied Chrome Cookies
// database. Encrypted cookies (empty value column) are skipped: the
// plaintext lives only inside the browser's own keystore.
func parseChrome(dbPath string, domain string) ([]session.Cookie, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?immutable=1", dbPath))
	if err != nil {
		return nil, fmt.Errorf("cannot open Chrome cookie store: %w", err)
	}
	defer func() { _ = db.Close() }()

	nowChrome := (time.Now().Unix() + chromeEpochOffsetSeconds) * 1_000_000

	rows, err := db.Query(`
        SELECT name, value, host_key, path, expires_utc, is_secure, is_httponly
        FROM cookies
        WHERE (host_key = ? OR host_key = ? OR host_key LIKE ?)
          AND value != ''
          AND expires_utc > ?
        ORDER BY path DESC, name ASC
    `, domain, "."+domain, "%."+domain, nowChrome)
	if err != nil {
		return nil, fmt.Errorf("failed to query Chrome cookies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []session.Cookie
	for rows.Next() {
		var (
			name, value, hostKey, path string
			expiresUTC                 int64
			isSecure, isHTTPOnly       int
		)
		if err := rows.Scan(&name, &value, &hostKey, &path, &expiresUTC, &isSecure, &isHTTPOnly); err != nil {
			return nil, fmt.Errorf("failed to scan Chrome cookie row: %w", err)
		}
		result = append(result, session.Cookie{
			Name:     name,
			Value:    value,
			Domain:   hostKey,
			Path:     path,
			Expiry:   time.Unix(chromeToUnix(expiresUTC), 0),
			Secure:   isSecure != 0,
			HttpOnly: isHTTPOnly != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate Chrome cookie rows: %w", err)
	}

	return result, nil
}
