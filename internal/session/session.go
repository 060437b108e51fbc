// Package session models the application session obtained after the
// dual-auth flow: the cookies issued by the form login, the Cookie
// header built from them, and the derived expiry.
//
// Cookie values are sensitive. They are never logged and are only
// persisted through the encrypted cache in session/sessioncache.
package session

import (
	"strings"
	"time"
)

// DefaultTTL is used when no imported cookie carries an expiry.
const DefaultTTL = 8 * time.Hour

// Cookie is a single cookie taken from a browser store or a live
// browser context.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expiry   time.Time
	Secure   bool
	HttpOnly bool
}

// Session is an authenticated application session.
type Session struct {
	Cookies    []Cookie
	Header     string
	UserAgent  string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	// Source records where the session came from: "browser", "import"
	// or "manual".
	Source string
}

// New builds a Session from cookies. The expiry is the earliest cookie
// expiry in the future; cookies without one do not shorten the session.
// When nothing carries an expiry the session lives for defaultTTL
// (DefaultTTL if zero).
func New(cookies []Cookie, userAgent, source string, defaultTTL time.Duration) *Session {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	now := time.Now()

	var earliest time.Time
	for _, c := range cookies {
		if c.Expiry.IsZero() || !c.Expiry.After(now) {
			continue
		}
		if earliest.IsZero() || c.Expiry.Before(earliest) {
			earliest = c.Expiry
		}
	}
	if earliest.IsZero() {
		earliest = now.Add(defaultTTL)
	}

	return &Session{
		Cookies:    cookies,
		Header:     BuildHeader(cookies),
		UserAgent:  userAgent,
		AcquiredAt: now,
		ExpiresAt:  earliest,
		Source:     source,
	}
}

// Valid reports whether the session has not expired at the given time.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Header != "" && now.Before(s.ExpiresAt)
}

// ExpiringSoon reports whether the session expires within margin.
func (s *Session) ExpiringSoon(now time.Time, margin time.Duration) bool {
	return s == nil || !now.Add(margin).Before(s.ExpiresAt)
}

// SessionCookieNames returns the names of cookies that look like
// session or auth credentials. Names only; safe to log.
func (s *Session) SessionCookieNames() []string {
	var names []string
	for _, c := range s.Cookies {
		lower := strings.ToLower(c.Name)
		for _, pattern := range []string{"sess", "session", "auth", "login"} {
			if strings.Contains(lower, pattern) {
				names = append(names, c.Name)
				break
			}
		}
	}
	return names
}
