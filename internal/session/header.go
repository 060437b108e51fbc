package session

import (
	"fmt"
	"strings"
)

// BuildHeader builds an HTTP Cookie header value from cookies.
// Format: "name1=val1; name2=val2". Input order is preserved and
// duplicate names are kept, matching what a browser would send.
func BuildHeader(cookies []Cookie) string {
	if len(cookies) == 0 {
		return ""
	}

	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.Name + "=" + c.Value
	}
	return strings.Join(parts, "; ")
}

// ParseHeader parses a Cookie header string into cookies. Each entry
// must be name=value; the error names the offending fragment so the
// operator can fix the formatting.
func ParseHeader(header string) ([]Cookie, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("cookie header is empty")
	}

	var cookies []Cookie
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		eq := strings.Index(part, "=")
		if eq < 0 {
			return nil, fmt.Errorf("malformed cookie %q: missing '='", part)
		}
		name := strings.TrimSpace(part[:eq])
		if name == "" {
			return nil, fmt.Errorf("malformed cookie %q: empty name", part)
		}

		cookies = append(cookies, Cookie{
			Name:  name,
			Value: part[eq+1:],
		})
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookie header contains no cookies")
	}
	return cookies, nil
}
