package cookies

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// parseNetscape reads cookies for domain from a Netscape-format text
// export (the format curl and most browser export extensions produce).
// Malformed lines are skipped.
func parseNetscape(filePath string, domain string) ([]session.Cookie, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open Netscape cookie file: %w", err)
	}
	defer func() { _ = f.Close() }()

	now := time.Now()
	var result []session.Cookie

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = line[len("#HttpOnly_"):]
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		// domain, subdomain-flag, path, secure, expiry, name, value
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		if !matchesDomain(fields[0], domain) {
			continue
		}
		// expiry 0 means a session cookie, always kept
		if expiry > 0 && time.Unix(expiry, 0).Before(now) {
			continue
		}

		ck := session.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expiry > 0 {
			ck.Expiry = time.Unix(expiry, 0)
		}
		result = append(result, ck)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Netscape cookie file: %w", err)
	}

	return result, nil
}
