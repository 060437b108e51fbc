// Package checksum fingerprints scraped pages for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Calculate fingerprints a page as sha256 over the URL, the
// normalized content and the capture date. The date component makes
// same-day re-scrapes idempotent while letting daily runs register a
// fresh record even for unchanged text.
func Calculate(url, content string, capturedAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s", url, content, capturedAt.Format("2006-01-02"))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether a stored checksum still matches the page.
func Verify(url, content string, capturedAt time.Time, expected string) bool {
	return Calculate(url, content, capturedAt) == expected
}
