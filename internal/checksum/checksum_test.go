package checksum

import (
	"testing"
	"time"
)

func TestCalculateDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	a := Calculate("https://example.com/reports", "conteúdo", at)
	b := Calculate("https://example.com/reports", "conteúdo", at)
	if a != b {
		t.Error("same inputs must produce the same checksum")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestCalculateSensitivity(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	base := Calculate("https://example.com/reports", "conteúdo", at)

	if Calculate("https://example.com/other", "conteúdo", at) == base {
		t.Error("different URL must change the checksum")
	}
	if Calculate("https://example.com/reports", "outro", at) == base {
		t.Error("different content must change the checksum")
	}
	if Calculate("https://example.com/reports", "conteúdo", at.AddDate(0, 0, 1)) == base {
		t.Error("different day must change the checksum")
	}
	// Time of day within the same date does not.
	if Calculate("https://example.com/reports", "conteúdo", at.Add(3*time.Hour)) != base {
		t.Error("same day must keep the checksum stable")
	}
}

func TestVerify(t *testing.T) {
	at := time.Now()
	sum := Calculate("https://example.com", "body", at)

	if !Verify("https://example.com", "body", at, sum) {
		t.Error("expected checksum to verify")
	}
	if Verify("https://example.com", "tampered", at, sum) {
		t.Error("expected tampered content to fail verification")
	}
}
