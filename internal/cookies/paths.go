package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/Suggestic/amanda-scrapping/internal/session"
)

// Autodetect scans well-known browser profile locations and imports
// cookies for domain from the most recently written store that yields
// any. Mtime ordering picks the profile the user actually logged in
// with when several browsers carry cookies for the domain.
func Autodetect(domain string) ([]session.Cookie, *Source, error) {
	for _, candidate := range newestFirst(candidateStores()) {
		imported, source, err := Import(candidate, domain)
		if err != nil || len(imported) == 0 {
			continue
		}
		return imported, source, nil
	}
	return nil, nil, fmt.Errorf("no usable browser cookie store found for %s; pass an explicit path", domain)
}

// newestFirst drops paths that do not exist and orders the rest by
// modification time, most recent first.
func newestFirst(paths []string) []string {
	type stamped struct {
		path  string
		mtime int64
	}

	var existing []stamped
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		existing = append(existing, stamped{path: p, mtime: info.ModTime().UnixNano()})
	}

	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].mtime > existing[j].mtime
	})

	out := make([]string, len(existing))
	for i, s := range existing {
		out[i] = s.path
	}
	return out
}

func candidateStores() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var roots []string
	switch runtime.GOOS {
	case "darwin":
		roots = append(roots,
			filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles"),
		)
	case "windows":
		roots = append(roots,
			filepath.Join(os.Getenv("APPDATA"), "Mozilla", "Firefox", "Profiles"),
		)
	default:
		roots = append(roots,
			filepath.Join(home, ".mozilla", "firefox"),
			filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox"),
		)
	}

	var candidates []string
	for _, root := range roots {
		profiles, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if !p.IsDir() {
				continue
			}
			candidates = append(candidates, filepath.Join(root, p.Name(), "cookies.sqlite"))
		}
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "Default", "Cookies"),
		)
	case "windows":
		candidates = append(candidates,
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "User Data", "Default", "Network", "Cookies"),
		)
	default:
		candidates = append(candidates,
			filepath.Join(home, ".config", "google-chrome", "Default", "Cookies"),
			filepath.Join(home, ".config", "chromium", "Default", "Cookies"),
		)
	}

	return candidates
}
