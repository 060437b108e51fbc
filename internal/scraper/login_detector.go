package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors and text markers that distinguish the application's login
// page from authenticated content. The text markers are Portuguese
// first: the target application serves pt-BR.
var (
	loginFormSelectors = []string{
		"input[type='password']",
		"form[action*='login']",
		".gigya-login-form",
	}

	loginTextMarkers = []string{
		"senha",
		"entrar",
		"e-mail ou cpf",
		"login",
	}

	authenticatedSelectors = []string{
		"a[href*='logout']",
		"a[href*='sair']",
		".user-menu",
		".user-account",
		".logged-in",
	}

	authenticatedTextMarkers = []string{
		"sair",
		"logout",
		"bem-vindo",
		"minha conta",
	}
)

// LoginPageDetector decides whether a fetched page is the login page
// (session rejected) or authenticated content.
type LoginPageDetector struct{}

func NewLoginPageDetector() *LoginPageDetector {
	return &LoginPageDetector{}
}

// IsLoginPage reports whether the HTML is the application login page.
// Authenticated markers win over login markers: a logged-in page may
// legitimately contain the word "login" in its footer.
func (d *LoginPageDetector) IsLoginPage(html string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, selector := range authenticatedSelectors {
		if doc.Find(selector).Length() > 0 {
			return false, nil
		}
	}

	for _, selector := range loginFormSelectors {
		if doc.Find(selector).Length() > 0 {
			return true, nil
		}
	}

	// No form structure either way; fall back to text markers.
	return d.IsLoginText(doc.Find("body").Text()), nil
}

// IsLoginText applies the text markers to plain text, for renderings
// where no DOM is available such as markdown. Authenticated markers
// win here too.
func (d *LoginPageDetector) IsLoginText(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range authenticatedTextMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range loginTextMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
