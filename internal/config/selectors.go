package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// LoginSelectors are the CSS selector lists the login broker tries in
// order when driving the form login. The defaults cover the Drupal +
// Gigya login flow of the target site (Portuguese labels included).
type LoginSelectors struct {
	Triggers       []string `yaml:"triggers"`
	EmailFields    []string `yaml:"email_fields"`
	PasswordFields []string `yaml:"password_fields"`
	SubmitButtons  []string `yaml:"submit_buttons"`
	ConsentButtons []string `yaml:"consent_buttons"`
	ErrorBanners   []string `yaml:"error_banners"`
	SuccessMarkers []string `yaml:"success_markers"`
}

// DefaultLoginSelectors returns the built-in selector set, used when no
// selectors file is configured.
func DefaultLoginSelectors() *LoginSelectors {
	return &LoginSelectors{
		Triggers: []string{
			"[data-login]",
			".login-button",
			"a[href*='/login']",
		},
		EmailFields: []string{
			"input[placeholder*='E-mail']",
			"input[placeholder*='CPF']",
			"input[type='email']",
			"input[name='mail']",
			"input[name='email']",
			"input[name='username']",
			"#edit-name",
		},
		PasswordFields: []string{
			"input[placeholder*='Senha']",
			"input[type='password']",
			"input[name='pass']",
			"input[name='senha']",
			"#edit-pass",
		},
		SubmitButtons: []string{
			"input[type='submit'][value='Enviar']",
			".gigya-input-submit",
			"input.submitBtn",
			"button[type='submit']",
			".login-submit",
		},
		ConsentButtons: []string{
			"#onetrust-accept-btn-handler",
			".onetrust-accept-btn-handler",
			"#accept-cookies",
			".cookie-accept",
			"[data-accept='cookies']",
		},
		ErrorBanners: []string{
			".gigya-error-msg-active",
			".error-message",
			".alert-error",
			"[role='alert']",
		},
		SuccessMarkers: []string{
			"a[href*='logout']",
			"a[href*='sair']",
			".user-menu",
			".user-account",
			".logged-in",
		},
	}
}

// LoadLoginSelectors loads selector lists from a YAML file, or returns
// the defaults when filePath is empty.
func LoadLoginSelectors(filePath string) (*LoginSelectors, error) {
	if filePath == "" {
		return DefaultLoginSelectors(), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close selectors file: %v", closeErr)
		}
	}()

	var sel LoginSelectors
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&sel); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(&sel); err != nil {
		return nil, err
	}

	return &sel, nil
}

func validateSelectors(s *LoginSelectors) error {
	if len(s.EmailFields) == 0 {
		return fmt.Errorf("email_fields is required")
	}
	if len(s.PasswordFields) == 0 {
		return fmt.Errorf("password_fields is required")
	}
	if len(s.SubmitButtons) == 0 {
		return fmt.Errorf("submit_buttons is required")
	}
	return nil
}
