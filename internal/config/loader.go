package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment overrides for secrets, so the YAML file can stay free of
// credentials in shared checkouts.
const (
	envShieldUsername = "AMANDA_SHIELD_USERNAME"
	envShieldPassword = "AMANDA_SHIELD_PASSWORD"
	envAppEmail       = "AMANDA_APP_EMAIL"
	envAppPassword    = "AMANDA_APP_PASSWORD"
	envFirecrawlKey   = "AMANDA_FIRECRAWL_API_KEY"
)

func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envShieldUsername); v != "" {
		cfg.Shield.Username = v
	}
	if v := os.Getenv(envShieldPassword); v != "" {
		cfg.Shield.Password = v
	}
	if v := os.Getenv(envAppEmail); v != "" {
		cfg.Login.Email = v
	}
	if v := os.Getenv(envAppPassword); v != "" {
		cfg.Login.Password = v
	}
	if v := os.Getenv(envFirecrawlKey); v != "" {
		cfg.Firecrawl.APIKey = v
	}
}
