// Package discovery maps the authenticated site: a scoped breadth
// first crawl that classifies every URL it meets and records what it
// captured.
package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

// Priority ranks how much a URL is worth visiting.
type Priority int

const (
	PrioritySkip Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityFile
)

func (p Priority) String() string {
	switch p {
	case PriorityFile:
		return "file"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "skip"
	}
}

var (
	highPriorityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/ead(/.*)?$`),
		regexp.MustCompile(`(?i)/conteudos(/.*)?$`),
		regexp.MustCompile(`(?i)/educacao-a-distancia(/.*)?$`),
		regexp.MustCompile(`(?i)/servicos(/.*)?$`),
		regexp.MustCompile(`(?i)/eventos(/.*)?$`),
		regexp.MustCompile(`(?i)/pwa/produtos(/.*)?$`),
		regexp.MustCompile(`(?i)/podcast(/.*)?$`),
		regexp.MustCompile(`(?i)/receitas(/.*)?$`),
		regexp.MustCompile(`(?i)/calculadoras(/.*)?$`),
		regexp.MustCompile(`(?i)/acervo(/.*)?$`),
	}

	mediumPriorityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/sobre-nos`),
		regexp.MustCompile(`(?i)/perguntas-frequentes`),
		regexp.MustCompile(`(?i)/cadastro`),
		regexp.MustCompile(`(?i)/meus-cursos`),
		regexp.MustCompile(`(?i)/meus-certificados`),
	}

	filePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.(pdf|doc|docx|ppt|pptx|xls|xlsx)$`),
		regexp.MustCompile(`(?i)\.(zip|rar|tar|gz)$`),
		regexp.MustCompile(`(?i)\.(mp4|mp3|avi|mov|wmv)$`),
		regexp.MustCompile(`(?i)/download/`),
		regexp.MustCompile(`(?i)/materials/`),
		regexp.MustCompile(`(?i)/recursos/`),
		regexp.MustCompile(`(?i)/arquivos/`),
	}

	skipPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^tel:`),
		regexp.MustCompile(`(?i)^mailto:`),
		regexp.MustCompile(`(?i)^#`),
		regexp.MustCompile(`(?i)/user/logout`),
		regexp.MustCompile(`(?i)/sair\b`),
		regexp.MustCompile(`(?i)utm_source=`),
		regexp.MustCompile(`(?i)facebook\.com|twitter\.com|instagram\.com|linkedin\.com`),
	}
)

// Classifier scopes URLs to one host and ranks them.
type Classifier struct {
	baseHost string
}

func NewClassifier(baseURL string) (*Classifier, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Classifier{baseHost: u.Hostname()}, nil
}

// Classify ranks a URL. Off-host and matching skip patterns rank
// PrioritySkip; file downloads outrank everything else.
func (c *Classifier) Classify(rawURL string) Priority {
	if rawURL == "" {
		return PrioritySkip
	}

	for _, re := range skipPatterns {
		if re.MatchString(rawURL) {
			return PrioritySkip
		}
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return PrioritySkip
	}

	u, err := url.Parse(rawURL)
	if err != nil || !sameHost(u.Hostname(), c.baseHost) {
		return PrioritySkip
	}

	for _, re := range filePatterns {
		if re.MatchString(rawURL) {
			return PriorityFile
		}
	}
	for _, re := range highPriorityPatterns {
		if re.MatchString(u.Path) {
			return PriorityHigh
		}
	}
	for _, re := range mediumPriorityPatterns {
		if re.MatchString(u.Path) {
			return PriorityMedium
		}
	}

	// Everything else on the host is still worth a visit.
	return PriorityLow
}

func sameHost(host, base string) bool {
	return host == base || strings.HasSuffix(host, "."+base)
}
