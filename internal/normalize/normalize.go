// Package normalize turns raw HTML captures into stable text suitable
// for checksumming and storage.
package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/scraper"
)

var (
	titleSelectors = []string{
		"meta[property='og:title']",
		"h1.page-title",
		"h1",
		"title",
	}
	contentSelectors = []string{
		"main",
		"article",
		".region-content",
		".page-content",
		"#content",
	}
)

type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

type PageContent struct {
	Title string
	Text  string
}

// ParsePage extracts the title and the main body text of a captured
// page. Chrome (navigation, footer, scripts) is stripped so the text
// only changes when the content does.
func (n *Normalizer) ParsePage(html string) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	content := &PageContent{}

	if ogTitle, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && ogTitle != "" {
		content.Title = ogTitle
	} else {
		content.Title = scraper.TrySelectors(doc, titleSelectors[1:])
	}

	var bodyHTML string
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() > 0 {
			bodyHTML, _ = node.Html()
			break
		}
	}
	if bodyHTML == "" {
		bodyHTML, _ = doc.Find("body").Html()
	}

	bodyHTML = n.stripBlocks(bodyHTML)
	content.Text = n.cleanHTML(bodyHTML)

	return content, nil
}

// stripBlocks drops named chrome blocks (e.g. "Relacionados") by
// matching container elements that carry the block name.
func (n *Normalizer) stripBlocks(html string) string {
	result := html

	for _, blockName := range n.cfg.Normalize.StripBlocks {
		patterns := []string{
			`<div[^>]*>(\s*<h\d[^>]*>` + blockName + `</h\d>|` + blockName + `)[^<]*(?:<[^>]*>)*?</div>`,
			`<section[^>]*>(\s*<h\d[^>]*>` + blockName + `</h\d>|` + blockName + `)[^<]*(?:<[^>]*>)*?</section>`,
			`<aside[^>]*>[^<]*` + blockName + `[^<]*(?:<[^>]*>)*?</aside>`,
		}

		for _, pattern := range patterns {
			re := regexp.MustCompile(`(?i)` + pattern)
			result = re.ReplaceAllString(result, "")
		}
	}

	return result
}

func (n *Normalizer) cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript, nav, header, footer, .cookie-banner, #onetrust-consent-sdk").Remove()

	text := doc.Text()

	if n.cfg.Normalize.TrimNBSP {
		text = strings.ReplaceAll(text, " ", " ")
	}

	if n.cfg.Normalize.CollapseSpaces {
		re := regexp.MustCompile(`\s+`)
		text = re.ReplaceAllString(text, " ")
	}

	return strings.TrimSpace(text)
}

// TruncatePreview shortens text to max_preview_chars on a word
// boundary for storage previews.
func (n *Normalizer) TruncatePreview(text string) string {
	if len(text) <= n.cfg.Normalize.MaxPreviewChars {
		return text
	}

	truncated := text[:n.cfg.Normalize.MaxPreviewChars]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > 0 {
		return text[:lastSpace] + "…"
	}

	return truncated + "…"
}

// NormalizeURL trims whitespace and drops fragments so the same page
// always keys the same record.
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return strings.TrimRight(urlStr, "/")
}
