// Package scraper holds the goquery-based HTML inspection shared by
// verification, login automation and discovery.
package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TrySelectors returns the first non-empty text, href or src produced
// by the selectors, tried in order.
func TrySelectors(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
		if attr, ok := sel.Attr("href"); ok && attr != "" {
			return attr
		}
		if attr, ok := sel.Attr("src"); ok && attr != "" {
			return attr
		}
	}
	return ""
}

// ExtractLinks returns the absolute same-host links of an HTML page,
// anchors stripped, deduplicated, document order preserved.
func ExtractLinks(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Host != base.Host {
			return
		}
		resolved.Fragment = ""

		link := resolved.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links, nil
}
