// Package extract pulls item links out of a rendered listing page.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LinkExtractor finds item links on a listing page
type LinkExtractor struct {
	Selector string // CSS selector matching item anchors
	Filter   string // Substring every kept link must contain, empty keeps all
}

// NewLinkExtractor creates a link extractor
func NewLinkExtractor(selector, filter string) *LinkExtractor {
	return &LinkExtractor{Selector: selector, Filter: filter}
}

// Extract returns absolute item links in document order, de-duplicated.
// limit <= 0 keeps every link.
func (e *LinkExtractor) Extract(htmlContent, pageURL string, limit int) ([]string, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)

	seen := make(map[string]bool)
	var links []string

	doc.Find(e.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}

		resolved := resolveURL(base, strings.TrimSpace(href))
		if resolved == "" || seen[resolved] {
			return true
		}
		if e.Filter != "" && !strings.Contains(resolved, e.Filter) {
			return true
		}

		seen[resolved] = true
		links = append(links, resolved)

		return limit <= 0 || len(links) < limit
	})

	return links, nil
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	// Skip javascript: and mailto: links
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)

	// Only keep http/https URLs
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	resolved.Fragment = ""
	return resolved.String()
}
