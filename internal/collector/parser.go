package collector

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// Parser extracts endpoints from HTML content.
// It identifies links, script and image sources, form actions, and
// stylesheet references, resolving them against the page URL.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. More maintainable than complex regex patterns
//  4. Standard library extension, well-maintained
type Parser struct {
	// pageURL is the URL of the page being parsed, used for resolving
	// relative URLs and tagging each endpoint with its source page.
	pageURL *url.URL
}

// ParseResult contains the endpoints and links extracted from an HTML page.
//
// Design decision: We return a result struct from a single parsing pass
// rather than exposing per-element methods because the pipeline always
// wants endpoints and crawlable links together.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Endpoints contains all URL-bearing DOM attributes found on the page,
	// resolved to absolute URLs. Not yet deduplicated or origin-filtered;
	// the report owns deduplication and the pipeline owns filtering.
	Endpoints []model.Endpoint

	// Links contains resolved anchor URLs, candidates for crawling.
	Links []string

	// SameOriginLinks contains the subset of Links sharing the page's
	// origin. Only these are ever enqueued during a crawl.
	SameOriginLinks []string
}

// NewParser creates a new HTML parser for the given page URL.
// The page URL is used to resolve relative attribute values.
func NewParser(pageURL string) (*Parser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Parser{pageURL: u}, nil
}

// Parse parses HTML content and extracts all URL-bearing attributes.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Endpoints:       make([]model.Endpoint, 0),
		Links:           make([]string, 0),
		SameOriginLinks: make([]string, 0),
	}

	// Walk the DOM tree
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	page := p.pageURL.String()

	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if href := p.resolveURL(getAttr(n, "href")); href != "" {
			result.Endpoints = append(result.Endpoints, model.Endpoint{
				URL:    href,
				Source: model.SourceDOM,
				Type:   model.TypeAnchor,
				Page:   page,
			})
			result.Links = append(result.Links, href)
			if origin.IsSame(href, page) {
				result.SameOriginLinks = append(result.SameOriginLinks, href)
			}
		}

	case "script":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Endpoints = append(result.Endpoints, model.Endpoint{
				URL:    src,
				Source: model.SourceDOM,
				Type:   model.TypeScript,
				Page:   page,
			})
		}

	case "img":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Endpoints = append(result.Endpoints, model.Endpoint{
				URL:    src,
				Source: model.SourceDOM,
				Type:   model.TypeImage,
				Page:   page,
			})
		}

	case "form":
		if action := p.resolveURL(getAttr(n, "action")); action != "" {
			method := strings.ToUpper(getAttr(n, "method"))
			if method == "" {
				method = "GET"
			}
			result.Endpoints = append(result.Endpoints, model.Endpoint{
				URL:    action,
				Source: model.SourceDOM,
				Type:   model.TypeForm,
				Method: method,
				Page:   page,
			})
		}

	case "link":
		if href := p.resolveURL(getAttr(n, "href")); href != "" {
			result.Endpoints = append(result.Endpoints, model.Endpoint{
				URL:    href,
				Source: model.SourceDOM,
				Type:   model.TypeLink,
				Page:   page,
			})
		}
	}
}

// resolveURL resolves a relative URL against the page URL.
//
// Design decision: We resolve URLs rather than storing them as-is because:
//  1. Makes deduplication easier
//  2. Allows proper origin classification
//  3. Reduces ambiguity in results
//
// Non-navigable schemes (javascript:, mailto:, tel:, data:) and bare
// fragment references are discarded.
func (p *Parser) resolveURL(href string) string {
	if href == "" {
		return ""
	}

	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.pageURL.ResolveReference(u)
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
