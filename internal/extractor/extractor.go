// Package extractor turns fetched HTML into the structured page record
// the catalog stores.
package extractor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/rat-crawler/ratcrawler/internal/crawlerr"
)

// Link is a hyperlink found on a page, resolved to an absolute URL.
type Link struct {
	// Absolute target URL
	URL string

	// Anchor text, whitespace-trimmed
	Text string

	// rel attribute contains "nofollow"
	NoFollow bool

	// Target host equals the page host
	Internal bool
}

// PageData is everything extracted from one HTML document.
type PageData struct {
	// Title tag content
	Title string

	// Meta description
	MetaDescription string

	// Meta keywords, comma-split and trimmed
	MetaKeywords []string

	// Meta robots content, verbatim
	RobotsMeta string

	// Canonical URL, resolved
	CanonicalURL string

	// Headings in document order
	H1 []string
	H2 []string

	// Language from the html lang attribute, "en" when absent
	Language string

	// Visible text with whitespace collapsed
	TextContent string

	// Number of whitespace-separated words in TextContent
	WordCount int

	// SHA-256 of the raw body, hex-encoded
	ContentHash string

	// All usable links in document order
	Links []Link

	// Link counts by host classification
	InternalLinksCount int
	ExternalLinksCount int

	// Number of img elements
	ImagesCount int
}

// extractor walks one document. The base URL can move when a base tag
// appears.
type extractor struct {
	base *url.URL
	host string
}

// Extract parses body as HTML and pulls out the page record. pageURL must
// be the final URL the body was served from; links resolve against it and
// internal/external classification compares full hostnames with it.
func Extract(pageURL string, body []byte) (*PageData, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &crawlerr.ParseError{URL: pageURL, Err: err}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &crawlerr.ParseError{URL: pageURL, Err: err}
	}

	e := &extractor{base: base, host: strings.ToLower(base.Hostname())}

	hash := sha256.Sum256(body)
	data := &PageData{
		Language:    "en",
		ContentHash: hex.EncodeToString(hash[:]),
	}

	var text strings.Builder
	e.walk(doc, data, &text)

	data.TextContent = strings.Join(strings.Fields(text.String()), " ")
	data.WordCount = len(strings.Fields(data.TextContent))

	for _, link := range data.Links {
		if link.Internal {
			data.InternalLinksCount++
		} else {
			data.ExternalLinksCount++
		}
	}

	return data, nil
}

// walk recursively visits the HTML tree.
func (e *extractor) walk(n *html.Node, data *PageData, text *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			if lang := strings.TrimSpace(getAttr(n, "lang")); lang != "" {
				data.Language = lang
			}

		case "base":
			if href := getAttr(n, "href"); href != "" {
				if u, err := url.Parse(href); err == nil {
					e.base = e.base.ResolveReference(u)
				}
			}

		case "title":
			if data.Title == "" {
				data.Title = strings.TrimSpace(textContent(n))
			}

		case "meta":
			e.meta(n, data)

		case "link":
			if strings.EqualFold(getAttr(n, "rel"), "canonical") {
				data.CanonicalURL = e.resolve(getAttr(n, "href"))
			}

		case "a":
			if link, ok := e.anchor(n); ok {
				data.Links = append(data.Links, link)
			}

		case "img":
			data.ImagesCount++

		case "h1":
			if t := strings.TrimSpace(textContent(n)); t != "" {
				data.H1 = append(data.H1, t)
			}

		case "h2":
			if t := strings.TrimSpace(textContent(n)); t != "" {
				data.H2 = append(data.H2, t)
			}
		}
	}

	// Collect visible text, skipping script and style bodies.
	if n.Type == html.TextNode {
		parent := n.Parent
		if parent == nil || (parent.Data != "script" && parent.Data != "style") {
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteString(" ")
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, data, text)
	}
}

// meta handles one meta tag.
func (e *extractor) meta(n *html.Node, data *PageData) {
	name := strings.ToLower(getAttr(n, "name"))
	content := getAttr(n, "content")

	switch name {
	case "description":
		data.MetaDescription = content
	case "keywords":
		for _, kw := range strings.Split(content, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				data.MetaKeywords = append(data.MetaKeywords, kw)
			}
		}
	case "robots":
		data.RobotsMeta = content
	}
}

// anchor converts an a element into a Link. Anchors without a usable
// target report ok=false.
func (e *extractor) anchor(n *html.Node) (Link, bool) {
	href := strings.TrimSpace(getAttr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return Link{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}
	resolved := e.base.ResolveReference(ref)

	rel := strings.ToLower(getAttr(n, "rel"))
	return Link{
		URL:      resolved.String(),
		Text:     strings.TrimSpace(textContent(n)),
		NoFollow: strings.Contains(rel, "nofollow"),
		Internal: strings.ToLower(resolved.Hostname()) == e.host,
	}, true
}

func (e *extractor) resolve(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}
