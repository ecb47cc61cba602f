// Package urlutil provides URL normalization and host helpers shared by the
// crawl and backlink pipelines.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// skipExtensions lists file extensions that are never fetched as pages.
var skipExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {}, "bz2": {},
	"mp3": {}, "mp4": {}, "avi": {}, "mov": {}, "wmv": {}, "flv": {},
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "svg": {}, "ico": {},
	"css": {}, "js": {}, "xml": {}, "json": {}, "csv": {},
}

var multiSlash = regexp.MustCompile(`/+`)

// Normalize returns the canonical form of a URL used for frontier
// deduplication: lowercased scheme and host, default ports stripped,
// fragment dropped, duplicate slashes collapsed, trailing slash trimmed
// (except for the root path) and query parameters sorted.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	p := u.Path
	if p == "" {
		p = "/"
	}
	p = multiSlash.ReplaceAllString(p, "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	u.Path = p

	if u.RawQuery != "" {
		u.RawQuery = sortedQueryString(u.Query())
	}

	return u.String(), nil
}

// sortedQueryString encodes query values with keys and values in sorted order.
func sortedQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := query[k]
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
			} else {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
	}
	return strings.Join(parts, "&")
}

// ExtractHost returns the lowercased hostname of a URL, without port.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}

// ExtractHostPort returns the lowercased host of a URL keeping any
// non-default port. Backlink grouping treats distinct ports as distinct
// referrer domains.
func ExtractHostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Host)
	switch strings.ToLower(u.Scheme) {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host, nil
}

// ExtractOrigin returns scheme://host[:port] in lowercase. The origin is the
// cache key for robots.txt rules.
func ExtractOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %q", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// SameHost reports whether two URLs share the same hostname. Hostnames are
// compared in full: a.example.com and b.example.com are different hosts.
func SameHost(url1, url2 string) bool {
	h1, err1 := ExtractHost(url1)
	h2, err2 := ExtractHost(url2)
	if err1 != nil || err2 != nil || h1 == "" || h2 == "" {
		return false
	}
	return h1 == h2
}

// ResolveURL resolves a possibly relative reference against a base URL.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsHTTP reports whether a URL is absolute with an http or https scheme.
func IsHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HasSkippedExtension reports whether the last path segment of a URL ends in
// an extension that marks non-page content (archives, media, assets).
func HasSkippedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" {
		return false
	}
	_, skip := skipExtensions[ext]
	return skip
}

// IsCrawlable reports whether a resolved URL is eligible for the fetch
// pipeline: absolute, http(s) and not pointing at a skipped file type.
func IsCrawlable(rawURL string) bool {
	return IsHTTP(rawURL) && !HasSkippedExtension(rawURL)
}
