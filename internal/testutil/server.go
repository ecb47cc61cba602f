// Package testutil provides the configurable HTTP server used by pipeline
// tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Page is one servable test page.
type Page struct {
	Content     string
	ContentType string
	Status      int
	Headers     map[string]string
}

// Server is an httptest server whose routes, delays, failures and
// redirects can be set per path.
type Server struct {
	HTTP *httptest.Server

	mu        sync.RWMutex
	pages     map[string]*Page
	delays    map[string]time.Duration
	errors    map[string]int
	redirects map[string]string
	hits      map[string]int
}

// NewServer starts an empty test server.
func NewServer() *Server {
	s := &Server{
		pages:     make(map[string]*Page),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]int),
		redirects: make(map[string]string),
		hits:      make(map[string]int),
	}
	s.HTTP = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()

	s.mu.RLock()
	delay := s.delays[path]
	errorCode := s.errors[path]
	redirect := s.redirects[path]
	page := s.pages[path]
	s.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}

	if errorCode > 0 {
		w.WriteHeader(errorCode)
		return
	}

	if page != nil {
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		if page.ContentType != "" {
			w.Header().Set("Content-Type", page.ContentType)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		if page.Status > 0 {
			w.WriteHeader(page.Status)
		}
		io.WriteString(w, page.Content)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.HTTP.Close()
}

// AddPage serves HTML content at a path.
func (s *Server) AddPage(path, content string) {
	s.AddPageWithType(path, content, "text/html; charset=utf-8")
}

// AddPageWithType serves content at a path with an explicit content type.
func (s *Server) AddPageWithType(path, content, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = &Page{Content: content, ContentType: contentType, Status: 200}
}

// SetRobots serves a robots.txt body.
func (s *Server) SetRobots(content string) {
	s.AddPageWithType("/robots.txt", content, "text/plain")
}

// SetDelay makes a path respond slowly.
func (s *Server) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

// SetError makes a path answer with a bare status code.
func (s *Server) SetError(path string, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[path] = statusCode
}

// SetRedirect makes a path redirect permanently.
func (s *Server) SetRedirect(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
}

// Hits returns how many times a path was requested.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[path]
}

// TotalHits returns the request count across all paths.
func (s *Server) TotalHits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// PageWithLinks builds a small HTML page holding one anchor per href.
func PageWithLinks(title string, hrefs ...string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head><title>")
	sb.WriteString(title)
	sb.WriteString("</title></head>\n<body>\n<h1>")
	sb.WriteString(title)
	sb.WriteString("</h1>\n")
	for i, href := range hrefs {
		fmt.Fprintf(&sb, "<a href=%q>Link %d</a>\n", href, i+1)
	}
	sb.WriteString("</body>\n</html>")
	return sb.String()
}

// PageWithBacklink builds a page containing one outbound link wrapped in
// surrounding prose, the shape backlink discovery looks for.
func PageWithBacklink(title, targetURL, anchor, before, after string, nofollow bool) string {
	rel := ""
	if nofollow {
		rel = ` rel="nofollow"`
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<p>%s <a href=%q%s>%s</a> %s</p>
</body>
</html>`, title, before, targetURL, rel, anchor, after)
}

// BuildSite installs a small interlinked site:
//
//	/            links to /about, /services, /blog, /private/secret,
//	             /report.pdf, /data and an unresolvable external host
//	/about       links back home and to /contact
//	/services    plain page
//	/contact     plain page
//	/blog        links to /blog/post-1
//	/blog/post-1 plain page
//	/old         redirects to /about
//	/broken      answers 500
//	/data        answers JSON
//
// robots.txt disallows /private/.
func (s *Server) BuildSite() {
	base := s.URL()

	s.AddPage("/", PageWithLinks("Home",
		base+"/about",
		base+"/services",
		base+"/blog",
		base+"/private/secret",
		base+"/report.pdf",
		base+"/data",
		"https://external-site.invalid/resource",
	))
	s.AddPage("/about", PageWithLinks("About Us", base+"/", base+"/contact"))
	s.AddPage("/services", PageWithLinks("Services"))
	s.AddPage("/contact", PageWithLinks("Contact"))
	s.AddPage("/blog", PageWithLinks("Blog", base+"/blog/post-1"))
	s.AddPage("/blog/post-1", PageWithLinks("First Post"))
	s.AddPage("/private/secret", PageWithLinks("Secret"))
	s.AddPageWithType("/data", `{"ok":true}`, "application/json")
	s.SetRedirect("/old", "/about")
	s.SetError("/broken", http.StatusInternalServerError)
	s.SetRobots("User-agent: *\nDisallow: /private/\n")
}
