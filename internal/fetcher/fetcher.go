package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/crawlerr"
)

// DefaultUserAgent identifies the crawler when no pool is configured.
const DefaultUserAgent = "RatCrawler/1.0"

// Options configures a Client.
type Options struct {
	// UserAgents is the pool one agent is drawn from per request.
	UserAgents []string

	// Timeout bounds each request including redirects and body read.
	Timeout time.Duration

	// Delay is the pause taken after every fetch. Zero disables pacing.
	Delay time.Duration

	// MaxRedirects bounds how many redirect hops are followed.
	MaxRedirects int

	// MaxBodySize caps the decoded body size in bytes.
	MaxBodySize int64
}

// Client fetches URLs following redirects manually so the full chain can
// be recorded.
type Client struct {
	client    *http.Client
	transport *http.Transport
	opts      Options
}

// New creates an HTTP client with pooled connections.
func New(opts Options) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{},
	}

	return &Client{
		transport: transport,
		opts:      opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Stop here so the redirect loop in Fetch sees each hop.
				return http.ErrUseLastResponse
			},
		},
	}
}

// NewCrawlClient builds the client the crawl pipeline uses: rotating user
// agents and a pause after every request.
func NewCrawlClient(cfg *config.Config) *Client {
	return New(Options{
		UserAgents:   cfg.UserAgents,
		Timeout:      cfg.RequestTimeout(),
		Delay:        cfg.RequestDelay(),
		MaxRedirects: cfg.MaxRedirects,
		MaxBodySize:  cfg.MaxResponseSize,
	})
}

// NewBacklinkClient builds the client the backlink pipeline uses: one
// fixed identifying agent, a longer timeout, and no built-in pause since
// the pipeline paces itself.
func NewBacklinkClient(cfg *config.Config) *Client {
	return New(Options{
		UserAgents:   []string{cfg.BacklinkUserAgent},
		Timeout:      cfg.BacklinkTimeout(),
		MaxRedirects: cfg.MaxRedirects,
		MaxBodySize:  cfg.MaxResponseSize,
	})
}

// HTTPClient exposes the underlying client so other components can share
// its connection pool.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// Fetch retrieves a URL, following up to MaxRedirects hops. The returned
// error is one of the crawlerr taxonomy types; any received HTTP response
// is returned as a Response regardless of status code.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	defer c.pause(ctx)

	start := time.Now()
	chain := []string{}
	currentURL := rawURL

	for hop := 0; hop <= c.opts.MaxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			return nil, &crawlerr.NetworkError{URL: currentURL, Err: err}
		}
		c.setHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, classify(currentURL, err)
		}

		if location := redirectLocation(resp); location != "" {
			resp.Body.Close()

			next, err := resolveRedirect(currentURL, location)
			if err != nil {
				return nil, &crawlerr.NetworkError{
					URL: currentURL,
					Err: fmt.Errorf("invalid redirect location %q: %w", location, err),
				}
			}

			chain = append(chain, currentURL)
			currentURL = next
			continue
		}

		body, err := c.readBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, classify(currentURL, err)
		}

		if len(chain) > 0 {
			chain = append(chain, currentURL)
		}

		return &Response{
			RequestURL:    rawURL,
			FinalURL:      currentURL,
			StatusCode:    resp.StatusCode,
			Status:        resp.Status,
			Headers:       resp.Header,
			ContentType:   mediaType(resp.Header.Get("Content-Type")),
			Body:          body,
			BodySize:      int64(len(body)),
			RedirectChain: chain,
			ResponseTime:  time.Since(start),
		}, nil
	}

	return nil, &crawlerr.NetworkError{
		URL: rawURL,
		Err: fmt.Errorf("more than %d redirects", c.opts.MaxRedirects),
	}
}

// setHeaders applies the browser-like header set with a user agent drawn
// from the pool.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func (c *Client) userAgent() string {
	if len(c.opts.UserAgents) == 0 {
		return DefaultUserAgent
	}
	return c.opts.UserAgents[rand.Intn(len(c.opts.UserAgents))]
}

// readBody decodes the body according to Content-Encoding and caps it at
// MaxBodySize decoded bytes.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	if c.opts.MaxBodySize > 0 {
		reader = io.LimitReader(reader, c.opts.MaxBodySize)
	}
	return io.ReadAll(reader)
}

// pause sleeps for the configured delay, waking early on cancellation.
func (c *Client) pause(ctx context.Context) {
	if c.opts.Delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.opts.Delay):
	}
}

// classify maps a transport failure onto the error taxonomy.
func classify(rawURL string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &crawlerr.TimeoutError{URL: rawURL, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &crawlerr.TimeoutError{URL: rawURL, Err: err}
	}
	return &crawlerr.NetworkError{URL: rawURL, Err: err}
}

// redirectLocation returns the Location target of a 3xx response, or ""
// when the response is not a followable redirect.
func redirectLocation(resp *http.Response) string {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return ""
	}
	return resp.Header.Get("Location")
}

func resolveRedirect(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(loc).String(), nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
