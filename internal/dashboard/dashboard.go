// Package dashboard serves read-only crawl statistics over HTTP. It reads
// the catalog directly and never invokes the engines, so it keeps answering
// while crawl and backlink sessions run elsewhere.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rat-crawler/ratcrawler/internal/storage"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	shutdownTimeout    = 5 * time.Second
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>ratcrawler</title></head>
<body>
<h1>ratcrawler</h1>
<ul>
<li><a href="/api/stats">stats</a></li>
<li><a href="/api/recent-crawls">recent crawls</a></li>
<li><a href="/api/health">health</a></li>
</ul>
</body>
</html>
`

// Server answers dashboard queries from the catalog.
type Server struct {
	db   *storage.Database
	log  *logrus.Entry
	http *http.Server
}

// New builds a dashboard server listening on the given port.
func New(db *storage.Database, port int) *Server {
	s := &Server{
		db:  db,
		log: logrus.WithField("component", "dashboard"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/recent-crawls", s.handleRecentCrawls)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           allowAnyOrigin(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table so callers can mount or test it directly.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("dashboard listening")
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(sctx); err != nil {
		return err
	}
	s.log.Info("dashboard stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.db.GetDashboardStats()
	if err != nil {
		s.fail(w, "loading stats", err)
		return
	}
	if stats == nil {
		// No supervisor tick has run yet; serve an empty snapshot.
		stats = &storage.DashboardStats{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentCrawls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	pages, err := s.db.RecentPages(limit)
	if err != nil {
		s.fail(w, "loading recent crawls", err)
		return
	}
	if pages == nil {
		pages = []*storage.PageSummary{}
	}
	s.writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("writing response failed")
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.WithError(err).Error(op + " failed")
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
}

// allowAnyOrigin lets browser dashboards served from other origins read the
// API.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
