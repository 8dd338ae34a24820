// Package testutil holds shared helpers for exercising the grid server in
// tests: a throwaway sqlite database and a canned-page HTTP transport.
package testutil

import (
	"database/sql"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hngrid/internal/store"
)

// OpenTestDB opens and initializes a database under t.TempDir.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := store.Init(db); err != nil {
		_ = db.Close()
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// PageServer serves canned bodies by exact URL without a network. Unknown
// URLs get a 404.
type PageServer struct {
	mu    sync.RWMutex
	pages map[string]string
	hits  map[string]int
}

// NewPageServer builds a PageServer over url -> body.
func NewPageServer(pages map[string]string) *PageServer {
	if pages == nil {
		pages = make(map[string]string)
	}
	return &PageServer{pages: pages, hits: make(map[string]int)}
}

// SetPage adds or replaces a canned page.
func (p *PageServer) SetPage(url, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[url] = body
}

// Hits reports how many times url was requested.
func (p *PageServer) Hits(url string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hits[url]
}

// RoundTrip implements http.RoundTripper.
func (p *PageServer) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.String()

	p.mu.Lock()
	p.hits[key]++
	body, ok := p.pages[key]
	p.mu.Unlock()

	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}
