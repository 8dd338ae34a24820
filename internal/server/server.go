// Package server wires the HTTP application: the grid page, the
// visibility-driven thumbnail endpoints, the composing reader, and the
// image proxy.
package server

import (
	"context"
	"database/sql"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hngrid/internal/compose"
	"hngrid/internal/config"
	"hngrid/internal/fetch"
	"hngrid/internal/listing"
	"hngrid/internal/preview"
	"hngrid/internal/store"
)

const sessionCookieName = "hngrid_session"

// App wires handlers, dependencies, and background loops for the HTTP
// server.
type App struct {
	cfg      *config.Config
	db       *sql.DB
	tmpl     *template.Template
	fetcher  *fetch.Client
	composer *compose.Composer
	primary  listing.Source
	fallback listing.Source
	log      *slog.Logger

	sessionMu sync.Mutex
	sessions  map[string]*session

	listingMu   sync.Mutex
	listingBest *listing.Listing
	listingAt   time.Time

	proxyOnce sync.Once
	proxyHTTP *http.Client

	baseCtx context.Context
}

// session is the per-browsing-session state: the two-tier thumbnail cache,
// the fetch scheduler feeding it, and the delivered outcomes awaiting
// pickup by the page.
type session struct {
	scheduler *preview.Scheduler
	mu        sync.Mutex
	results   map[string]preview.Outcome
	lastSeen  time.Time
}

// New constructs an App. ctx bounds background work spawned on behalf of
// sessions.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, tmpl *template.Template, log *slog.Logger) *App {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = slog.Default()
	}
	fetcher := fetch.New(cfg.FetchRPS, cfg.FetchTimeout, fetch.WithUserAgent(cfg.UserAgent))

	return &App{
		cfg:      cfg,
		db:       db,
		tmpl:     tmpl,
		fetcher:  fetcher,
		composer: compose.New(fetcher, log),
		primary:  listing.NewHTMLSource(fetcher, cfg.FrontPageURL),
		fallback: listing.NewFeedSource(fetcher, cfg.FeedURL),
		log:      log,
		sessions: make(map[string]*session),
		baseCtx:  ctx,
	}
}

// Routes returns the fully configured application HTTP handler.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("POST /thumbs/visible", a.handleThumbVisible)
	mux.HandleFunc("GET /thumbs/poll", a.handleThumbPoll)
	mux.HandleFunc("GET /reader", a.handleReader)
	mux.HandleFunc("GET /reader/article", a.handleReaderArticle)
	mux.HandleFunc("GET /image-proxy", a.handleImageProxy)

	return a.withSession(a.withLogging(mux))
}

// StartBackgroundLoops starts the session sweep goroutine.
func (a *App) StartBackgroundLoops() {
	go a.sweepLoop()
}

func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		a.log.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
	})
}

// withSession makes sure every request carries the session cookie that
// scopes the durable thumbnail tier.
func (a *App) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(sessionCookieName); err != nil {
			cookie := &http.Cookie{
				Name:     sessionCookieName,
				Value:    uuid.NewString(),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			}
			http.SetCookie(w, cookie)
			r.AddCookie(cookie)
		}
		next.ServeHTTP(w, r)
	})
}

// sessionFor returns the state for the request's session, creating it on
// first use. Each session owns its own scheduler so one viewer's queue
// cannot starve another's.
func (a *App) sessionFor(r *http.Request) *session {
	id := "anonymous"
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		id = cookie.Value
	}

	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	s, ok := a.sessions[id]
	if !ok {
		cache := preview.NewCache(store.ForSession(a.db, id), a.log)
		resolver := preview.NewResolver(cache, a.fetcher, a.log)
		s = &session{results: make(map[string]preview.Outcome)}
		s.scheduler = preview.NewScheduler(a.baseCtx, a.cfg.ThumbWorkers, resolver.Resolve, s.deliver, a.log)
		a.sessions[id] = s
	}
	s.lastSeen = time.Now()
	return s
}

// deliver is the presentation callback: it parks the outcome until the page
// polls for it.
func (s *session) deliver(handle string, outcome preview.Outcome) {
	if handle == "" {
		return
	}
	s.mu.Lock()
	s.results[handle] = outcome
	s.mu.Unlock()
}

// frontPage serves the listing from a short-lived cache, trying the HTML
// source first and the feed mirror when that fails.
func (a *App) frontPage(ctx context.Context) (*listing.Listing, error) {
	a.listingMu.Lock()
	defer a.listingMu.Unlock()

	if a.listingBest != nil && time.Since(a.listingAt) < a.cfg.ListingCacheTTL {
		return a.listingBest, nil
	}

	l, err := a.primary.FrontPage(ctx)
	if err != nil {
		a.log.Warn("front page fetch failed, trying feed mirror", "err", err)
		l, err = a.fallback.FrontPage(ctx)
		if err != nil {
			if a.listingBest != nil {
				return a.listingBest, nil
			}
			return nil, err
		}
	}

	a.listingBest = l
	a.listingAt = time.Now()
	return l, nil
}

// sweepLoop prunes expired thumbnail rows and idle in-memory sessions.
func (a *App) sweepLoop() {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.baseCtx.Done():
			return
		case <-ticker.C:
		}

		if n, err := store.SweepExpired(a.baseCtx, a.db, a.cfg.SessionTTL); err != nil {
			a.log.Warn("thumb sweep failed", "err", err)
		} else if n > 0 {
			a.log.Info("swept expired thumbs", "rows", n)
		}

		cutoff := time.Now().Add(-a.cfg.SessionTTL)
		a.sessionMu.Lock()
		for id, s := range a.sessions {
			if s.lastSeen.Before(cutoff) {
				delete(a.sessions, id)
			}
		}
		a.sessionMu.Unlock()
	}
}
