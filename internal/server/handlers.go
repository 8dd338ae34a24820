package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"hngrid/internal/listing"
	"hngrid/internal/view"
)

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	l, err := a.frontPage(r.Context())
	if err != nil {
		a.log.Error("front page unavailable", "err", err)
		http.Error(w, "front page unavailable", http.StatusBadGateway)
		return
	}
	a.render(w, "grid.html", view.BuildGrid(l))
}

// thumbState is one entry of the poll response.
type thumbState struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// handleThumbVisible is the visibility trigger: the page reports a card
// that scrolled into view and the session's scheduler takes it from there.
func (a *App) handleThumbVisible(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	target := r.PostFormValue("url")
	handle := r.PostFormValue("card")
	if target == "" || handle == "" {
		http.Error(w, "url and card are required", http.StatusBadRequest)
		return
	}
	if err := checkProxyTarget(target); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := a.sessionFor(r)
	queued := s.scheduler.OnBecameVisible(target, handle)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"queued": queued})
}

// handleThumbPoll reports resolved outcomes for the requested card handles.
// Cards still in flight come back as pending.
func (a *App) handleThumbPoll(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	s := a.sessionFor(r)

	out := make(map[string]thumbState, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		outcome, ok := s.results[id]
		switch {
		case !ok:
			out[id] = thumbState{Status: "pending"}
		case outcome.Found:
			out[id] = thumbState{Status: "ok", URL: outcome.ImageURL}
		default:
			out[id] = thumbState{Status: "none"}
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleReader renders the split reader page for one story.
func (a *App) handleReader(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	l, err := a.frontPage(r.Context())
	if err != nil {
		http.Error(w, "front page unavailable", http.StatusBadGateway)
		return
	}
	var story *listing.Story
	for i := range l.Stories {
		if l.Stories[i].ID == id {
			story = &l.Stories[i]
			break
		}
	}
	if story == nil {
		http.Error(w, "story not found", http.StatusNotFound)
		return
	}
	a.render(w, "reader.html", view.BuildReader(story.Title, story.URL, story.CommentsURL, story.IsSelf))
}

// handleReaderArticle serves the composed article document. Scripts are
// disabled and the response is sandboxed so third-party markup stays inert.
func (a *App) handleReaderArticle(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if err := checkProxyTarget(target); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc := a.composer.ComposePage(r.Context(), target)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "sandbox allow-popups; script-src 'none'")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write([]byte(doc.Markup))
}

func (a *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.tmpl.ExecuteTemplate(w, name, data); err != nil {
		a.log.Error("template render failed", "template", name, "err", err)
	}
}
