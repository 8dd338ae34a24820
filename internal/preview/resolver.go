package preview

import (
	"context"
	"log/slog"
	"net/url"

	"hngrid/internal/fetch"
)

// Outcome is the result of resolving a page's preview image. Negative
// outcomes are ordinary values, not errors: a page with no usable image and
// a page that failed to fetch both come back as !Found. That single policy
// replaces scattered error suppression at the call sites.
type Outcome struct {
	ImageURL string
	Found    bool
}

// Resolver turns a page URL into a preview image URL via cache, fetch, and
// extraction. It performs no request deduplication of its own: the scheduler
// enqueues each target at most once per session.
type Resolver struct {
	cache   *Cache
	fetcher *fetch.Client
	log     *slog.Logger
}

// NewResolver wires a Resolver from its collaborators.
func NewResolver(cache *Cache, fetcher *fetch.Client, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cache: cache, fetcher: fetcher, log: log}
}

// Resolve returns the preview image outcome for pageURL, consulting the
// cache first and writing the outcome back before returning. Fetch failures
// of any kind — network, timeout, bad status — resolve to the negative
// outcome and are cached as such for the rest of the session.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) Outcome {
	if value, ok := r.cache.Get(ctx, pageURL); ok {
		return Outcome{ImageURL: value, Found: value != ""}
	}

	imageURL := ""
	res, err := r.fetcher.Get(ctx, pageURL)
	if err != nil {
		if fetch.IsTimeout(err) {
			r.log.Debug("thumbnail fetch timed out", "url", pageURL)
		} else {
			r.log.Debug("thumbnail fetch failed", "url", pageURL, "err", err)
		}
	} else if res.Body != "" {
		base, parseErr := url.Parse(res.FinalURL)
		if parseErr != nil {
			base = nil
		}
		if src, ok := ExtractImage(res.Body, base); ok {
			imageURL = src
		}
	}

	r.cache.Set(ctx, pageURL, imageURL)
	return Outcome{ImageURL: imageURL, Found: imageURL != ""}
}
