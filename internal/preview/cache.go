package preview

import (
	"context"
	"log/slog"
	"sync"
)

// SessionStore is the durable tier behind the in-process cache. It is keyed
// by page URL within one browsing session and stores the resolved image URL,
// with the empty string standing for "resolved to none". Implementations are
// best-effort: a failed read or write is reported as an error but the caller
// will carry on without it.
type SessionStore interface {
	Get(ctx context.Context, pageURL string) (value string, ok bool, err error)
	Set(ctx context.Context, pageURL, value string) error
}

// Cache is the two-tier thumbnail cache: a map in front of a SessionStore.
// Once a key is written its value is final for the session; absence means
// "not yet resolved", never "resolve again".
type Cache struct {
	mu    sync.Mutex
	mem   map[string]string
	store SessionStore
	log   *slog.Logger
}

// NewCache builds a Cache over store. A nil store leaves the cache
// in-process only.
func NewCache(store SessionStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		mem:   make(map[string]string),
		store: store,
		log:   log,
	}
}

// Get returns the cached image URL for pageURL. The second result reports
// whether the key has been resolved at all; a resolved key with an empty
// value means "no image". A durable-tier hit is copied into the in-process
// tier, and a durable-tier failure silently degrades to a miss.
func (c *Cache) Get(ctx context.Context, pageURL string) (string, bool) {
	c.mu.Lock()
	value, ok := c.mem[pageURL]
	c.mu.Unlock()
	if ok {
		return value, true
	}

	if c.store == nil {
		return "", false
	}
	value, ok, err := c.store.Get(ctx, pageURL)
	if err != nil {
		c.log.Debug("thumbnail store read failed", "url", pageURL, "err", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	c.mu.Lock()
	c.mem[pageURL] = value
	c.mu.Unlock()
	return value, true
}

// Set records the resolution outcome for pageURL in both tiers. Pass the
// empty string for a negative outcome so the page is never re-fetched this
// session.
func (c *Cache) Set(ctx context.Context, pageURL, value string) {
	c.mu.Lock()
	c.mem[pageURL] = value
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, pageURL, value); err != nil {
		c.log.Debug("thumbnail store write failed", "url", pageURL, "err", err)
	}
}
