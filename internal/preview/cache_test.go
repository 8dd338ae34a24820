package preview

import (
	"context"
	"errors"
	"testing"
)

// memStore is an in-memory SessionStore with controllable failures.
type memStore struct {
	data     map[string]string
	getCalls int
	setCalls int
	fail     bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.getCalls++
	if m.fail {
		return "", false, errors.New("store unavailable")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.setCalls++
	if m.fail {
		return errors.New("store unavailable")
	}
	m.data[key] = value
	return nil
}

func TestCacheSetThenGet(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com/a", "https://cdn.example.com/a.jpg")

	got, ok := cache.Get(ctx, "https://example.com/a")
	if !ok || got != "https://cdn.example.com/a.jpg" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if store.getCalls != 0 {
		t.Errorf("memory tier hit should not consult the store, got %d reads", store.getCalls)
	}
	if store.data["https://example.com/a"] != "https://cdn.example.com/a.jpg" {
		t.Error("write should reach the durable tier")
	}
}

func TestCacheNegativeOutcomeIsCached(t *testing.T) {
	t.Parallel()

	cache := NewCache(newMemStore(), nil)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com/none", "")

	got, ok := cache.Get(ctx, "https://example.com/none")
	if !ok {
		t.Fatal("explicit none must be a cache hit, not a miss")
	}
	if got != "" {
		t.Errorf("got %q, want empty value", got)
	}
}

func TestCachePopulatesMemoryFromStore(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.data["https://example.com/b"] = "https://cdn.example.com/b.png"
	cache := NewCache(store, nil)
	ctx := context.Background()

	if got, ok := cache.Get(ctx, "https://example.com/b"); !ok || got != "https://cdn.example.com/b.png" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	// Second read must be served from memory.
	if _, ok := cache.Get(ctx, "https://example.com/b"); !ok {
		t.Fatal("second Get missed")
	}
	if store.getCalls != 1 {
		t.Errorf("store reads = %d, want 1", store.getCalls)
	}
}

func TestCacheDegradesWhenStoreFails(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.fail = true
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com/c", "https://cdn.example.com/c.jpg")

	// The durable tier is down, but the in-process tier still answers.
	if got, ok := cache.Get(ctx, "https://example.com/c"); !ok || got == "" {
		t.Fatalf("Get = %q, %v; in-process tier should survive store failure", got, ok)
	}
}

func TestCacheNilStore(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil, nil)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "https://example.com/x"); ok {
		t.Fatal("unexpected hit")
	}
	cache.Set(ctx, "https://example.com/x", "v")
	if got, ok := cache.Get(ctx, "https://example.com/x"); !ok || got != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
}
