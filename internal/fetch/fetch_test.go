package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	return New(100, 5*time.Second, WithTransport(rt))
}

func textResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestGetReturnsBodyAndFinalURL(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return textResponse(req, http.StatusOK, "<html>hello</html>"), nil
	})

	res, err := client.Get(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Body != "<html>hello</html>" {
		t.Errorf("Body = %q", res.Body)
	}
	if res.FinalURL != "https://example.com/page" {
		t.Errorf("FinalURL = %q", res.FinalURL)
	}
}

func TestGetFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "moved here")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(100, 5*time.Second)
	res, err := client.Get(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Body != "moved here" {
		t.Errorf("Body = %q", res.Body)
	}
	if !strings.HasSuffix(res.FinalURL, "/new") {
		t.Errorf("FinalURL = %q, want post-redirect URL", res.FinalURL)
	}
}

func TestGetRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return textResponse(req, http.StatusNotFound, "nope"), nil
	})

	_, err := client.Get(context.Background(), "https://example.com/missing")
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("err = %v, want ErrHTTPStatus", err)
	}
}

func TestGetTimesOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(100, 50*time.Millisecond)
	_, err := client.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Get: expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false, want true", err)
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	if IsTimeout(nil) {
		t.Error("IsTimeout(nil) = true")
	}
	if IsTimeout(errors.New("plain")) {
		t.Error("IsTimeout(plain error) = true")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("IsTimeout(DeadlineExceeded) = false")
	}
}
