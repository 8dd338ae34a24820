package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	proxyMaxURLLength  = 2048
	proxyMaxBodyBytes  = 8 << 20
	proxySniffBytes    = 512
	proxyMaxRedirects  = 10
	proxyTimeout       = 20 * time.Second
	proxyCacheFallback = "public, max-age=3600"
)

var (
	errEmptyTarget   = errors.New("url is required")
	errBadTarget     = errors.New("invalid url")
	errBlockedTarget = errors.New("target not allowed")
)

// checkProxyTarget vets a client-supplied URL before the server fetches it
// on the client's behalf. Only public http(s) hosts pass.
func checkProxyTarget(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errEmptyTarget
	}
	if len(raw) > proxyMaxURLLength {
		return errBadTarget
	}
	target, err := url.Parse(raw)
	if err != nil {
		return errBadTarget
	}
	if !isAllowedTarget(target) {
		return errBlockedTarget
	}
	return nil
}

func isAllowedTarget(target *url.URL) bool {
	if target == nil {
		return false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return false
	}
	if target.User != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(target.Hostname()), ".")
	if host == "" || host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !isInternalIP(ip)
	}
	return true
}

// isAllowedResolvedTarget additionally resolves the hostname so a public
// name cannot smuggle in an internal address.
func isAllowedResolvedTarget(ctx context.Context, target *url.URL) bool {
	if !isAllowedTarget(target) {
		return false
	}
	host := target.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		return !isInternalIP(ip)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return false
	}
	for _, addr := range addrs {
		if addr.IP == nil || isInternalIP(addr.IP) {
			return false
		}
	}
	return true
}

func isInternalIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified()
}

func newProxyClient() *http.Client {
	return &http.Client{
		Timeout: proxyTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= proxyMaxRedirects {
				return errors.New("stopped after 10 redirects")
			}
			if !isAllowedTarget(req.URL) {
				return errors.New("redirect blocked")
			}
			return nil
		},
	}
}

// handleImageProxy fetches a vetted remote image and forwards it so thumb
// and article images load without mixed-content or hotlink problems.
func (a *App) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if err := checkProxyTarget(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := url.Parse(raw)
	if err != nil || !isAllowedResolvedTarget(r.Context(), target) {
		http.Error(w, errBlockedTarget.Error(), http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")

	resp, err := a.proxyClient().Do(req)
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		a.log.Debug("image proxy upstream non-2xx", "status", resp.StatusCode, "host", target.Host)
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	reader := bufio.NewReader(resp.Body)
	sniff, err := reader.Peek(proxySniffBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "upstream read failed", http.StatusBadGateway)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		detected := http.DetectContentType(sniff)
		if !strings.HasPrefix(detected, "image/") {
			http.Error(w, "upstream did not return image content", http.StatusUnsupportedMediaType)
			return
		}
		contentType = detected
	}

	body, err := io.ReadAll(io.LimitReader(reader, proxyMaxBodyBytes+1))
	if err != nil {
		http.Error(w, "upstream read failed", http.StatusBadGateway)
		return
	}
	if len(body) > proxyMaxBodyBytes {
		http.Error(w, "upstream image too large", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if cacheControl := resp.Header.Get("Cache-Control"); cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	} else {
		w.Header().Set("Cache-Control", proxyCacheFallback)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

// proxyClient is lazily shared across requests.
func (a *App) proxyClient() *http.Client {
	a.proxyOnce.Do(func() {
		if a.proxyHTTP == nil {
			a.proxyHTTP = newProxyClient()
		}
	})
	return a.proxyHTTP
}
