// Package compose rewrites a fetched article page into a self-contained
// document. The reader pane renders articles by direct markup injection into
// a sandboxed frame, which sidesteps per-origin framing restrictions but
// also means the sandbox refuses to load the page's external stylesheets.
// Compose therefore fetches every linked stylesheet itself and inlines its
// text, leaving a document that renders without reaching for cross-origin
// CSS.
package compose

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"hngrid/internal/fetch"
)

// Document is a composed article: markup safe to inject into the sandboxed
// reader frame, plus the base URL it was resolved against.
type Document struct {
	Markup  string
	BaseURL *url.URL
}

var (
	headOpenRe  = regexp.MustCompile(`(?i)<head\b[^>]*>`)
	headCloseRe = regexp.MustCompile(`(?i)</head>`)
	linkTagRe   = regexp.MustCompile(`(?i)<link\b[^>]*\brel=["']stylesheet["'][^>]*>`)
	hrefAttrRe  = regexp.MustCompile(`(?i)\bhref\s*=\s*["']([^"']+)["']`)
	cssURLRe    = regexp.MustCompile(`(?i)url\(\s*["']?([^"')]+?)["']?\s*\)`)
)

// containmentStyle keeps a composed page from forcing horizontal scroll in
// its pane. Only the root elements are touched; everything else is the
// page's own styling.
const containmentStyle = `<style>html,body{max-width:100%!important;overflow-x:hidden!important}</style>`

// Composer inlines stylesheets into fetched pages.
type Composer struct {
	fetcher *fetch.Client
	log     *slog.Logger
}

// New returns a Composer fetching stylesheets through fetcher.
func New(fetcher *fetch.Client, log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{fetcher: fetcher, log: log}
}

// ComposePage fetches pageURL and composes the response into a Document.
// When the page itself cannot be fetched the result is a small placeholder
// document linking out to the original, never an error.
func (c *Composer) ComposePage(ctx context.Context, pageURL string) *Document {
	res, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		if fetch.IsTimeout(err) {
			c.log.Info("article fetch timed out", "url", pageURL)
		} else {
			c.log.Info("article fetch failed", "url", pageURL, "err", err)
		}
		return placeholderDocument(pageURL)
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil {
		base, _ = url.Parse(pageURL)
	}
	return c.Compose(ctx, res.Body, base)
}

// Compose rewrites markup into a self-contained document resolved against
// base: a <base> element is injected, every stylesheet link is replaced by
// its fetched text with relative url(...) references rewritten, and a root
// containment rule is appended. Stylesheets that fail to fetch keep their
// original <link>; composition as a whole never fails.
func (c *Composer) Compose(ctx context.Context, markup string, base *url.URL) *Document {
	markup = insertBaseTag(markup, base)
	markup = c.inlineStylesheets(ctx, markup, base)
	markup = appendContainment(markup)
	return &Document{Markup: markup, BaseURL: base}
}

type sheetRef struct {
	tag    string
	cssURL string
}

// inlineStylesheets fetches every stylesheet link concurrently and replaces
// each link tag with an inline <style> block once all fetches have settled.
func (c *Composer) inlineStylesheets(ctx context.Context, markup string, base *url.URL) string {
	var sheets []sheetRef
	for _, tag := range linkTagRe.FindAllString(markup, -1) {
		hm := hrefAttrRe.FindStringSubmatch(tag)
		if hm == nil {
			continue
		}
		cssURL, ok := resolveRef(base, hm[1])
		if !ok {
			continue
		}
		sheets = append(sheets, sheetRef{tag: tag, cssURL: cssURL})
	}
	if len(sheets) == 0 {
		return markup
	}

	// Fetches run in full parallel; each slot holds only its own
	// replacement text, so the goroutines share no mutable state. The
	// document is rewritten only after every fetch has settled.
	replacements := make([]string, len(sheets))
	g, gctx := errgroup.WithContext(ctx)
	for i, sheet := range sheets {
		g.Go(func() error {
			res, err := c.fetcher.Get(gctx, sheet.cssURL)
			if err != nil {
				// Leave this one sheet un-inlined.
				c.log.Debug("stylesheet fetch failed", "url", sheet.cssURL, "err", err)
				return nil
			}
			replacements[i] = "<style>\n" + rewriteCSSURLs(res.Body, sheet.cssURL) + "\n</style>"
			return nil
		})
	}
	_ = g.Wait()

	for i, sheet := range sheets {
		if replacements[i] == "" {
			continue
		}
		markup = strings.Replace(markup, sheet.tag, replacements[i], 1)
	}
	return markup
}

// rewriteCSSURLs resolves relative url(...) references in cssText against
// the stylesheet's own URL. Absolute, protocol-relative, and data: targets
// pass through untouched.
func rewriteCSSURLs(cssText, cssURL string) string {
	sheetBase, err := url.Parse(cssURL)
	if err != nil {
		return cssText
	}
	return cssURLRe.ReplaceAllStringFunc(cssText, func(match string) string {
		m := cssURLRe.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		ref := strings.TrimSpace(m[1])
		lower := strings.ToLower(ref)
		if strings.HasPrefix(lower, "data:") ||
			strings.HasPrefix(lower, "http:") || strings.HasPrefix(lower, "https:") ||
			strings.HasPrefix(ref, "//") {
			return match
		}
		resolved, resolveErr := sheetBase.Parse(ref)
		if resolveErr != nil {
			return match
		}
		return `url("` + resolved.String() + `")`
	})
}

// insertBaseTag puts a <base> element as early as possible in the head so
// relative images, scripts, and anchors in the original markup still
// resolve. Links open outside the sandboxed pane.
func insertBaseTag(markup string, base *url.URL) string {
	if base == nil {
		return markup
	}
	baseTag := fmt.Sprintf(`<base href="%s" target="_blank">`, html.EscapeString(base.String()))
	if loc := headOpenRe.FindStringIndex(markup); loc != nil {
		return markup[:loc[1]] + "\n" + baseTag + markup[loc[1]:]
	}
	return baseTag + markup
}

func appendContainment(markup string) string {
	if loc := headCloseRe.FindStringIndex(markup); loc != nil {
		return markup[:loc[0]] + containmentStyle + markup[loc[0]:]
	}
	return markup + containmentStyle
}

// placeholderDocument is the only user-visible failure surface: a plain page
// offering the article's direct link.
func placeholderDocument(pageURL string) *Document {
	escaped := html.EscapeString(pageURL)
	markup := fmt.Sprintf(`<!DOCTYPE html><html><body style="font-family:Verdana,sans-serif;padding:40px;color:#555;text-align:center">
<p style="font-size:14px;margin-bottom:16px">Couldn&#39;t load this page inline.</p>
<a href="%s" target="_blank" rel="noopener" style="color:#ff6600;font-size:13px;font-weight:bold">Open in new tab &#8599;</a>
</body></html>`, escaped)
	base, _ := url.Parse(pageURL)
	return &Document{Markup: markup, BaseURL: base}
}

func resolveRef(base *url.URL, ref string) (string, bool) {
	if base == nil {
		u, err := url.Parse(ref)
		if err != nil || !u.IsAbs() {
			return "", false
		}
		return u.String(), true
	}
	u, err := base.Parse(ref)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
