// Package listing turns the Hacker News front page into story records. The
// primary source parses the listing HTML; a feed mirror acts as fallback
// when the listing itself cannot be fetched.
package listing

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"hngrid/internal/fetch"
)

// Story is one listing entry. URL always points at the linked article;
// self-referential stories (Ask HN, item links) carry IsSelf and use the
// discussion page as their article.
type Story struct {
	ID           string
	Rank         int
	Title        string
	URL          string
	Domain       string
	IsSelf       bool
	Points       string
	Age          string
	CommentsText string
	CommentsURL  string
	Tag          string
	PublishedAt  time.Time
}

// Listing is a parsed page of stories plus the link to the next page.
type Listing struct {
	Stories []Story
	MoreURL string
}

// Source produces listings. Both the HTML parser and the feed mirror
// implement it.
type Source interface {
	FrontPage(ctx context.Context) (*Listing, error)
}

const hnBase = "https://news.ycombinator.com/"

var commentCountRe = regexp.MustCompile(`(?i)\d+\s*comment|discuss`)

// HTMLSource parses the live listing markup.
type HTMLSource struct {
	fetcher  *fetch.Client
	frontURL string
}

// NewHTMLSource builds a Source over the listing at frontURL.
func NewHTMLSource(fetcher *fetch.Client, frontURL string) *HTMLSource {
	if frontURL == "" {
		frontURL = hnBase
	}
	return &HTMLSource{fetcher: fetcher, frontURL: frontURL}
}

// FrontPage fetches and parses the listing.
func (s *HTMLSource) FrontPage(ctx context.Context) (*Listing, error) {
	res, err := s.fetcher.Get(ctx, s.frontURL)
	if err != nil {
		return nil, fmt.Errorf("fetch front page: %w", err)
	}
	return ParseListing(res.Body)
}

// ParseListing extracts story records from listing markup. Rows that do not
// carry a title link are skipped rather than failing the page.
func ParseListing(markup string) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}

	listing := &Listing{}
	rank := 0
	doc.Find("tr.athing").Each(func(_ int, row *goquery.Selection) {
		anchor := row.Find("td.title span.titleline > a, td.title a.titlelink").First()
		if anchor.Length() == 0 {
			return
		}
		sub := row.Next()

		title := strings.TrimSpace(anchor.Text())
		href := anchor.AttrOr("href", "")
		isSelf := !strings.Contains(href, "://") || strings.Contains(href, "ycombinator.com/item")
		fullURL := href
		if isSelf {
			fullURL = hnBase + strings.TrimPrefix(href, "/")
		}

		id := row.AttrOr("id", "")
		rank++
		story := Story{
			ID:           id,
			Rank:         rank,
			Title:        title,
			URL:          fullURL,
			Domain:       strings.TrimSpace(row.Find(".sitestr").First().Text()),
			IsSelf:       isSelf,
			Points:       strings.TrimSpace(sub.Find(".score").First().Text()),
			Age:          strings.TrimSpace(sub.Find(".age").First().Text()),
			CommentsText: "discuss",
			CommentsURL:  hnBase + "item?id=" + id,
			Tag:          storyTag(title),
		}

		sub.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			// The listing separates the count with a no-break space.
			text := strings.TrimSpace(strings.ReplaceAll(link.Text(), " ", " "))
			if commentCountRe.MatchString(text) {
				story.CommentsText = text
				return false
			}
			return true
		})

		listing.Stories = append(listing.Stories, story)
	})

	if more := doc.Find("a.morelink").First(); more.Length() > 0 {
		if resolved, ok := resolveAgainst(hnBase, more.AttrOr("href", "")); ok {
			listing.MoreURL = resolved
		}
	}

	return listing, nil
}

func storyTag(title string) string {
	switch {
	case strings.HasPrefix(title, "Ask HN:"):
		return "Ask HN"
	case strings.HasPrefix(title, "Show HN:"):
		return "Show HN"
	case strings.HasPrefix(title, "Tell HN:"):
		return "Tell HN"
	case strings.HasPrefix(title, "Launch HN:"):
		return "Launch"
	default:
		return ""
	}
}

func resolveAgainst(base, ref string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	u, err := b.Parse(ref)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
