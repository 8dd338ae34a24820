package listing

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"hngrid/internal/fetch"
)

var (
	itemIDRe = regexp.MustCompile(`item\?id=(\d+)`)
	pointsRe = regexp.MustCompile(`Points:\s*(\d+)`)
)

// FeedSource reads the front page from its RSS mirror. It carries less
// detail than the listing markup (no rank styling, points only when the
// mirror includes them) and is used when the listing fetch fails.
type FeedSource struct {
	fetcher *fetch.Client
	feedURL string
}

// NewFeedSource builds a FeedSource over the mirror at feedURL.
func NewFeedSource(fetcher *fetch.Client, feedURL string) *FeedSource {
	return &FeedSource{fetcher: fetcher, feedURL: feedURL}
}

// FrontPage fetches and parses the feed mirror.
func (s *FeedSource) FrontPage(ctx context.Context) (*Listing, error) {
	res, err := s.fetcher.Get(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch front page feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse front page feed: %w", err)
	}

	listing := &Listing{}
	now := time.Now()
	for i, item := range feed.Items {
		story := feedStory(item, i+1, now)
		if story.URL == "" {
			continue
		}
		listing.Stories = append(listing.Stories, story)
	}
	return listing, nil
}

func feedStory(item *gofeed.Item, rank int, now time.Time) Story {
	id := ""
	if m := itemIDRe.FindStringSubmatch(item.GUID); m != nil {
		id = m[1]
	} else if m := itemIDRe.FindStringSubmatch(item.Link); m != nil {
		id = m[1]
	}

	link := strings.TrimSpace(item.Link)
	isSelf := strings.Contains(link, "ycombinator.com/item")
	domain := ""
	if u, err := url.Parse(link); err == nil {
		domain = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	if isSelf {
		domain = ""
	}

	points := ""
	if m := pointsRe.FindStringSubmatch(item.Description); m != nil {
		points = m[1] + " points"
	}

	age := ""
	published := time.Time{}
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
		age = relativeAge(published, now)
	}

	return Story{
		ID:           id,
		Rank:         rank,
		Title:        strings.TrimSpace(item.Title),
		URL:          link,
		Domain:       domain,
		IsSelf:       isSelf,
		Points:       points,
		Age:          age,
		CommentsText: "discuss",
		CommentsURL:  hnBase + "item?id=" + id,
		Tag:          storyTag(item.Title),
		PublishedAt:  published,
	}
}

func relativeAge(t, now time.Time) string {
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}
}
