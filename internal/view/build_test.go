package view

import (
	"strings"
	"testing"

	"hngrid/internal/listing"
)

func TestBuildCard(t *testing.T) {
	t.Parallel()

	card := BuildCard(listing.Story{
		ID:     "42",
		Rank:   3,
		Title:  "Show HN: A thing",
		URL:    "https://thing.example.com/",
		Domain: "thing.example.com",
		Tag:    "Show HN",
	})

	if !card.WantsThumb {
		t.Error("external story with domain should want a thumbnail")
	}
	if !strings.Contains(card.FaviconURL, "thing.example.com") {
		t.Errorf("FaviconURL = %q", card.FaviconURL)
	}
	if card.Rank != 3 || card.Tag != "Show HN" {
		t.Errorf("card = %+v", card)
	}
}

func TestBuildCardSelfStorySkipsThumb(t *testing.T) {
	t.Parallel()

	card := BuildCard(listing.Story{
		ID:     "7",
		Title:  "Ask HN: Anything",
		URL:    "https://news.ycombinator.com/item?id=7",
		IsSelf: true,
	})
	if card.WantsThumb {
		t.Error("self-referential story must not want a thumbnail")
	}
	if card.FaviconURL != "" {
		t.Errorf("FaviconURL = %q, want empty without a domain", card.FaviconURL)
	}
}

func TestBuildReader(t *testing.T) {
	t.Parallel()

	external := BuildReader("T", "https://example.com/a?b=1", "https://news.ycombinator.com/item?id=1", false)
	if !strings.HasPrefix(external.ArticleSrc, "/reader/article?url=") {
		t.Errorf("ArticleSrc = %q", external.ArticleSrc)
	}
	if !strings.Contains(external.ArticleSrc, "%3Fb%3D1") {
		t.Errorf("ArticleSrc should escape the article URL, got %q", external.ArticleSrc)
	}

	self := BuildReader("T", "https://news.ycombinator.com/item?id=1", "https://news.ycombinator.com/item?id=1", true)
	if self.ArticleSrc != self.ArticleURL {
		t.Errorf("self ArticleSrc = %q, want direct discussion URL", self.ArticleSrc)
	}
}
