package listing

import (
	"context"
	"strings"
	"testing"
	"time"

	"hngrid/internal/fetch"
	"hngrid/internal/testutil"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Hacker News: Front Page</title>
<link>https://news.ycombinator.com/</link>
<description>mirror</description>
<item>
  <title>Fast parsers in practice</title>
  <link>https://blog.example.com/fast-parsers</link>
  <guid isPermaLink="false">https://news.ycombinator.com/item?id=1001</guid>
  <pubDate>Mon, 31 Aug 2026 10:00:00 +0000</pubDate>
  <description><![CDATA[<p>Article URL: ...</p><p>Points: 321</p><p># Comments: 154</p>]]></description>
</item>
<item>
  <title>Ask HN: How do you test schedulers?</title>
  <link>https://news.ycombinator.com/item?id=1002</link>
  <guid isPermaLink="false">https://news.ycombinator.com/item?id=1002</guid>
  <pubDate>Mon, 31 Aug 2026 12:00:00 +0000</pubDate>
  <description><![CDATA[<p>Points: 45</p>]]></description>
</item>
</channel></rss>`

func TestFeedSourceFrontPage(t *testing.T) {
	t.Parallel()

	const feedURL = "https://hnrss.test/frontpage"
	pages := testutil.NewPageServer(map[string]string{feedURL: sampleFeed})
	client := fetch.New(1000, 5*time.Second, fetch.WithTransport(pages))
	src := NewFeedSource(client, feedURL)

	listing, err := src.FrontPage(context.Background())
	if err != nil {
		t.Fatalf("FrontPage: %v", err)
	}
	if len(listing.Stories) != 2 {
		t.Fatalf("stories = %d, want 2", len(listing.Stories))
	}

	first := listing.Stories[0]
	if first.ID != "1001" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.URL != "https://blog.example.com/fast-parsers" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.Domain != "blog.example.com" {
		t.Errorf("Domain = %q", first.Domain)
	}
	if first.IsSelf {
		t.Error("external story marked self")
	}
	if first.Points != "321 points" {
		t.Errorf("Points = %q", first.Points)
	}
	if first.CommentsURL != "https://news.ycombinator.com/item?id=1001" {
		t.Errorf("CommentsURL = %q", first.CommentsURL)
	}
	if !strings.Contains(first.Age, "ago") {
		t.Errorf("Age = %q", first.Age)
	}

	second := listing.Stories[1]
	if !second.IsSelf {
		t.Error("item link should be self-referential")
	}
	if second.Tag != "Ask HN" {
		t.Errorf("Tag = %q", second.Tag)
	}
	if second.Domain != "" {
		t.Errorf("self story Domain = %q, want empty", second.Domain)
	}
}

func TestFeedSourceFetchFailure(t *testing.T) {
	t.Parallel()

	client := fetch.New(1000, 5*time.Second, fetch.WithTransport(testutil.NewPageServer(nil)))
	src := NewFeedSource(client, "https://hnrss.test/missing")

	if _, err := src.FrontPage(context.Background()); err == nil {
		t.Fatal("FrontPage: expected error when the mirror is unreachable")
	}
}
