// Package view builds template data for the grid and reader pages.
package view

import (
	"net/url"

	"hngrid/internal/listing"
)

// BuildCard maps one story to its card. Only external stories with a
// resolvable domain participate in thumbnail resolution; everything else
// keeps the favicon fallback for good.
func BuildCard(s listing.Story) CardView {
	return CardView{
		ID:           s.ID,
		Title:        s.Title,
		URL:          s.URL,
		Domain:       s.Domain,
		Points:       s.Points,
		Age:          s.Age,
		CommentsText: s.CommentsText,
		CommentsURL:  s.CommentsURL,
		Tag:          s.Tag,
		FaviconURL:   FaviconURL(s.Domain),
		Rank:         s.Rank,
		IsSelf:       s.IsSelf,
		WantsThumb:   !s.IsSelf && s.Domain != "",
	}
}

// BuildGrid maps a listing to the grid page data.
func BuildGrid(l *listing.Listing) GridData {
	data := GridData{MoreURL: l.MoreURL}
	for _, s := range l.Stories {
		data.Cards = append(data.Cards, BuildCard(s))
	}
	return data
}

// FaviconURL returns the favicon-service URL for a domain, or empty when
// there is no domain to ask about.
func FaviconURL(domain string) string {
	if domain == "" {
		return ""
	}
	u, err := url.Parse("https://" + domain)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return faviconURLFor(u.Hostname())
}

func faviconURLFor(host string) string {
	query := url.Values{
		"client":        {"SOCIAL"},
		"type":          {"FAVICON"},
		"fallback_opts": {"TYPE,SIZE,URL"},
		"url":           {"https://" + host},
		"size":          {"64"},
	}
	return "https://t2.gstatic.com/faviconV2?" + query.Encode()
}

// BuildReader maps a story to the split-view page data. Self-referential
// stories render their discussion on both edges, so the article pane simply
// navigates to the discussion URL; external articles go through the
// composing endpoint.
func BuildReader(title, articleURL, commentsURL string, isSelf bool) ReaderData {
	src := "/reader/article?url=" + url.QueryEscape(articleURL)
	if isSelf {
		src = articleURL
	}
	return ReaderData{
		Title:       title,
		ArticleURL:  articleURL,
		ArticleSrc:  src,
		CommentsURL: commentsURL,
	}
}
