package newsvote

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// Submission is article content extracted from an external source, ready to
// go through the normal intake.
type Submission struct {
	Headline string
	Body     string
	Author   string
}

// FetchFeed fetches and parses an RSS or Atom feed from the given URL. The
// gofeed library automatically detects and handles both formats; the context
// bounds the fetch.
func FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// FeedItemToSubmission converts one feed item into a submission. Feed content
// usually arrives as HTML; the body is reduced to plain text so the stored
// article is searchable and renders safely.
func FeedItemToSubmission(item *gofeed.Item, feedTitle string) Submission {
	headline := strings.TrimSpace(item.Title)
	if headline == "" {
		headline = "(No title)"
	}

	// Prefer full content, fall back to the description.
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	body := HTMLToText(raw)
	if body == "" {
		body = item.Link
	}

	// Author: item author if present, otherwise the feed title stands in as
	// the publisher of record.
	author := ""
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		author = item.Authors[0].Name
	} else if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		author = item.DublinCoreExt.Creator[0]
	}
	if author == "" {
		author = feedTitle
	}

	return Submission{
		Headline: headline,
		Body:     body,
		Author:   author,
	}
}

// FeedToSubmissions converts all items in a feed.
func FeedToSubmissions(feed *gofeed.Feed) []Submission {
	subs := make([]Submission, 0, len(feed.Items))
	for _, item := range feed.Items {
		subs = append(subs, FeedItemToSubmission(item, feed.Title))
	}
	return subs
}

// HTMLToText strips markup from an HTML fragment, returning the text content
// with whitespace collapsed. Non-HTML input passes through unchanged apart
// from whitespace normalization.
func HTMLToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	// Drop script and style bodies before extracting text.
	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}
