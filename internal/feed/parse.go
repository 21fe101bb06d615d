// Package feed fetches per-source RSS/Atom feeds and turns their entries
// into pipeline items: plain-text body, normalized URL, parsed date.
package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is one feed entry before item assembly.
type Entry struct {
	Title   string
	Link    string
	Summary string
	Content string
	Date    *time.Time
}

// ParseFeed decodes an RSS 2.0 or Atom document into entries. The dialect is
// detected from the document itself.
func ParseFeed(data []byte) ([]Entry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		entries = append(entries, Entry{
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			Summary: it.Description,
			Content: it.Content,
			Date:    entryDate(it),
		})
	}
	return entries, nil
}

// entryDate prefers the publication timestamp; feeds that only carry a
// last-updated stamp fall back to it. Unparseable or absent dates stay nil so
// the window filter can drop the entry.
func entryDate(it *gofeed.Item) *time.Time {
	if it.PublishedParsed != nil {
		t := *it.PublishedParsed
		return &t
	}
	if it.UpdatedParsed != nil {
		t := *it.UpdatedParsed
		return &t
	}
	return nil
}
