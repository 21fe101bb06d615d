package report

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"horse.fit/weekly/internal/dedup"
	"horse.fit/weekly/internal/globaltime"
)

var (
	bulletPattern = regexp.MustCompile(`^-+\s*(.*?)(?:\[原文\]\((https?://[^\s)]+)\))?\s*$`)
	splitPattern  = regexp.MustCompile(`[，,：:——-]\s*`)
	mdDatePattern = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
)

// MarkdownItem pairs a parsed item with its verbatim source line so the
// deduplicated digest can be re-emitted untouched.
type MarkdownItem struct {
	Item *dedup.Item
	Raw  string
}

// ParseMarkdownItems reads digest bullets ("- 8月17日，总结。[原文](url)")
// back into items for offline clustering. sourceID tags every item, normally
// with the digest file's stem.
func ParseMarkdownItems(r io.Reader, sourceID string) ([]MarkdownItem, error) {
	year := globaltime.Now().Year()

	var out []MarkdownItem
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "- ") {
			continue
		}

		body := strings.TrimSpace(line[2:])
		url := ""
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			body = strings.TrimSpace(m[1])
			url = strings.TrimSpace(m[2])
		}

		title := body
		text := ""
		if parts := splitPattern.Split(body, 2); len(parts) == 2 {
			title = strings.TrimSpace(parts[0])
			text = strings.TrimSpace(parts[1])
		}

		item := &dedup.Item{
			ID:       shortID(url, body),
			SourceID: sourceID,
			Title:    title,
			Text:     text,
			URL:      url,
			Date:     parseMDDate(body, year),
		}
		out = append(out, MarkdownItem{Item: item, Raw: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan markdown: %w", err)
	}
	return out, nil
}

func shortID(url, body string) string {
	basis := url
	if basis == "" {
		basis = body
	}
	sum := sha1.Sum([]byte(basis))
	return hex.EncodeToString(sum[:])[:12]
}

func parseMDDate(body string, year int) *time.Time {
	m := mdDatePattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return nil
	}
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
