package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	fullTextTimeout   = 12 * time.Second
	fullTextByteLimit = 2 * 1024 * 1024
)

// NewFullTextFetcher returns a FullTextFunc that downloads an article page
// and extracts its readable body. Used when a feed entry carries only a
// stub summary.
func NewFullTextFetcher(client *http.Client, userAgent string) FullTextFunc {
	if client == nil {
		client = &http.Client{Timeout: fullTextTimeout}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}

	return func(ctx context.Context, pageURL, title string) (string, error) {
		page := strings.TrimSpace(pageURL)
		if page == "" {
			return "", fmt.Errorf("article URL is required")
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fullTextTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch article: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("fetch status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, fullTextByteLimit))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}

		contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
		if strings.HasPrefix(contentType, "text/plain") {
			return cleanArticleText(string(body)), nil
		}

		parsedURL, err := url.Parse(page)
		if err != nil {
			return "", fmt.Errorf("parse article url: %w", err)
		}
		article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
		if err != nil {
			return "", fmt.Errorf("readability parse: %w", err)
		}

		var rendered bytes.Buffer
		if err := article.RenderText(&rendered); err != nil {
			return "", fmt.Errorf("render readable text: %w", err)
		}

		text := cleanArticleText(rendered.String())
		if text == "" {
			text = cleanArticleText(article.Excerpt())
		}
		if text == "" {
			text = strings.TrimSpace(title)
		}
		if text == "" {
			return "", fmt.Errorf("extracted empty content")
		}
		return text, nil
	}
}

// cleanArticleText collapses whitespace per line and joins non-empty lines
// into paragraphs.
func cleanArticleText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
