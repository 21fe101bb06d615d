package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultUserAgent = "weekly-report-bot/1.0 (+local)"
	fetchRetries     = 3
	fetchTimeout     = 25 * time.Second
	maxFeedBytes     = 8 * 1024 * 1024
)

// Item is one collected article ready for the pipeline.
type Item struct {
	SourceID   string
	Title      string
	Link       string
	URLNorm    string
	Date       *time.Time
	Text       string
	SummaryRaw string
}

// Fetcher downloads per-source feeds and assembles items.
type Fetcher struct {
	baseFeed  string
	client    *http.Client
	userAgent string
	fullText  FullTextFunc
	log       zerolog.Logger
}

// FullTextFunc fetches readable article text for entries whose feed carries
// no body. Optional; nil disables the fallback.
type FullTextFunc func(ctx context.Context, pageURL, title string) (string, error)

type FetcherOption func(*Fetcher)

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithFullText(fn FullTextFunc) FetcherOption {
	return func(f *Fetcher) { f.fullText = fn }
}

func NewFetcher(log zerolog.Logger, baseFeed string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		baseFeed:  strings.TrimRight(strings.TrimSpace(baseFeed), "/"),
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: defaultUserAgent,
		log:       log.With().Str("component", "feed").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchSource downloads one source's feed and returns its items. A source
// that cannot be fetched yields an error; the caller decides whether the run
// continues.
func (f *Fetcher) FetchSource(ctx context.Context, sourceID string) ([]Item, error) {
	feedURL := fmt.Sprintf("%s/%s.xml", f.baseFeed, sourceID)

	raw, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", sourceID, err)
	}
	entries, err := ParseFeed(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", sourceID, err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, f.buildItem(ctx, sourceID, e))
	}
	f.log.Debug().Str("source", sourceID).Int("items", len(items)).Msg("feed fetched")
	return items, nil
}

// get retries transient failures; any 200 with a body wins.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := f.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchRetries, lastErr)
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return body, nil
}

// buildItem flattens an entry into the composite identity text the rest of
// the pipeline works on. An entry with no title, summary, or content keeps
// just the raw title so later stages can count it as empty.
func (f *Fetcher) buildItem(ctx context.Context, sourceID string, e Entry) Item {
	summary := TextFromHTML(e.Summary)
	content := ""
	if strings.TrimSpace(e.Content) != "" {
		content = SanitizeForOracle(StripURLs(TextFromHTML(e.Content)))
	}

	if content == "" && f.fullText != nil && e.Link != "" {
		full, err := f.fullText(ctx, e.Link, e.Title)
		if err != nil {
			f.log.Debug().Err(err).Str("url", e.Link).Msg("full-text fallback failed")
		} else {
			content = SanitizeForOracle(StripURLs(full))
		}
	}

	text := fmt.Sprintf("title:%s|summary:%s|content:%s", e.Title, summary, content)
	if e.Title == "" && summary == "" && content == "" {
		text = e.Title
	}

	return Item{
		SourceID:   sourceID,
		Title:      e.Title,
		Link:       e.Link,
		URLNorm:    NormalizeURL(e.Link),
		Date:       e.Date,
		Text:       text,
		SummaryRaw: summary,
	}
}
