package fetch

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

const feedRetries = 3

// freshnessWindow bounds how old a feed item may be. Items older than this
// would score zero on recency anyway.
const freshnessWindow = 48 * time.Hour

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// RSSFetcher pulls configured RSS/Atom feeds and normalizes their items into
// articles tagged with the feed's topic.
type RSSFetcher struct {
	feeds            map[string][]config.FeedConfig
	minContentLength int
	maxPerTopic      int
	concurrency      int
	parser           *gofeed.Parser
	logger           *slog.Logger
	now              func() time.Time
	retryBase        time.Duration
}

// NewRSSFetcher builds a fetcher over the per-topic feed map.
func NewRSSFetcher(feeds map[string][]config.FeedConfig, quality config.QualityConfig, maxPerTopic, concurrency int, logger *slog.Logger) *RSSFetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &RSSFetcher{
		feeds:            feeds,
		minContentLength: quality.MinContentLength,
		maxPerTopic:      maxPerTopic,
		concurrency:      concurrency,
		parser:           gofeed.NewParser(),
		logger:           logger,
		now:              time.Now,
		retryBase:        2 * time.Second,
	}
}

// FetchAll fetches every enabled feed concurrently. A failing feed is logged
// and skipped; one broken upstream must not starve the digest.
func (f *RSSFetcher) FetchAll(ctx context.Context) ([]domain.Article, error) {
	var (
		mu       sync.Mutex
		perTopic = map[string][]domain.Article{}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for topic, feeds := range f.feeds {
		for _, feed := range feeds {
			if !feed.IsEnabled() {
				continue
			}
			topic, feed := topic, feed
			g.Go(func() error {
				articles, err := f.fetchFeed(ctx, topic, feed)
				if err != nil {
					f.log().Warn("feed failed, skipping", "topic", topic, "url", feed.URL, "error", err)
					return nil
				}
				mu.Lock()
				perTopic[topic] = append(perTopic[topic], articles...)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	var all []domain.Article
	for topic, articles := range perTopic {
		// Newest first, so the per-topic cap keeps the freshest articles
		// rather than whichever feed goroutine finished first.
		sort.Slice(articles, func(i, j int) bool {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		})
		if f.maxPerTopic > 0 && len(articles) > f.maxPerTopic {
			articles = articles[:f.maxPerTopic]
		}
		f.log().Info("fetched rss topic", "topic", topic, "articles", len(articles))
		all = append(all, articles...)
	}
	return all, nil
}

// fetchFeed pulls one feed with bounded retries. Parse errors and transport
// errors are retried alike; feeds flake.
func (f *RSSFetcher) fetchFeed(ctx context.Context, topic string, feed config.FeedConfig) ([]domain.Article, error) {
	var (
		parsed  *gofeed.Feed
		lastErr error
	)

	for attempt := 0; attempt < feedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.retryBase * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		parsed, lastErr = f.parser.ParseURLWithContext(feed.URL, ctx)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		source = feed.URL
	}

	cutoff := f.now().Add(-freshnessWindow)
	var articles []domain.Article
	for _, item := range parsed.Items {
		article, ok := f.itemToArticle(item, topic, source, cutoff)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (f *RSSFetcher) itemToArticle(item *gofeed.Item, topic, source string, cutoff time.Time) (domain.Article, bool) {
	if item.Link == "" {
		return domain.Article{}, false
	}

	published := itemTime(item)
	if published.IsZero() || published.Before(cutoff) {
		return domain.Article{}, false
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}
	content = stripHTML(content)
	if utf8.RuneCountInString(content) < f.minContentLength {
		return domain.Article{}, false
	}

	return domain.Article{
		URL:         item.Link,
		Title:       strings.TrimSpace(item.Title),
		Content:     content,
		PublishedAt: published,
		Topic:       topic,
		Source:      source,
	}, true
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// stripHTML flattens markup to plain text and collapses whitespace.
func stripHTML(s string) string {
	s = htmlTags.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	return strings.Join(strings.Fields(s), " ")
}

func (f *RSSFetcher) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
