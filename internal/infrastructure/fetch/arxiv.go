package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

const defaultArxivEndpoint = "https://export.arxiv.org/api/query"

// arXiv asks API clients to pace requests; one burst per category is fine,
// back-to-back category queries are not.
const arxivRequestPacing = 3 * time.Second

// categoryTopics maps arXiv categories to digest topics. Unlisted categories
// fall back to "ai".
var categoryTopics = map[string]string{
	"cs.AI": "ai",
	"cs.LG": "ai",
	"cs.CL": "ai",
	"cs.CV": "ai",
	"cs.RO": "robotics",
}

// ArxivFetcher queries the arXiv Atom API for recent submissions per
// configured category.
type ArxivFetcher struct {
	endpoint       string
	categories     []string
	maxPerCategory int
	parser         *gofeed.Parser
	logger         *slog.Logger
	pace           time.Duration
}

// NewArxivFetcher builds a fetcher for the configured categories.
func NewArxivFetcher(cfg config.ArxivConfig, logger *slog.Logger) *ArxivFetcher {
	return &ArxivFetcher{
		endpoint:       defaultArxivEndpoint,
		categories:     cfg.Categories,
		maxPerCategory: cfg.MaxPerCategory,
		parser:         gofeed.NewParser(),
		logger:         logger,
		pace:           arxivRequestPacing,
	}
}

// FetchAll queries each category sequentially with pacing between requests.
// A failing category is logged and skipped.
func (f *ArxivFetcher) FetchAll(ctx context.Context) ([]domain.Article, error) {
	var all []domain.Article

	for i, category := range f.categories {
		if i > 0 {
			select {
			case <-time.After(f.pace):
			case <-ctx.Done():
				return all, ctx.Err()
			}
		}

		articles, err := f.fetchCategory(ctx, category)
		if err != nil {
			f.log().Warn("arxiv category failed, skipping", "category", category, "error", err)
			continue
		}
		f.log().Info("fetched arxiv category", "category", category, "articles", len(articles))
		all = append(all, articles...)
	}

	return all, nil
}

func (f *ArxivFetcher) fetchCategory(ctx context.Context, category string) ([]domain.Article, error) {
	query := url.Values{}
	query.Set("search_query", "cat:"+category)
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	query.Set("max_results", fmt.Sprintf("%d", f.maxPerCategory))

	feed, err := f.parser.ParseURLWithContext(f.endpoint+"?"+query.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("query arxiv %s: %w", category, err)
	}

	topic := categoryTopics[category]
	if topic == "" {
		topic = "ai"
	}

	var articles []domain.Article
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		published := itemTime(item)
		if published.IsZero() {
			continue
		}
		articles = append(articles, domain.Article{
			URL:         item.Link,
			Title:       strings.Join(strings.Fields(item.Title), " "),
			Content:     strings.TrimSpace(item.Description),
			PublishedAt: published,
			Topic:       topic,
			Source:      "arXiv/" + category,
		})
	}
	return articles, nil
}

func (f *ArxivFetcher) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
