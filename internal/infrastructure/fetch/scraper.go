package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

const scraperBodyLimit = 2 << 20 // 2 MiB per page

// ScraperFetcher extracts readable article content from configured pages that
// publish no machine-readable feed.
type ScraperFetcher struct {
	pages            []config.ScraperPage
	minContentLength int
	client           *http.Client
	logger           *slog.Logger
	now              func() time.Time
}

// NewScraperFetcher builds a fetcher over the configured page list.
func NewScraperFetcher(cfg config.ScraperConfig, quality config.QualityConfig, logger *slog.Logger) *ScraperFetcher {
	return &ScraperFetcher{
		pages:            cfg.Pages,
		minContentLength: quality.MinContentLength,
		client:           &http.Client{Timeout: 20 * time.Second},
		logger:           logger,
		now:              time.Now,
	}
}

// FetchAll scrapes each page sequentially. Scrape targets are few; a failing
// page is logged and skipped.
func (f *ScraperFetcher) FetchAll(ctx context.Context) ([]domain.Article, error) {
	var articles []domain.Article

	for _, page := range f.pages {
		article, err := f.scrapePage(ctx, page)
		if err != nil {
			f.log().Warn("scrape failed, skipping", "url", page.URL, "error", err)
			continue
		}
		articles = append(articles, article)
	}

	f.log().Info("scraped pages", "configured", len(f.pages), "articles", len(articles))
	return articles, nil
}

func (f *ScraperFetcher) scrapePage(ctx context.Context, page config.ScraperPage) (domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return domain.Article{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "news-aggregator/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Article{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Article{}, fmt.Errorf("page returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, scraperBodyLimit))
	if err != nil {
		return domain.Article{}, fmt.Errorf("read page: %w", err)
	}

	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return domain.Article{}, fmt.Errorf("invalid page url: %w", err)
	}

	extracted, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return domain.Article{}, fmt.Errorf("extract content: %w", err)
	}

	content := strings.Join(strings.Fields(extracted.TextContent), " ")
	if utf8.RuneCountInString(content) < f.minContentLength {
		return domain.Article{}, fmt.Errorf("extracted content too short (%d chars)", utf8.RuneCountInString(content))
	}

	title := strings.TrimSpace(extracted.Title)
	published := f.publishedTime(bytes.NewReader(raw))

	source := page.Source
	if source == "" {
		source = pageURL.Hostname()
	}

	return domain.Article{
		URL:         page.URL,
		Title:       title,
		Content:     content,
		PublishedAt: published,
		Topic:       page.Topic,
		Source:      source,
	}, nil
}

// publishedTime digs a publication timestamp out of page metadata. Scraped
// pages without one count as published now; the scrape itself implies the
// page is current.
func (f *ScraperFetcher) publishedTime(r io.Reader) time.Time {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return f.now()
	}

	selectors := []string{
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[itemprop="datePublished"]`,
	}
	for _, sel := range selectors {
		if value, ok := doc.Find(sel).First().Attr("content"); ok {
			if parsed, err := dateparse.ParseAny(strings.TrimSpace(value)); err == nil {
				return parsed
			}
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if parsed, err := dateparse.ParseAny(strings.TrimSpace(datetime)); err == nil {
			return parsed
		}
	}
	return f.now()
}

func (f *ScraperFetcher) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
