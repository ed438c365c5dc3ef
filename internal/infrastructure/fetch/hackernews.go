package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
)

const (
	defaultHNEndpoint = "https://hacker-news.firebaseio.com/v0"
	hnItemPage        = "https://news.ycombinator.com/item?id=%d"
	hnTopStoriesCap   = 100
)

var roboticsKeywords = []string{"robot", "robotic", "drone"}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

// HackerNewsFetcher pulls top stories from the Firebase HN API and keeps the
// ones matching the configured keywords and score floor.
type HackerNewsFetcher struct {
	endpoint    string
	minScore    int
	maxAge      time.Duration
	keywords    []string
	concurrency int
	client      *http.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewHackerNewsFetcher builds a fetcher from configuration.
func NewHackerNewsFetcher(cfg config.HackerNewsConfig, concurrency int, logger *slog.Logger) *HackerNewsFetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &HackerNewsFetcher{
		endpoint:    defaultHNEndpoint,
		minScore:    cfg.MinScore,
		maxAge:      time.Duration(cfg.MaxAgeHours) * time.Hour,
		keywords:    cfg.Keywords,
		concurrency: concurrency,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		now:         time.Now,
	}
}

// FetchAll loads the top-story ID list, then the leading items concurrently,
// and filters to keyword-relevant external links.
func (f *HackerNewsFetcher) FetchAll(ctx context.Context) ([]domain.Article, error) {
	ids, err := f.topStoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("hacker news top stories: %w", err)
	}
	if len(ids) > hnTopStoriesCap {
		ids = ids[:hnTopStoriesCap]
	}

	var (
		mu       sync.Mutex
		articles []domain.Article
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			item, err := f.fetchItem(ctx, id)
			if err != nil {
				f.log().Debug("hn item failed", "id", id, "error", err)
				return nil
			}
			article, ok := f.itemToArticle(item)
			if !ok {
				return nil
			}
			mu.Lock()
			articles = append(articles, article)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	f.log().Info("fetched hacker news", "candidates", len(ids), "articles", len(articles))
	return articles, nil
}

func (f *HackerNewsFetcher) topStoryIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := f.getJSON(ctx, f.endpoint+"/topstories.json", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (f *HackerNewsFetcher) fetchItem(ctx context.Context, id int) (hnItem, error) {
	var item hnItem
	if err := f.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", f.endpoint, id), &item); err != nil {
		return hnItem{}, err
	}
	return item, nil
}

func (f *HackerNewsFetcher) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hacker news returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// itemToArticle filters one story: external link only, fresh enough, scored
// high enough, keyword-relevant title.
func (f *HackerNewsFetcher) itemToArticle(item hnItem) (domain.Article, bool) {
	if item.Type != "story" || item.URL == "" {
		return domain.Article{}, false
	}
	if item.Score < f.minScore {
		return domain.Article{}, false
	}

	published := time.Unix(item.Time, 0)
	if f.maxAge > 0 && f.now().Sub(published) > f.maxAge {
		return domain.Article{}, false
	}

	title := strings.ToLower(item.Title)
	if len(f.keywords) > 0 && !containsAny(title, f.keywords) {
		return domain.Article{}, false
	}

	topic := "ai"
	if containsAny(title, roboticsKeywords) {
		topic = "robotics"
	}

	content := fmt.Sprintf("Hacker News: %d points, %d comments.\n\nDiscuss on HN: "+hnItemPage,
		item.Score, item.Descendants, item.ID)

	return domain.Article{
		URL:         item.URL,
		Title:       item.Title,
		Content:     content,
		PublishedAt: published,
		Topic:       topic,
		Source:      "Hacker News",
	}, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (f *HackerNewsFetcher) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
