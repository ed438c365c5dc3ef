package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// Deduplicator removes duplicate articles in three sequential passes: exact
// URL match, fuzzy title match, and previously-sent history match.
type Deduplicator struct {
	history     *ArticleHistory
	threshold   int // title similarity 0-100; strictly above is a duplicate
	historyDays int
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.Deduplicator = (*Deduplicator)(nil)

// New builds a deduplicator, loading prior history from the store. A broken
// store degrades to empty history rather than failing construction.
func New(ctx context.Context, store ports.HistoryStore, threshold, historyDays int, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		history:     NewArticleHistory(ctx, store, logger),
		threshold:   threshold,
		historyDays: historyDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Deduplicate runs all three passes, each on the previous pass's output, and
// returns a new list. The input slice is never mutated.
func (d *Deduplicator) Deduplicate(articles []domain.Article) ([]domain.Article, domain.DedupStats) {
	stats := domain.DedupStats{Input: len(articles)}
	d.log().Info("starting deduplication", "articles", len(articles))

	afterURL := d.dedupeByURL(articles)
	stats.URLRemoved = len(articles) - len(afterURL)

	afterTitle := d.dedupeByTitle(afterURL)
	stats.TitleRemoved = len(afterURL) - len(afterTitle)

	afterHistory := d.filterSent(afterTitle)
	stats.HistoryFiltered = len(afterTitle) - len(afterHistory)
	stats.Output = len(afterHistory)

	d.log().Info("deduplication complete",
		"input", stats.Input,
		"url_removed", stats.URLRemoved,
		"title_removed", stats.TitleRemoved,
		"history_filtered", stats.HistoryFiltered,
		"output", stats.Output)

	return afterHistory, stats
}

// dedupeByURL keeps the first occurrence of each URL, preserving input order.
func (d *Deduplicator) dedupeByURL(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]domain.Article, 0, len(articles))

	for _, article := range articles {
		if _, ok := seen[article.URL]; ok {
			continue
		}
		seen[article.URL] = struct{}{}
		unique = append(unique, article)
	}

	return unique
}

// dedupeByTitle compares each candidate against every already-accepted title.
// When a pair exceeds the similarity threshold, the earlier-published article
// survives; a replacement removes the accepted entry and appends the
// candidate. Quadratic by design: daily volumes are small and correctness
// beats asymptotics here.
func (d *Deduplicator) dedupeByTitle(articles []domain.Article) []domain.Article {
	unique := make([]domain.Article, 0, len(articles))

	for _, candidate := range articles {
		duplicateOf := -1
		for i, accepted := range unique {
			if titleSimilarity(candidate.Title, accepted.Title) > d.threshold {
				duplicateOf = i
				break
			}
		}

		if duplicateOf < 0 {
			unique = append(unique, candidate)
			continue
		}

		accepted := unique[duplicateOf]
		if candidate.PublishedAt.Before(accepted.PublishedAt) {
			// Earlier-published wins; the survivor moves to the end of the
			// accepted list, mirroring remove-then-append.
			unique = append(unique[:duplicateOf], unique[duplicateOf+1:]...)
			unique = append(unique, candidate)
			d.log().Debug("replaced near-duplicate with earlier article",
				"kept", candidate.Title, "dropped", accepted.Title)
		} else {
			d.log().Debug("skipping near-duplicate", "title", candidate.Title)
		}
	}

	return unique
}

// filterSent drops articles whose URL is already in the sent history.
func (d *Deduplicator) filterSent(articles []domain.Article) []domain.Article {
	fresh := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if d.history.IsSent(article.URL) {
			continue
		}
		fresh = append(fresh, article)
	}
	return fresh
}

// UpdateHistory records the sent articles, prunes entries older than the
// retention window, and persists the result.
func (d *Deduplicator) UpdateHistory(ctx context.Context, sent []domain.Article) error {
	now := d.now()
	d.history.Add(sent, now)
	d.history.PruneOlderThan(now.AddDate(0, 0, -d.historyDays))

	if err := d.history.Save(ctx); err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}

// titleSimilarity is a case-insensitive fuzzy-match ratio in 0-100.
func titleSimilarity(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 100
	}
	return fuzzy.Ratio(a, b)
}

func (d *Deduplicator) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}
