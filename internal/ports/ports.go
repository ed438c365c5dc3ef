package ports

import (
	"context"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/domain"
)

// ArticleSource pulls fresh articles from one upstream (RSS, arXiv, Hacker
// News, scraper) or from a fan-in over several of them.
type ArticleSource interface {
	FetchAll(ctx context.Context) ([]domain.Article, error)
}

// HistoryStore persists the sent-article map between runs. Load must return
// an error (not invent data) when storage is unreadable; the caller decides
// whether that is fatal.
type HistoryStore interface {
	Load(ctx context.Context) (map[string]domain.ArticleHistoryEntry, error)
	Save(ctx context.Context, entries map[string]domain.ArticleHistoryEntry) error
}

// Deduplicator removes URL, near-title, and already-sent duplicates.
type Deduplicator interface {
	Deduplicate(articles []domain.Article) ([]domain.Article, domain.DedupStats)
	UpdateHistory(ctx context.Context, sent []domain.Article) error
}

// Ranker scores, filters, and caps articles per topic.
type Ranker interface {
	RankAndFilter(articles []domain.Article) []domain.RankedArticle
}

// Summarizer produces audience-level summaries for ranked articles grouped by
// topic. Per-article failures are reported in the result, never as an error.
type Summarizer interface {
	SummarizeByAudience(ctx context.Context, byTopic map[string][]domain.RankedArticle) map[string][]domain.SummarizedArticle
}

// DigestComposer renders the final digest from summarized articles.
type DigestComposer interface {
	Compose(articles []domain.SummarizedArticle, date time.Time) (domain.EmailContent, error)
}

// DigestSender delivers a composed digest, or saves it to disk as a fallback
// when delivery fails.
type DigestSender interface {
	Send(ctx context.Context, to string, content domain.EmailContent) error
	SaveToFile(content domain.EmailContent) (string, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
