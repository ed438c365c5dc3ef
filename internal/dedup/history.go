package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// ArticleHistory holds the sent-article map for the duration of a run and
// flushes it back to storage at run end. Keys are unique URLs; presence of a
// URL means the article was already sent.
type ArticleHistory struct {
	store   ports.HistoryStore
	entries map[string]domain.ArticleHistoryEntry
	logger  *slog.Logger
}

// NewArticleHistory loads existing history from the store. A missing or
// corrupt store is not fatal: the history starts empty and the problem is
// logged.
func NewArticleHistory(ctx context.Context, store ports.HistoryStore, logger *slog.Logger) *ArticleHistory {
	h := &ArticleHistory{
		store:   store,
		entries: map[string]domain.ArticleHistoryEntry{},
		logger:  logger,
	}

	if store == nil {
		return h
	}

	entries, err := store.Load(ctx)
	if err != nil {
		h.log().Warn("failed to load article history, starting fresh", "error", err)
		return h
	}
	if entries != nil {
		h.entries = entries
	}
	h.log().Info("loaded article history", "entries", len(h.entries))
	return h
}

// IsSent reports whether the URL was sent in a previous run.
func (h *ArticleHistory) IsSent(url string) bool {
	_, ok := h.entries[url]
	return ok
}

// Len returns the number of history entries.
func (h *ArticleHistory) Len() int {
	return len(h.entries)
}

// Add records the given articles as sent at the provided time.
func (h *ArticleHistory) Add(articles []domain.Article, sentAt time.Time) {
	for _, article := range articles {
		h.entries[article.URL] = domain.ArticleHistoryEntry{
			URL:    article.URL,
			Title:  article.Title,
			SentAt: sentAt,
		}
	}
	h.log().Info("added articles to history", "count", len(articles))
}

// PruneOlderThan removes entries sent before the cutoff.
func (h *ArticleHistory) PruneOlderThan(cutoff time.Time) {
	before := len(h.entries)
	for url, entry := range h.entries {
		if entry.SentAt.Before(cutoff) {
			delete(h.entries, url)
		}
	}
	if removed := before - len(h.entries); removed > 0 {
		h.log().Info("pruned old history entries", "removed", removed)
	}
}

// Save flushes the current map to the store.
func (h *ArticleHistory) Save(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, h.entries); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	h.log().Debug("saved article history", "entries", len(h.entries))
	return nil
}

func (h *ArticleHistory) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
