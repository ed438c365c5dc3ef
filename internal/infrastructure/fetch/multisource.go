package fetch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

// NamedSource pairs a fetcher with a label for logs.
type NamedSource struct {
	Name   string
	Source ports.ArticleSource
}

// MultiSource fans one FetchAll out to every registered source and merges the
// results. A failing source degrades the digest, it never aborts the run.
type MultiSource struct {
	sources []NamedSource
	logger  *slog.Logger
}

var _ ports.ArticleSource = (*MultiSource)(nil)

// NewMultiSource combines the given sources into one.
func NewMultiSource(logger *slog.Logger, sources ...NamedSource) *MultiSource {
	return &MultiSource{sources: sources, logger: logger}
}

// FetchAll runs every source concurrently and concatenates their articles in
// source registration order.
func (m *MultiSource) FetchAll(ctx context.Context) ([]domain.Article, error) {
	results := make([][]domain.Article, len(m.sources))

	g, ctx := errgroup.WithContext(ctx)

	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			articles, err := src.Source.FetchAll(ctx)
			if err != nil {
				m.log().Warn("source failed, continuing without it", "source", src.Name, "error", err)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.Article
	for i, articles := range results {
		m.log().Info("source finished", "source", m.sources[i].Name, "articles", len(articles))
		all = append(all, articles...)
	}
	return all, nil
}

func (m *MultiSource) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}
