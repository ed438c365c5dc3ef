package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/dedup"
	"github.com/emery-Xu/news-aggregator/internal/infrastructure/email"
	"github.com/emery-Xu/news-aggregator/internal/infrastructure/fetch"
	"github.com/emery-Xu/news-aggregator/internal/infrastructure/history"
	"github.com/emery-Xu/news-aggregator/internal/infrastructure/scheduler"
	"github.com/emery-Xu/news-aggregator/internal/logging"
	"github.com/emery-Xu/news-aggregator/internal/ports"
	"github.com/emery-Xu/news-aggregator/internal/provider"
	"github.com/emery-Xu/news-aggregator/internal/ranker"
	"github.com/emery-Xu/news-aggregator/internal/summarizer"
	"github.com/emery-Xu/news-aggregator/internal/usecase"
)

// Application wires configuration into the digest pipeline and its lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *provider.Registry
	pipeline *usecase.Pipeline
	closeFns []func() error
}

// New builds a runnable application from validated configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.historyStore(ctx)
	if err != nil {
		return nil, err
	}

	deduplicator := dedup.New(ctx, store,
		cfg.Quality.TitleSimilarityThreshold(),
		cfg.Quality.HistoryDays,
		baseLogger.With("component", "dedup"))

	registry, err := provider.NewRegistry(cfg.Providers, baseLogger.With("component", "providers"))
	if err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}
	a.registry = registry
	selector := provider.NewSelector(cfg.Providers, cfg.ProviderStrategy, baseLogger.With("component", "selector"))

	prompts, err := summarizer.LoadPrompts(cfg.Summarization)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	sum := summarizer.New(registry, selector, prompts, cfg.Topics, cfg.Summarization,
		cfg.Concurrency.SummarizeLimit, baseLogger.With("component", "summarizer"))

	composer, err := email.NewComposer(cfg.Topics)
	if err != nil {
		return nil, fmt.Errorf("build composer: %w", err)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:       a.multiSource(baseLogger),
		Deduplicator: deduplicator,
		Ranker:       ranker.New(cfg.Topics, baseLogger.With("component", "ranker")),
		Summarizer:   sum,
		Composer:     composer,
		Sender:       email.NewSMTPSender(cfg.Email, baseLogger.With("component", "sender")),
		Executions:   usecase.NewExecutionLog(cfg.ExecutionHistoryFile),
		Recipient:    cfg.Email.Recipient,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	return a, nil
}

// historyStore picks Postgres when a DSN is configured, the JSON file
// otherwise.
func (a *Application) historyStore(ctx context.Context) (ports.HistoryStore, error) {
	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		store, err := history.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect history database: %w", err)
		}
		a.closeFns = append(a.closeFns, store.Close)
		a.logger.Info("using postgres history store")
		return store, nil
	}
	a.logger.Info("using json history store", "path", a.cfg.History.File)
	return history.NewJSONStore(a.cfg.History.File), nil
}

// multiSource assembles every enabled fetcher into one fan-in source.
func (a *Application) multiSource(logger *slog.Logger) ports.ArticleSource {
	sources := []fetch.NamedSource{{
		Name: "rss",
		Source: fetch.NewRSSFetcher(a.cfg.Sources.RSS, a.cfg.Quality,
			a.cfg.Sources.MaxArticlesPerTopic, a.cfg.Concurrency.FetchLimit,
			logger.With("component", "fetch.rss")),
	}}

	if a.cfg.Sources.Arxiv.Enabled {
		sources = append(sources, fetch.NamedSource{
			Name:   "arxiv",
			Source: fetch.NewArxivFetcher(a.cfg.Sources.Arxiv, logger.With("component", "fetch.arxiv")),
		})
	}
	if a.cfg.Sources.HackerNews.Enabled {
		sources = append(sources, fetch.NamedSource{
			Name: "hackernews",
			Source: fetch.NewHackerNewsFetcher(a.cfg.Sources.HackerNews,
				a.cfg.Concurrency.FetchLimit, logger.With("component", "fetch.hackernews")),
		})
	}
	if a.cfg.Sources.Scraper.Enabled {
		sources = append(sources, fetch.NamedSource{
			Name: "scraper",
			Source: fetch.NewScraperFetcher(a.cfg.Sources.Scraper, a.cfg.Quality,
				logger.With("component", "fetch.scraper")),
		})
	}

	return fetch.NewMultiSource(logger.With("component", "fetch"), sources...)
}

// RunOnce executes a single digest cycle.
func (a *Application) RunOnce(ctx context.Context) error {
	_, err := a.pipeline.Run(ctx)
	return err
}

// RunScheduled starts the cron loop and blocks until the context is cancelled
// or a termination signal arrives.
func (a *Application) RunScheduled(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler)
	sched := usecase.NewScheduler(driver, a.pipeline)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()
	a.logger.Info("shutting down")
	return sched.Stop(context.Background())
}

// ValidateProviders health-checks every configured AI provider and reports
// the results. Returns an error when no provider is healthy.
func (a *Application) ValidateProviders(ctx context.Context) error {
	results := a.registry.ValidateAll(ctx)

	healthy := 0
	for id, status := range results {
		if status.Healthy {
			healthy++
			fmt.Printf("%-12s OK\n", id)
		} else {
			fmt.Printf("%-12s FAILED: %s\n", id, status.Message)
		}
	}
	if healthy == 0 {
		return fmt.Errorf("no healthy providers (%d checked)", len(results))
	}
	return nil
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	var firstErr error
	for _, closeFn := range a.closeFns {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
