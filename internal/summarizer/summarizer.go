package summarizer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
	"github.com/emery-Xu/news-aggregator/internal/provider"
)

const (
	minBullets = 3
	maxBullets = 5
)

// Registry is the provider lookup the summarizer needs; satisfied by
// *provider.Registry.
type Registry interface {
	Get(providerID string) (provider.AIProvider, error)
	All() map[string]provider.AIProvider
}

// Selector yields the ordered provider chain; satisfied by *provider.Selector.
type Selector interface {
	Chain() []string
}

// Summarizer turns ranked articles into audience-targeted bullet summaries by
// walking the provider fallback chain per article. A summarization failure
// never drops an article; it is passed through flagged.
type Summarizer struct {
	registry    Registry
	selector    Selector
	prompts     *Prompts
	topics      map[string]config.TopicConfig
	maxTokens   int
	temperature float64
	limit       int
	logger      *slog.Logger

	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

var _ ports.Summarizer = (*Summarizer)(nil)

// New builds a summarizer over the provider registry. limit bounds in-flight
// provider calls across all topics of a run.
func New(
	registry Registry,
	selector Selector,
	prompts *Prompts,
	topics map[string]config.TopicConfig,
	sumCfg config.SummarizationConfig,
	limit int,
	logger *slog.Logger,
) *Summarizer {
	if limit <= 0 {
		limit = 5
	}
	return &Summarizer{
		registry:    registry,
		selector:    selector,
		prompts:     prompts,
		topics:      topics,
		maxTokens:   sumCfg.MaxTokens,
		temperature: sumCfg.Temperature,
		limit:       limit,
		logger:      logger,
	}
}

// SummarizeByAudience summarizes every article concurrently, grouped and
// returned by topic. Articles whose whole provider chain failed come back
// with empty bullets and SummarizationFailed set.
func (s *Summarizer) SummarizeByAudience(ctx context.Context, byTopic map[string][]domain.RankedArticle) map[string][]domain.SummarizedArticle {
	results := make(map[string][]domain.SummarizedArticle, len(byTopic))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for topic, articles := range byTopic {
		level := s.audienceFor(topic)
		summarized := make([]domain.SummarizedArticle, len(articles))
		results[topic] = summarized

		for i, ranked := range articles {
			i, ranked, topic := i, ranked, topic
			g.Go(func() error {
				summarized[i] = s.summarizeOne(ctx, topic, level, ranked.Article)
				return nil
			})
		}
	}

	// Workers never return errors; Wait is only a barrier.
	_ = g.Wait()

	s.logProviderUsage()
	return results
}

// summarizeOne walks the fallback chain for a single article. Provider errors
// and too-short summaries both mean "try the next provider".
func (s *Summarizer) summarizeOne(ctx context.Context, topic string, level domain.AudienceLevel, article domain.Article) domain.SummarizedArticle {
	prompt := buildPrompt(s.prompts.For(level), topic, article)

	for _, providerID := range s.selector.Chain() {
		p, err := s.registry.Get(providerID)
		if err != nil {
			s.log().Warn("provider missing from registry", "provider", providerID, "error", err)
			continue
		}

		bullets, usage, err := p.Summarize(ctx, article, prompt, s.maxTokens, s.temperature)
		if err != nil {
			s.log().Warn("provider failed, trying next in chain",
				"provider", providerID, "title", article.Title, "error", err)
			continue
		}

		s.inputTokens.Add(int64(usage.InputTokens))
		s.outputTokens.Add(int64(usage.OutputTokens))

		if len(bullets) < minBullets {
			s.log().Warn("summary too short, trying next in chain",
				"provider", providerID, "title", article.Title, "bullets", len(bullets))
			continue
		}
		if len(bullets) > maxBullets {
			bullets = bullets[:maxBullets]
		}
		return domain.NewSummarizedArticle(article, bullets, level, false)
	}

	s.log().Error("all providers failed for article", "title", article.Title)
	return domain.NewSummarizedArticle(article, nil, level, true)
}

// TokenTotals reports tokens consumed since the summarizer was created.
func (s *Summarizer) TokenTotals() (inputTokens, outputTokens int64) {
	return s.inputTokens.Load(), s.outputTokens.Load()
}

func (s *Summarizer) audienceFor(topic string) domain.AudienceLevel {
	if cfg, ok := s.topics[topic]; ok && cfg.AudienceLevel != "" {
		return domain.AudienceLevel(cfg.AudienceLevel)
	}
	return domain.AudienceBeginner
}

func (s *Summarizer) logProviderUsage() {
	for id, p := range s.registry.All() {
		snap := p.Metrics()
		if snap.TotalRequests == 0 {
			continue
		}
		s.log().Info("provider usage",
			"provider", id,
			"requests", snap.TotalRequests,
			"success_rate", snap.SuccessRate,
			"input_tokens", snap.TotalInputTokens,
			"output_tokens", snap.TotalOutputTokens,
			"avg_latency", snap.AverageLatency)
	}
}

func (s *Summarizer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
